// Package schedule provides a bounded delayed-execution facility with
// at-least-once semantics. Tasks are enqueued after their requested delay
// and drained by a fixed pool of workers; no ordering is guaranteed between
// tasks scheduled at different times beyond the delay each requests.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"tanchat/pkg/logger"
)

// Task is one unit of delayed work. Payload may be backed by a pooled
// buffer; the scheduler releases it after the handler returns.
type Task struct {
	Name    string
	MsgID   string
	Payload []byte

	buf *bytebufferpool.ByteBuffer
}

var taskPool = sync.Pool{New: func() any { return &Task{} }}

// maxPooledBuffer bounds how large a payload buffer may be and still be
// returned to the pool.
var maxPooledBuffer = 256 * 1024

// release is called exactly once per task, either after the handler ran or
// when the enqueue was dropped.
func (t *Task) release() {
	if t.buf != nil {
		if cap(t.buf.B) <= maxPooledBuffer {
			bytebufferpool.Put(t.buf)
		}
		t.buf = nil
	}
	*t = Task{}
	taskPool.Put(t)
}

// ErrQueueFull is returned when the queue is at capacity at enqueue time.
var ErrQueueFull = errors.New("schedule queue full")

// Handler processes one task. Errors are logged, not retried; a task whose
// effect must survive a failed run is expected to be re-issued by the
// repair sweep.
type Handler func(ctx context.Context, t *Task) error

// Scheduler is a bounded queue of delayed tasks plus its worker pool.
type Scheduler struct {
	ch       chan *Task
	capacity int
	workers  int
	handler  Handler
	dropped  uint64
	wg       sync.WaitGroup
}

// New creates a Scheduler. Start must be called before tasks run.
func New(capacity, workers int, h Handler) *Scheduler {
	if capacity <= 0 {
		capacity = 1024
	}
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{ch: make(chan *Task, capacity), capacity: capacity, workers: workers, handler: h}
}

// Start launches the worker pool. Workers exit when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.run(ctx)
	}
}

// Wait blocks until all workers have exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case t, ok := <-s.ch:
			if !ok {
				return
			}
			s.execute(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, t *Task) {
	// Resample after the dequeue so the gauge also falls as workers drain.
	queueDepth.Set(float64(len(s.ch)))
	defer t.release()
	defer func() {
		if r := recover(); r != nil {
			tasksFailed.Inc()
			logger.Error("task_panicked", "task", t.Name, "msg_id", t.MsgID, "panic", fmt.Sprint(r))
		}
	}()
	if err := s.handler(ctx, t); err != nil {
		tasksFailed.Inc()
		logger.Error("task_failed", "task", t.Name, "msg_id", t.MsgID, "error", err)
		return
	}
	tasksDone.Inc()
}

func (s *Scheduler) enqueue(t *Task) {
	select {
	case s.ch <- t:
		queueDepth.Set(float64(len(s.ch)))
	default:
		atomic.AddUint64(&s.dropped, 1)
		tasksDropped.Inc()
		logger.Error("task_dropped_queue_full", "task", t.Name, "msg_id", t.MsgID)
		t.release()
	}
}

// After schedules the given work to run once the delay has elapsed. The
// payload is copied into a pooled buffer, so callers may reuse theirs.
// Delivery is at-least-once from the caller's perspective: a full queue at
// due time drops the task (counted), which the repair sweep compensates for.
func (s *Scheduler) After(delay time.Duration, name, msgID string, payload []byte) {
	t := taskPool.Get().(*Task)
	t.Name = name
	t.MsgID = msgID
	if len(payload) > 0 {
		bb := bytebufferpool.Get()
		bb.B = append(bb.B[:0], payload...)
		t.buf = bb
		t.Payload = bb.B[:len(payload)]
	}
	tasksScheduled.Inc()
	if delay <= 0 {
		s.enqueue(t)
		return
	}
	time.AfterFunc(delay, func() { s.enqueue(t) })
}

// Len returns the current number of due tasks waiting for a worker.
func (s *Scheduler) Len() int { return len(s.ch) }

// Cap returns the configured queue capacity.
func (s *Scheduler) Cap() int { return s.capacity }

// Dropped returns the number of tasks dropped due to a full queue.
func (s *Scheduler) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }
