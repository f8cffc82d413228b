// Package repair resolves replies stuck in an incomplete state: crashed
// mid-stream, failed upstream calls, or rows that never received their
// terminal patch.
package repair

import (
	"errors"
	"strings"
	"time"

	"tanchat/pkg/config"
	"tanchat/pkg/generate"
	"tanchat/pkg/logger"
	"tanchat/pkg/schedule"
	"tanchat/pkg/store"
	"tanchat/pkg/window"
)

// StuckSuffix is appended to a non-AI message found incomplete, a condition
// that should not occur and is left visible for operators.
const StuckSuffix = " [flagged incomplete by repair sweep]"

// Sweeper scans for incomplete replies and re-issues their generation.
type Sweeper struct {
	cfg   *config.Config
	sched *schedule.Scheduler
}

// New builds a Sweeper that schedules repairs through sched.
func New(cfg *config.Config, sched *schedule.Scheduler) *Sweeper {
	return &Sweeper{cfg: cfg, sched: sched}
}

// Sweep scans all incomplete messages and acts on each candidate. Failed
// AI replies are re-scheduled against the same message id with a stepped
// delay; stuck AI replies are marked failed for the next sweep; incomplete
// non-AI rows are annotated and left in place. Returns the number of
// candidates acted on; a no-op when none exist.
func (s *Sweeper) Sweep() (int, error) {
	msgs, err := store.ListIncomplete()
	if err != nil {
		return 0, err
	}
	responder := s.cfg.Chat.Responder
	step := time.Duration(s.cfg.Repair.BackoffStepMS) * time.Millisecond
	every := s.cfg.Repair.BackoffEvery

	count := 0
	issued := 0
	delay := time.Duration(0)
	for _, m := range msgs {
		switch {
		case m.Author != responder:
			// Human rows are inserted complete; finding one incomplete is
			// unexpected. Annotate for operator visibility, never repair or
			// delete it.
			if !strings.HasSuffix(m.Body, StuckSuffix) {
				body := m.Body + StuckSuffix
				if err := store.Patch(m.ID, &body, nil); err != nil {
					return count, err
				}
				count++
			}
		case strings.HasPrefix(m.Body, generate.FailureMarker):
			// Re-read immediately before scheduling: the scan snapshot may
			// be stale, and only a still-Failed reply may be re-targeted.
			cur, err := store.Get(m.ID)
			if err != nil || !generate.Failed(cur) {
				continue
			}
			// Genuine repair candidate: rebuild the original context from
			// before its creation and overwrite the diagnostic in place.
			ctxMsgs, err := window.SelectCompleteBefore(m.TS, s.cfg.Chat.RepairWindow)
			if err != nil && !errors.Is(err, window.ErrNoUsableContext) {
				return count, err
			}
			job := generate.Job{MessageID: m.ID, Turns: generate.Turns(ctxMsgs, responder)}
			payload, err := generate.EncodeJob(job)
			if err != nil {
				return count, err
			}
			s.sched.After(delay, generate.TaskName, m.ID, payload)
			logger.Info("repair_scheduled", "msg_id", m.ID, "delay", delay.String(), "context", len(ctxMsgs))
			issued++
			count++
			// Spread generator calls out instead of bursting: the delay
			// steps up after every `every` issued repairs.
			if every > 0 && issued%every == 0 {
				delay += step
			}
		default:
			// Incomplete but unmarked: silently stuck mid-stream. Mark it so
			// the next sweep picks it up; never generate for it directly.
			if err := generate.Fail(m.ID, "stalled before completion"); err != nil {
				return count, err
			}
			logger.Warn("repair_marked_stalled", "msg_id", m.ID)
			count++
		}
	}
	if count > 0 {
		sweepActions.Add(float64(count))
	}
	logger.Info("repair_sweep_done", "candidates", count, "rescheduled", issued)
	return count, nil
}
