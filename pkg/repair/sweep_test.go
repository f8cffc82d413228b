package repair

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tanchat/pkg/config"
	"tanchat/pkg/generate"
	"tanchat/pkg/schedule"
	"tanchat/pkg/store"
)

// capture records generation tasks handed to the scheduler.
type capture struct {
	mu   sync.Mutex
	jobs []generate.Job
}

func (c *capture) handle(_ context.Context, t *schedule.Task) error {
	job, err := generate.DecodeJob(t.Payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.jobs = append(c.jobs, job)
	c.mu.Unlock()
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func testSweeper(t *testing.T) (*Sweeper, *capture, *config.Config) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	rec := &capture{}
	sched := schedule.New(16, 1, rec.handle)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sched.Start(ctx)
	return New(cfg, sched), rec, cfg
}

func failedReply(t *testing.T, reason string) string {
	t.Helper()
	m, err := store.Append("TanAI", "...", false)
	require.NoError(t, err)
	require.NoError(t, generate.Fail(m.ID, reason))
	return m.ID
}

func TestSweepNoCandidates(t *testing.T) {
	s, rec, _ := testSweeper(t)
	_, err := store.Append("alice", "all good", true)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, rec.count())
}

func TestSweepReschedulesFailedReply(t *testing.T) {
	s, rec, _ := testSweeper(t)
	_, err := store.Append("alice", "what time is it @gpt", true)
	require.NoError(t, err)
	id := failedReply(t, "timeout")

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	job := rec.jobs[0]
	rec.mu.Unlock()
	require.Equal(t, id, job.MessageID, "repair targets the failed reply in place")
	require.Len(t, job.Turns, 1)
	require.Equal(t, "user", job.Turns[0].Role)
	require.Equal(t, "what time is it @gpt", job.Turns[0].Content)
}

func TestSweepContextExcludesReplyAndLater(t *testing.T) {
	s, rec, _ := testSweeper(t)
	_, err := store.Append("alice", "before", true)
	require.NoError(t, err)
	failedReply(t, "oops")
	_, err = store.Append("bob", "after", true)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	job := rec.jobs[0]
	rec.mu.Unlock()
	require.Len(t, job.Turns, 1, "context stops strictly before the failed reply")
	require.Equal(t, "before", job.Turns[0].Content)
}

func TestSweepMarksStalledReply(t *testing.T) {
	s, rec, _ := testSweeper(t)
	_, err := store.Append("alice", "hi", true)
	require.NoError(t, err)
	// Placeholder never terminally patched: stalled mid-stream.
	m, err := store.Append("TanAI", "...", false)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Zero(t, rec.count(), "a stalled reply is marked, not regenerated")

	got, err := store.Get(m.ID)
	require.NoError(t, err)
	require.True(t, generate.Failed(got))
	require.Contains(t, got.Body, "stalled before completion")

	// The next sweep picks the now-marked reply up as a repair candidate.
	n, err = s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSweepAnnotatesHumanIncomplete(t *testing.T) {
	s, rec, _ := testSweeper(t)
	m, err := store.Append("bob", "half-typed", false)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Zero(t, rec.count())

	got, err := store.Get(m.ID)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(got.Body, StuckSuffix))
	require.False(t, got.Complete)

	// Annotation is idempotent across sweeps.
	n, err = s.Sweep()
	require.NoError(t, err)
	require.Zero(t, n)
	got2, err := store.Get(m.ID)
	require.NoError(t, err)
	require.Equal(t, got.Body, got2.Body)
}

func TestSweepBackoffSpreadsRepairs(t *testing.T) {
	s, rec, cfg := testSweeper(t)
	cfg.Repair.BackoffEvery = 1
	cfg.Repair.BackoffStepMS = 40

	_, err := store.Append("alice", "context", true)
	require.NoError(t, err)
	failedReply(t, "a")
	failedReply(t, "b")
	failedReply(t, "c")

	start := time.Now()
	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// Delays are 0ms, 40ms, 80ms.
	require.Eventually(t, func() bool { return rec.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
