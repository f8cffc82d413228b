package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"tanchat/pkg/config"
	"tanchat/pkg/models"
	"tanchat/pkg/provider"
	"tanchat/pkg/store"
)

// fakeGen replays a scripted stream: deltas first, then the terminal error
// (nil for a clean end-of-stream).
type fakeGen struct {
	deltas []string
	err    error
}

func (f *fakeGen) Stream(ctx context.Context, turns []provider.Turn) (<-chan string, <-chan error) {
	content := make(chan string, len(f.deltas))
	errs := make(chan error, 1)
	for _, d := range f.deltas {
		content <- d
	}
	close(content)
	if f.err != nil {
		errs <- f.err
	}
	close(errs)
	return content, errs
}

func testOrchestrator(t *testing.T, gen Generator) *Orchestrator {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Chat.ChunkFlush = 5
	return New(cfg, gen)
}

func placeholder(t *testing.T) string {
	t.Helper()
	m, err := store.Append("TanAI", "...", false)
	require.NoError(t, err)
	return m.ID
}

func TestExecuteStreamsAndCompletes(t *testing.T) {
	o := testOrchestrator(t, &fakeGen{deltas: []string{"It is ", "half ", "past ", "ten."}})
	id := placeholder(t)

	job := Job{MessageID: id, Turns: []provider.Turn{{Role: "user", Content: "what time is it"}}}
	require.NoError(t, o.Execute(context.Background(), job))

	got, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "It is half past ten.", got.Body)
	require.True(t, got.Complete)
}

func TestExecuteSingleDeltaBelowFlush(t *testing.T) {
	// A reply shorter than the flush threshold must still get its terminal
	// patch; the body comes through in one write.
	o := testOrchestrator(t, &fakeGen{deltas: []string{"ok"}})
	id := placeholder(t)

	job := Job{MessageID: id, Turns: []provider.Turn{{Role: "user", Content: "ack?"}}}
	require.NoError(t, o.Execute(context.Background(), job))

	got, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "ok", got.Body)
	require.True(t, got.Complete)
}

func TestExecuteAPIErrorBecomesFailed(t *testing.T) {
	o := testOrchestrator(t, &fakeGen{err: &provider.APIError{Status: 500, Message: "upstream exploded"}})
	id := placeholder(t)

	job := Job{MessageID: id, Turns: []provider.Turn{{Role: "user", Content: "hi"}}}
	require.NoError(t, o.Execute(context.Background(), job), "provider failures resolve the reply, not the task")

	got, err := store.Get(id)
	require.NoError(t, err)
	require.True(t, Failed(got))
	require.Equal(t, FailureMarker+"upstream exploded", got.Body)
}

func TestExecutePartialStreamThenAPIError(t *testing.T) {
	// Deltas already flushed are overwritten by the failure diagnostic.
	o := testOrchestrator(t, &fakeGen{
		deltas: []string{"partial answer that flushed"},
		err:    &provider.APIError{Message: "connection reset"},
	})
	id := placeholder(t)

	job := Job{MessageID: id, Turns: []provider.Turn{{Role: "user", Content: "hi"}}}
	require.NoError(t, o.Execute(context.Background(), job))

	got, err := store.Get(id)
	require.NoError(t, err)
	require.True(t, Failed(got))
}

func TestExecuteNonAPIErrorPropagates(t *testing.T) {
	boom := errors.New("handler bug")
	o := testOrchestrator(t, &fakeGen{err: boom})
	id := placeholder(t)

	job := Job{MessageID: id, Turns: []provider.Turn{{Role: "user", Content: "hi"}}}
	require.ErrorIs(t, o.Execute(context.Background(), job), boom)

	got, err := store.Get(id)
	require.NoError(t, err)
	require.False(t, got.Complete)
	require.False(t, Failed(got), "only provider errors produce the failure marker")
}

func TestExecuteEmptyTurns(t *testing.T) {
	o := testOrchestrator(t, &fakeGen{})
	id := placeholder(t)

	err := o.Execute(context.Background(), Job{MessageID: id})
	require.ErrorIs(t, err, ErrEmptyContext)

	got, gerr := store.Get(id)
	require.NoError(t, gerr)
	require.True(t, Failed(got))
}

func TestExecuteMissingMessage(t *testing.T) {
	o := testOrchestrator(t, &fakeGen{deltas: []string{"hi"}})
	err := o.Execute(context.Background(), Job{MessageID: "m-00000000000000000000-000000", Turns: []provider.Turn{{Role: "user", Content: "x"}}})
	require.Error(t, err)
}

func TestHandleTaskRoundTrip(t *testing.T) {
	o := testOrchestrator(t, &fakeGen{deltas: []string{"pong"}})
	id := placeholder(t)

	payload, err := EncodeJob(Job{MessageID: id, Turns: []provider.Turn{{Role: "user", Content: "ping"}}})
	require.NoError(t, err)
	require.NoError(t, o.HandleTask(context.Background(), payload))

	got, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "pong", got.Body)
	require.True(t, got.Complete)
}

func TestTurnsRoleMapping(t *testing.T) {
	msgs := []models.Message{
		{Author: "alice", Body: "hi"},
		{Author: "TanAI", Body: "hello"},
		{Author: "bob", Body: "yo"},
	}
	turns := Turns(msgs, "TanAI")
	require.Equal(t, []provider.Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "yo"},
	}, turns)
}
