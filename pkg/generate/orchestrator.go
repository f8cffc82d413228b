// Package generate owns the lifecycle of an AI reply: placeholder creation,
// chunked streaming persistence and the terminal completion or failure
// patch.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"tanchat/pkg/config"
	"tanchat/pkg/logger"
	"tanchat/pkg/models"
	"tanchat/pkg/provider"
	"tanchat/pkg/store"
)

// FailureMarker prefixes the diagnostic body of a reply whose generation
// failed. The repair sweep keys off this exact prefix.
const FailureMarker = "OpenAI call failed: "

// TaskName identifies generation jobs in the scheduler.
const TaskName = "generate"

// ErrEmptyContext reports that a generation job had no usable context. The
// placeholder is still resolved to Failed before this is returned.
var ErrEmptyContext = errors.New("generation context is empty")

// Generator is the streaming text generator consumed by the orchestrator.
type Generator interface {
	Stream(ctx context.Context, turns []provider.Turn) (<-chan string, <-chan error)
}

// Job is the payload of one scheduled generation task: the placeholder to
// fill and the context snapshot taken when the task was issued.
type Job struct {
	MessageID string          `json:"message_id"`
	Turns     []provider.Turn `json:"turns"`
}

// EncodeJob serializes a job for the scheduler payload.
func EncodeJob(j Job) ([]byte, error) { return json.Marshal(j) }

// DecodeJob parses a scheduler payload back into a job.
func DecodeJob(b []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(b, &j)
	return j, err
}

// Turns converts a context window into role-tagged turns. Messages authored
// by the responder become assistant turns, everything else user turns.
func Turns(msgs []models.Message, responder string) []provider.Turn {
	out := make([]provider.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Author == responder {
			role = "assistant"
		}
		out = append(out, provider.Turn{Role: role, Content: m.Body})
	}
	return out
}

// Failed reports whether a message is a failed reply: incomplete with the
// marked diagnostic body. Scheduling is the sole admission point for the
// single-writer invariant; besides a placeholder created in the same call,
// only a Failed reply may be (re)scheduled, never one still streaming.
func Failed(m models.Message) bool {
	return !m.Complete && strings.HasPrefix(m.Body, FailureMarker)
}

// Orchestrator runs generation jobs against the store.
type Orchestrator struct {
	gen        Generator
	chunkFlush int
}

// New builds an Orchestrator using the configured chunk flush threshold.
func New(cfg *config.Config, gen Generator) *Orchestrator {
	return &Orchestrator{gen: gen, chunkFlush: cfg.Chat.ChunkFlush}
}

func patchBody(id, body string, complete bool) error {
	return store.Patch(id, &body, &complete)
}

// Fail resolves a placeholder to the Failed state with a marked diagnostic
// body, leaving it incomplete for the repair sweep.
func Fail(id, reason string) error {
	return patchBody(id, FailureMarker+reason, false)
}

// Execute runs one generation job to completion or failure. Upstream
// provider errors become a Failed reply and a nil return; any other error
// (store failures included) propagates to the scheduler as a failed task.
func (o *Orchestrator) Execute(ctx context.Context, job Job) error {
	if _, err := store.Get(job.MessageID); err != nil {
		return err
	}
	if len(job.Turns) == 0 {
		if err := Fail(job.MessageID, "empty context window"); err != nil {
			return err
		}
		return ErrEmptyContext
	}

	content, errs := o.gen.Stream(ctx, job.Turns)

	var body strings.Builder
	unflushed := 0
	for delta := range content {
		body.WriteString(delta)
		unflushed += len(delta)
		if unflushed > o.chunkFlush {
			if err := patchBody(job.MessageID, body.String(), false); err != nil {
				return err
			}
			unflushed = 0
		}
	}

	if err := <-errs; err != nil {
		var apiErr *provider.APIError
		if !errors.As(err, &apiErr) {
			return err
		}
		generationsFailed.Inc()
		logger.Error("generation_failed", "msg_id", job.MessageID, "error", apiErr.Message)
		return Fail(job.MessageID, apiErr.Message)
	}

	// The terminal patch always runs, even when every chunk was already
	// flushed, so the completion flag flips exactly once at the end.
	if err := patchBody(job.MessageID, body.String(), true); err != nil {
		return err
	}
	generationsDone.Inc()
	logger.Info("generation_completed", "msg_id", job.MessageID, "body_len", body.Len())
	return nil
}

// HandleTask is the scheduler entry point for generation jobs.
func (o *Orchestrator) HandleTask(ctx context.Context, payload []byte) error {
	job, err := DecodeJob(payload)
	if err != nil {
		return err
	}
	return o.Execute(ctx, job)
}
