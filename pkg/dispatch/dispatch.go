// Package dispatch inspects posted messages for the AI trigger and magic
// command suffixes and routes them to generation or maintenance.
package dispatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tanchat/pkg/config"
	"tanchat/pkg/generate"
	"tanchat/pkg/logger"
	"tanchat/pkg/maintenance"
	"tanchat/pkg/repair"
	"tanchat/pkg/schedule"
	"tanchat/pkg/store"
	"tanchat/pkg/window"
)

// Command is the dispatch decision for one posted message.
type Command int

const (
	// CmdNone: no trigger marker present; the post is plain chat.
	CmdNone Command = iota
	CmdGenerate
	CmdReset
	CmdDeleteBatch
	CmdRepair
)

const (
	suffixReset  = "*RESET*"
	suffixDelete = "*DEL*"
	suffixRepair = "*FIX*"
)

// magicShape matches anything that looks like a trailing magic command.
var magicShape = regexp.MustCompile(`\*[A-Za-z]+\*$`)

// ErrBadCommand reports a magic-looking suffix outside the recognized set.
var ErrBadCommand = errors.New("unrecognized magic command suffix")

// ParseCommand decides what a posted body asks for. A magic-looking suffix
// outside the recognized set is an error, not a silent no-op, so
// misconfiguration surfaces instead of producing a malformed reply.
func ParseCommand(body, trigger string) (Command, error) {
	if !strings.Contains(body, trigger) {
		return CmdNone, nil
	}
	trimmed := strings.TrimSpace(body)
	switch {
	case strings.HasSuffix(trimmed, suffixReset):
		return CmdReset, nil
	case strings.HasSuffix(trimmed, suffixDelete):
		return CmdDeleteBatch, nil
	case strings.HasSuffix(trimmed, suffixRepair):
		return CmdRepair, nil
	}
	if sfx := magicShape.FindString(trimmed); sfx != "" {
		return CmdNone, fmt.Errorf("%w: %q", ErrBadCommand, sfx)
	}
	return CmdGenerate, nil
}

// Dispatcher routes posted messages.
type Dispatcher struct {
	cfg     *config.Config
	sched   *schedule.Scheduler
	sweeper *repair.Sweeper
}

// New builds a Dispatcher.
func New(cfg *config.Config, sched *schedule.Scheduler, sweeper *repair.Sweeper) *Dispatcher {
	return &Dispatcher{cfg: cfg, sched: sched, sweeper: sweeper}
}

// HandlePost appends the posted message and runs whatever it triggers.
func (d *Dispatcher) HandlePost(author, body string) error {
	if _, err := store.Append(author, body, true); err != nil {
		return err
	}
	cmd, err := ParseCommand(body, d.cfg.Chat.Trigger)
	if err != nil {
		return err
	}
	switch cmd {
	case CmdNone:
		return nil
	case CmdReset:
		return maintenance.ResetLog(d.cfg.Chat.SeedAuthor, d.cfg.Chat.SeedBody)
	case CmdDeleteBatch:
		return maintenance.DeleteLastBatch(nil, d.cfg.Chat.DeleteBatch)
	case CmdRepair:
		n, err := d.sweeper.Sweep()
		if err != nil {
			return err
		}
		_, err = store.Append(d.cfg.Chat.Responder, fmt.Sprintf("Repair sweep done: %d message(s) handled.", n), true)
		return err
	case CmdGenerate:
		return d.scheduleGeneration()
	}
	return nil
}

// scheduleGeneration snapshots the live context window, inserts the
// placeholder reply and schedules the generation task at zero delay.
func (d *Dispatcher) scheduleGeneration() error {
	ctxMsgs, werr := window.SelectComplete(d.cfg.Chat.ContextWindow)
	if werr != nil && !errors.Is(werr, window.ErrNoUsableContext) {
		return werr
	}

	ph, err := store.Append(d.cfg.Chat.Responder, d.cfg.Chat.Placeholder, false)
	if err != nil {
		return err
	}

	// An emptied window is a precondition failure: the placeholder still
	// resolves to Failed rather than being left orphaned.
	if errors.Is(werr, window.ErrNoUsableContext) {
		if err := generate.Fail(ph.ID, "empty context window"); err != nil {
			return err
		}
		return werr
	}

	job := generate.Job{MessageID: ph.ID, Turns: generate.Turns(ctxMsgs, d.cfg.Chat.Responder)}
	payload, err := generate.EncodeJob(job)
	if err != nil {
		return err
	}
	d.sched.After(0, generate.TaskName, ph.ID, payload)
	logger.Info("generation_scheduled", "msg_id", ph.ID, "context", len(ctxMsgs))
	return nil
}
