package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"tanchat/pkg/logger"
)

// StartCron runs the sweep on the configured cron schedule. Returns a
// cancel func; a no-op cancel when no cron is configured.
func (s *Sweeper) StartCron(ctx context.Context) (context.CancelFunc, error) {
	expr := s.cfg.Repair.Cron
	if expr == "" {
		logger.Info("repair_cron_disabled")
		return func() {}, nil
	}
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid repair cron expression: %s", expr)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go s.runCron(ctx2, expr)
	logger.Info("repair_cron_started", "cron", expr)
	return cancel, nil
}

func (s *Sweeper) runCron(ctx context.Context, expr string) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(expr, now, false)
		if err != nil {
			logger.Error("repair_cron_next_tick_failed", "cron", expr, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("repair_cron_stopping")
			return
		case <-time.After(next.Sub(now)):
		}
		if n, err := s.Sweep(); err != nil {
			logger.Error("repair_cron_sweep_failed", "error", err)
		} else if n > 0 {
			logger.Info("repair_cron_sweep", "candidates", n)
		}
	}
}
