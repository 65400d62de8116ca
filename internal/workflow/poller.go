package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gantry/internal/logging"
	"gantry/internal/orchestrator"
	"gantry/internal/registry"
)

// ErrStatusUnavailable reports that the poll budget was exhausted without a
// terminal orchestrator state. The run is not failed: its record stays
// running so a later status query can still resolve it.
var ErrStatusUnavailable = errors.New("status unavailable")

// Poller watches a submitted orchestrator run with a fixed interval and a
// bounded attempt budget.
type Poller struct {
	Orchestrator orchestrator.Submitter
	Store        *registry.Store
	Interval     time.Duration
	MaxAttempts  int
	Clock        Clock
	Logger       *slog.Logger
}

// Wait polls until the orchestrator reports a terminal state or the attempt
// budget runs out. Poll failures count as attempts and are observed as
// "unknown" rather than run failure. Progress observations are persisted on
// the run record as they arrive.
func (p Poller) Wait(ctx context.Context, runID, jobID string) (orchestrator.State, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := p.Clock
	if clock == nil {
		clock = SystemClock()
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return orchestrator.StateUnknown, err
		}

		status, err := p.Orchestrator.Poll(ctx, jobID)
		switch {
		case err != nil:
			logger.Warn("status poll failed",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", p.MaxAttempts),
				slog.String("error", err.Error()))
		case status.State.Terminal():
			_ = p.Store.UpdateProgress(ctx, runID, status.Progress.Percent, status.Progress.Label)
			return status.State, nil
		default:
			if updateErr := p.Store.UpdateProgress(ctx, runID, status.Progress.Percent, status.Progress.Label); updateErr != nil {
				logger.Warn("progress update failed", slog.String("error", updateErr.Error()))
			}
			logger.Debug("run in progress",
				slog.String("state", string(status.State)),
				slog.Float64("progress_percent", status.Progress.Percent),
				slog.Int("attempt", attempt))
		}

		if attempt < p.MaxAttempts {
			if err := clock.Sleep(ctx, p.Interval); err != nil {
				return orchestrator.StateUnknown, err
			}
		}
	}
	return orchestrator.StateUnknown, ErrStatusUnavailable
}
