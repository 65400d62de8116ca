package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"gantry/internal/artifact"
	"gantry/internal/logging"
	"gantry/internal/orchestrator"
	"gantry/internal/registry"
	"gantry/internal/services"
)

func (m *Manager) runPipeline(ctx context.Context, record *registry.Record) {
	ctx = services.WithItemID(ctx, record.ItemID)
	ctx = services.WithRunID(ctx, record.RunID)
	logger := logging.WithContext(ctx, m.logger)

	logger.Info("triage run started")

	fetchDir := filepath.Join(m.cfg.Paths.WorkDir, "items", record.RunID)
	containerPath, err := m.host.FetchItem(ctx, record.ItemID, fetchDir)
	if err != nil {
		m.fail(ctx, record, err)
		return
	}
	defer func() {
		_ = os.RemoveAll(fetchDir)
	}()

	bundle, err := m.process(ctx, record.ItemID, record.RunID, containerPath)
	if err != nil {
		m.fail(ctx, record, err)
		return
	}

	stagingDir := m.stagingDir(record.RunID)
	if _, err := bundle.WriteTo(stagingDir); err != nil {
		m.fail(ctx, record, err)
		return
	}
	logger.Info("artifact staged",
		slog.Int("images", len(bundle.Images)),
		slog.String("staging_dir", stagingDir))

	submission, err := m.submit(ctx, orchestrator.SubmitRequest{
		ItemID:    record.ItemID,
		RunID:     record.RunID,
		BundleRef: stagingDir,
		Parameters: map[string]any{
			"image_count": len(bundle.Images),
		},
	})
	if err != nil {
		m.fail(ctx, record, err)
		return
	}
	if err := m.store.MarkRunning(ctx, record.RunID, submission.JobID, submission.DAGID); err != nil {
		m.fail(ctx, record, err)
		return
	}
	logger.Info("run submitted",
		slog.String(logging.FieldJobID, submission.JobID),
		slog.String("dag_id", submission.DAGID))

	poller := Poller{
		Orchestrator: m.orch,
		Store:        m.store,
		Interval:     m.pollInterval,
		MaxAttempts:  m.maxAttempts,
		Clock:        m.clock,
		Logger:       logger,
	}
	state, err := poller.Wait(ctx, record.RunID, submission.JobID)
	switch {
	case errors.Is(err, ErrStatusUnavailable):
		// Soft outcome: the record stays running for a later status query.
		logger.Warn("poll budget exhausted; run status unavailable",
			slog.Int("attempts", m.maxAttempts))
		return
	case err != nil:
		logger.Warn("polling aborted", slog.String("error", err.Error()))
		return
	case state == orchestrator.StateSucceeded:
		m.finalize(ctx, record)
	default:
		m.fail(ctx, record, errors.New("orchestrator reported failure"))
	}
}

// submit retries transient submission failures a bounded number of times.
// Explicit rejections fail immediately.
func (m *Manager) submit(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.Submission, error) {
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		submission, err := m.orch.Submit(ctx, req)
		if err == nil {
			return submission, nil
		}
		lastErr = err
		if !services.Retryable(err) {
			return nil, err
		}
		if attempt < submitAttempts {
			if sleepErr := m.clock.Sleep(ctx, m.pollInterval); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, lastErr
}

// finalize writes the staged bundle back to the host store and marks the run
// succeeded. Write-back failure fails the run; the staged bundle is removed
// either way so no partial artifact outlives the run.
func (m *Manager) finalize(ctx context.Context, record *registry.Record) {
	logger := logging.WithContext(ctx, m.logger)
	stagingDir := m.stagingDir(record.RunID)

	bundle, err := artifact.ReadBundle(stagingDir)
	if err != nil {
		m.fail(ctx, record, err)
		return
	}
	if err := m.host.UploadBundle(ctx, record.ItemID, bundle); err != nil {
		m.fail(ctx, record, err)
		return
	}
	if err := m.host.SetMetadata(ctx, record.ItemID, map[string]any{
		"triage_status": string(registry.StateSucceeded),
		"triage_run_id": record.RunID,
	}); err != nil {
		logger.Warn("status metadata write-back failed", slog.String("error", err.Error()))
	}

	if err := m.store.MarkTerminal(ctx, record.RunID, registry.StateSucceeded, ""); err != nil {
		logger.Error("mark succeeded failed", slog.String("error", err.Error()))
		return
	}
	_ = os.RemoveAll(stagingDir)
	logger.Info("triage run succeeded", slog.Int("images", len(bundle.Images)))
}

func (m *Manager) fail(ctx context.Context, record *registry.Record, cause error) {
	logger := logging.WithContext(ctx, m.logger)
	logger.Error("triage run failed", slog.String("error", cause.Error()))

	// Remove any staged artifact so failed runs leave nothing behind.
	_ = os.RemoveAll(m.stagingDir(record.RunID))

	if err := m.store.MarkTerminal(ctx, record.RunID, registry.StateFailed, cause.Error()); err != nil {
		if !errors.Is(err, registry.ErrIllegalTransition) {
			logger.Error("mark failed errored", slog.String("error", err.Error()))
			return
		}
		// The run never reached running; promote it first so the terminal
		// transition is legal.
		if err := m.store.MarkRunning(ctx, record.RunID, record.JobID, record.DAGID); err != nil {
			logger.Error("mark failed errored", slog.String("error", err.Error()))
			return
		}
		if err := m.store.MarkTerminal(ctx, record.RunID, registry.StateFailed, cause.Error()); err != nil {
			logger.Error("mark failed errored", slog.String("error", err.Error()))
			return
		}
	}

	if err := m.host.SetMetadata(ctx, record.ItemID, map[string]any{
		"triage_status": string(registry.StateFailed),
		"triage_run_id": record.RunID,
		"triage_error":  cause.Error(),
	}); err != nil {
		logger.Warn("status metadata write-back failed", slog.String("error", err.Error()))
	}
}

func (m *Manager) stagingDir(runID string) string {
	return filepath.Join(m.cfg.Paths.WorkDir, "staging", runID)
}
