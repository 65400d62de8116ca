package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gantry/internal/config"
	"gantry/internal/hoststore"
	"gantry/internal/logging"
	"gantry/internal/orchestrator"
	"gantry/internal/registry"
)

// submitAttempts bounds retries for transient submission failures before the
// run is declared failed.
const submitAttempts = 3

// Manager drives triage runs: registry-guarded triggering, per-run pipeline
// execution, orchestrator submission and polling, terminal write-back.
// Stages within one run are sequential; runs for distinct items proceed
// concurrently.
type Manager struct {
	cfg     *config.Config
	store   *registry.Store
	orch    orchestrator.Submitter
	host    hoststore.Store
	logger  *slog.Logger
	clock   Clock
	process Processor

	pollInterval time.Duration
	maxAttempts  int

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock substitutes the wall clock, used by tests for deterministic
// polling.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithProcessor substitutes the container-to-bundle pipeline.
func WithProcessor(process Processor) ManagerOption {
	return func(m *Manager) {
		if process != nil {
			m.process = process
		}
	}
}

// NewManager constructs a workflow manager. When no processor option is
// supplied the full local pipeline is built from configuration.
func NewManager(cfg *config.Config, store *registry.Store, orch orchestrator.Submitter, host hoststore.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		orch:         orch,
		host:         host,
		logger:       logger,
		clock:        SystemClock(),
		pollInterval: time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second,
		maxAttempts:  cfg.Workflow.MaxPollAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.process == nil {
		process, err := NewProcessor(cfg, logger)
		if err != nil {
			return nil, err
		}
		m.process = process
	}
	return m, nil
}

// Start accepts triggers and hosts their pipeline goroutines until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	return nil
}

// Stop cancels in-flight runs and waits for their goroutines to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// TriggerResult is the immediate answer to a trigger request.
type TriggerResult struct {
	Disposition registry.Disposition
	Record      *registry.Record
	Warning     string
}

// Trigger requests a triage run for an item. A new run launches its pipeline
// asynchronously; an in-flight or completed run short-circuits to the
// existing record.
func (m *Manager) Trigger(ctx context.Context, itemID string, force bool) (*TriggerResult, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil, errors.New("workflow not started")
	}
	runCtx := m.runCtx
	m.mu.Unlock()

	disposition, record, err := m.store.Trigger(ctx, itemID, force)
	if err != nil {
		return nil, err
	}

	result := &TriggerResult{Disposition: disposition, Record: record}
	switch disposition {
	case registry.DispositionInProgress:
		result.Warning = "a run for this item is already in flight"
		return result, nil
	case registry.DispositionAlreadyDone:
		result.Warning = "item already processed; use force to re-run"
		return result, nil
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runPipeline(runCtx, record)
	}()
	return result, nil
}

// Status returns the current record for a run, refreshing a running record
// from the orchestrator when possible.
func (m *Manager) Status(ctx context.Context, runID string) (*registry.Record, error) {
	record, err := m.store.Get(ctx, runID)
	if err != nil || record == nil {
		return record, err
	}
	if record.State != registry.StateRunning || record.JobID == "" {
		return record, nil
	}

	status, pollErr := m.orch.Poll(ctx, record.JobID)
	if pollErr != nil {
		// The stored record is still authoritative.
		return record, nil
	}

	switch status.State {
	case orchestrator.StateSucceeded:
		m.finalize(ctx, record)
	case orchestrator.StateFailed:
		m.fail(ctx, record, errors.New("orchestrator reported failure"))
	default:
		_ = m.store.UpdateProgress(ctx, runID, status.Progress.Percent, status.Progress.Label)
	}
	return m.store.Get(ctx, runID)
}

// List returns all run records.
func (m *Manager) List(ctx context.Context) ([]*registry.Record, error) {
	return m.store.List(ctx)
}
