package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gantry/internal/anonymize"
	"gantry/internal/artifact"
	"gantry/internal/hoststore"
	"gantry/internal/orchestrator"
	"gantry/internal/registry"
	"gantry/internal/workflow"
)

// fakeClock sleeps instantly so bounded poll loops run in microseconds.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

type stubOrchestrator struct {
	mu         sync.Mutex
	submitErrs []error
	submits    int
	states     []pollStep
	polls      int
}

type pollStep struct {
	status *orchestrator.Status
	err    error
}

var _ orchestrator.Submitter = (*stubOrchestrator)(nil)

func (s *stubOrchestrator) Submit(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	if len(s.submitErrs) > 0 {
		err := s.submitErrs[0]
		s.submitErrs = s.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &orchestrator.Submission{JobID: "job-" + req.RunID, DAGID: "triage_pipeline"}, nil
}

func (s *stubOrchestrator) Poll(ctx context.Context, jobID string) (*orchestrator.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if len(s.states) == 0 {
		return &orchestrator.Status{State: orchestrator.StateRunning}, nil
	}
	step := s.states[0]
	if len(s.states) > 1 {
		s.states = s.states[1:]
	}
	return step.status, step.err
}

func (s *stubOrchestrator) submitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

type stubHost struct {
	mu       sync.Mutex
	fetches  []string
	uploads  []*artifact.Bundle
	metadata []map[string]any
	fetchErr error
	upErr    error
}

var _ hoststore.Store = (*stubHost)(nil)

func (h *stubHost) FetchItem(ctx context.Context, itemID, destDir string) (string, error) {
	h.mu.Lock()
	h.fetches = append(h.fetches, itemID)
	err := h.fetchErr
	h.mu.Unlock()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, itemID+".zip")
	return path, os.WriteFile(path, []byte("container"), 0o644)
}

func (h *stubHost) UploadBundle(ctx context.Context, itemID string, bundle *artifact.Bundle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.upErr != nil {
		return h.upErr
	}
	h.uploads = append(h.uploads, bundle)
	return nil
}

func (h *stubHost) SetMetadata(ctx context.Context, itemID string, metadata map[string]any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metadata = append(h.metadata, metadata)
	return nil
}

func (h *stubHost) uploadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.uploads)
}

func (h *stubHost) lastMetadata() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.metadata) == 0 {
		return nil
	}
	return h.metadata[len(h.metadata)-1]
}

// stubProcessor produces a deterministic single-image bundle without DICOM
// fixtures.
func stubProcessor(t *testing.T) workflow.Processor {
	t.Helper()
	return func(ctx context.Context, itemID, runID, containerPath string) (*artifact.Bundle, error) {
		slice := anonymize.Slice{
			Source:   "IM0001.dcm",
			Rows:     2,
			Cols:     2,
			Data:     []int{0, 1, 2, 3},
			Metadata: map[string]string{"Modality": "MR"},
		}
		return artifact.Package([]anonymize.Slice{slice}, artifact.Provenance{
			ItemID:    itemID,
			RunID:     runID,
			CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		})
	}
}

// waitForState polls the store until the run reaches the wanted state.
func waitForState(t *testing.T, store *registry.Store, runID string, want registry.State) *registry.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := store.Get(context.Background(), runID)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if record != nil && record.State == want {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	record, _ := store.Get(context.Background(), runID)
	t.Fatalf("run %s never reached %s (current: %+v)", runID, want, record)
	return nil
}
