package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gantry/internal/registry"
	"gantry/internal/testsupport"
)

func TestTriggerCreatesRun(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	disposition, record, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if disposition != registry.DispositionStarted {
		t.Fatalf("expected started, got %s", disposition)
	}
	if record.RunID == "" || record.State != registry.StateTriggered {
		t.Fatalf("unexpected record %+v", record)
	}

	fetched, err := store.Get(ctx, record.RunID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.ItemID != "item-1" {
		t.Fatalf("unexpected fetched record %+v", fetched)
	}
}

func TestTriggerInFlightIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, first, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkRunning(ctx, first.RunID, "job-1", "dag-1"); err != nil {
		t.Fatal(err)
	}

	disposition, second, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if disposition != registry.DispositionInProgress {
		t.Fatalf("expected in_progress, got %s", disposition)
	}
	if second.RunID != first.RunID {
		t.Fatalf("expected same run, got %s and %s", first.RunID, second.RunID)
	}
}

func TestTriggerAlreadyDone(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, record, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkRunning(ctx, record.RunID, "job-1", "dag-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkTerminal(ctx, record.RunID, registry.StateSucceeded, ""); err != nil {
		t.Fatal(err)
	}

	disposition, prior, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if disposition != registry.DispositionAlreadyDone {
		t.Fatalf("expected already_processed, got %s", disposition)
	}
	if prior.RunID != record.RunID {
		t.Fatalf("expected prior record returned")
	}

	// Forced re-run clears the prior record and starts fresh.
	disposition, fresh, err := store.Trigger(ctx, "item-1", true)
	if err != nil {
		t.Fatal(err)
	}
	if disposition != registry.DispositionStarted {
		t.Fatalf("expected started after force, got %s", disposition)
	}
	if fresh.RunID == record.RunID {
		t.Fatal("forced re-run should create a new run")
	}
}

func TestTriggerAfterFailureStartsNewRun(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, record, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkRunning(ctx, record.RunID, "job-1", "dag-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkTerminal(ctx, record.RunID, registry.StateFailed, "orchestrator reported failure"); err != nil {
		t.Fatal(err)
	}

	disposition, fresh, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if disposition != registry.DispositionStarted {
		t.Fatalf("failed items should retrigger, got %s", disposition)
	}
	if fresh.RunID == record.RunID {
		t.Fatal("expected a fresh run id")
	}
}

func TestConcurrentTriggersCreateOneRun(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	const concurrency = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
		runIDs  = map[string]struct{}{}
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			disposition, record, err := store.Trigger(ctx, "item-1", false)
			if err != nil {
				t.Errorf("Trigger failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if disposition == registry.DispositionStarted {
				started++
			}
			runIDs[record.RunID] = struct{}{}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Fatalf("expected exactly one started disposition, got %d", started)
	}
	if len(runIDs) != 1 {
		t.Fatalf("expected all triggers to observe one run, got %d", len(runIDs))
	}
}

func TestIllegalTransitions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, record, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}

	// Terminal before running is illegal.
	err = store.MarkTerminal(ctx, record.RunID, registry.StateSucceeded, "")
	if !errors.Is(err, registry.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}

	if err := store.MarkRunning(ctx, record.RunID, "job-1", "dag-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkTerminal(ctx, record.RunID, registry.StateSucceeded, ""); err != nil {
		t.Fatal(err)
	}

	// No transitions out of a terminal state.
	err = store.MarkRunning(ctx, record.RunID, "job-2", "dag-1")
	if !errors.Is(err, registry.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition from terminal, got %v", err)
	}
	err = store.MarkTerminal(ctx, record.RunID, registry.StateFailed, "late failure")
	if !errors.Is(err, registry.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition from terminal, got %v", err)
	}

	// Non-terminal outcome is rejected outright.
	err = store.MarkTerminal(ctx, record.RunID, registry.StateRunning, "")
	if !errors.Is(err, registry.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition for non-terminal outcome, got %v", err)
	}
}

func TestClearAllowsRetrigger(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, record, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkRunning(ctx, record.RunID, "job-1", "dag-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkTerminal(ctx, record.RunID, registry.StateSucceeded, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(ctx, "item-1"); err != nil {
		t.Fatal(err)
	}

	disposition, _, err := store.Trigger(ctx, "item-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if disposition != registry.DispositionStarted {
		t.Fatalf("expected fresh start after clear, got %s", disposition)
	}
}

func TestListAndGetByItem(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, item := range []string{"item-1", "item-2", "item-3"} {
		if _, _, err := store.Trigger(ctx, item, false); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	record, err := store.GetByItem(ctx, "item-2")
	if err != nil {
		t.Fatal(err)
	}
	if record == nil || record.ItemID != "item-2" {
		t.Fatalf("unexpected record %+v", record)
	}

	missing, err := store.GetByItem(ctx, "item-9")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown item, got %+v", missing)
	}
}
