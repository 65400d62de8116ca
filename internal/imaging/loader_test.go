package imaging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gantry/internal/imaging"
)

func writeGarbage(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("not a dicom file"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSeriesEmptyContainer(t *testing.T) {
	dir := t.TempDir()
	_, err := imaging.LoadSeries(context.Background(), "item-1", dir, imaging.LoadOptions{})
	if !errors.Is(err, imaging.ErrEmptySeries) {
		t.Fatalf("expected empty-series error, got %v", err)
	}
}

func TestLoadSeriesAllUnreadable(t *testing.T) {
	dir := t.TempDir()
	writeGarbage(t, dir, "one.dcm")
	writeGarbage(t, dir, "two.dcm")

	_, err := imaging.LoadSeries(context.Background(), "item-1", dir, imaging.LoadOptions{
		MaxUnreadableFraction: 0.5,
	})
	if !errors.Is(err, imaging.ErrEmptySeries) {
		t.Fatalf("expected empty-series error when nothing decodes, got %v", err)
	}
}

func TestLoadSeriesMissingContainer(t *testing.T) {
	_, err := imaging.LoadSeries(context.Background(), "item-1",
		filepath.Join(t.TempDir(), "absent"), imaging.LoadOptions{})
	if !errors.Is(err, imaging.ErrMalformedContainer) {
		t.Fatalf("expected malformed-container error, got %v", err)
	}
}

func TestLoadSeriesMalformedArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "study.zip")
	if err := os.WriteFile(zipPath, []byte("definitely not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := imaging.LoadSeries(context.Background(), "item-1", zipPath, imaging.LoadOptions{})
	if !errors.Is(err, imaging.ErrMalformedContainer) {
		t.Fatalf("expected malformed-container error, got %v", err)
	}
}

func TestLoadSeriesIgnoresNonCandidateFiles(t *testing.T) {
	dir := t.TempDir()
	writeGarbage(t, dir, "notes.txt")
	writeGarbage(t, dir, "report.json")

	_, err := imaging.LoadSeries(context.Background(), "item-1", dir, imaging.LoadOptions{})
	if !errors.Is(err, imaging.ErrEmptySeries) {
		t.Fatalf("expected empty-series error when only non-DICOM files present, got %v", err)
	}
}

func TestLoadSeriesHonorsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeGarbage(t, dir, "one.dcm")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := imaging.LoadSeries(ctx, "item-1", dir, imaging.LoadOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
