package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gantry/internal/anonymize"
	"gantry/internal/imaging"
	"gantry/internal/selection"
)

// ManifestName is the filename the manifest is materialized under.
const ManifestName = "manifest.json"

// Record links one encoded image to its retained, non-identifying metadata.
type Record struct {
	Image           string             `json:"image"`
	SourceFile      string             `json:"source_file"`
	Index           int                `json:"index"`
	Metadata        map[string]string  `json:"metadata"`
	RedactedRegions []anonymize.Region `json:"redacted_regions,omitempty"`
}

// Manifest summarizes the processing run for audit.
type Manifest struct {
	ItemID      string                `json:"item_id"`
	RunID       string                `json:"run_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Selection   selection.Result      `json:"selection"`
	Records     []Record              `json:"records"`
	Skipped     []imaging.SkippedFile `json:"skipped_files,omitempty"`
	Parameters  map[string]string     `json:"parameters,omitempty"`
}

// WriteTo materializes the bundle into dir for upload staging and returns the
// written paths, manifest last.
func (b *Bundle) WriteTo(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle directory: %w", err)
	}

	var paths []string
	for _, img := range b.Images {
		path := filepath.Join(dir, img.Name)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write image %s: %w", img.Name, err)
		}
		paths = append(paths, path)
	}

	manifest, err := json.MarshalIndent(b.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(manifestPath, manifest, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return append(paths, manifestPath), nil
}

// ReadBundle loads a previously staged bundle from dir, the inverse of
// WriteTo. Image order follows the manifest records.
func ReadBundle(dir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	bundle := &Bundle{Manifest: manifest}
	for _, record := range manifest.Records {
		data, err := os.ReadFile(filepath.Join(dir, record.Image))
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", record.Image, err)
		}
		bundle.Images = append(bundle.Images, Image{Name: record.Image, Data: data})
	}
	return bundle, nil
}
