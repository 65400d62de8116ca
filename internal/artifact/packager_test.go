package artifact_test

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gantry/internal/anonymize"
	"gantry/internal/artifact"
	"gantry/internal/selection"
)

func anonSlice(source string, rows, cols int) anonymize.Slice {
	data := make([]int, rows*cols)
	for i := range data {
		data[i] = i * 7
	}
	return anonymize.Slice{
		Source:   source,
		Rows:     rows,
		Cols:     cols,
		Data:     data,
		Metadata: map[string]string{"Modality": "CT"},
	}
}

func TestPackageOrdersRecords(t *testing.T) {
	slices := []anonymize.Slice{
		anonSlice("a.dcm", 8, 8),
		anonSlice("b.dcm", 8, 8),
		anonSlice("c.dcm", 8, 8),
	}
	prov := artifact.Provenance{
		ItemID:    "item-1",
		RunID:     "run-1",
		Selection: selection.Result{Strategy: "midpoint", Indices: []int{0, 4, 9}},
		CreatedAt: time.Now(),
	}
	bundle, err := artifact.Package(slices, prov)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if len(bundle.Images) != 3 || len(bundle.Manifest.Records) != 3 {
		t.Fatalf("expected 3 images and records, got %d/%d", len(bundle.Images), len(bundle.Manifest.Records))
	}
	for i, record := range bundle.Manifest.Records {
		if record.Index != i {
			t.Fatalf("record %d carries index %d", i, record.Index)
		}
		if record.Image != bundle.Images[i].Name {
			t.Fatalf("record %d references %q, image is %q", i, record.Image, bundle.Images[i].Name)
		}
	}
	if bundle.Manifest.Records[1].SourceFile != "b.dcm" {
		t.Fatalf("manifest order should mirror input order, got %q", bundle.Manifest.Records[1].SourceFile)
	}
}

func TestPackageEncodesDecodablePNG(t *testing.T) {
	bundle, err := artifact.Package([]anonymize.Slice{anonSlice("a.dcm", 16, 12)}, artifact.Provenance{CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(bundle.Images[0].Data))
	if err != nil {
		t.Fatalf("image is not valid PNG: %v", err)
	}
	boundsx := img.Bounds()
	if boundsx.Dx() != 12 || boundsx.Dy() != 16 {
		t.Fatalf("unexpected image dimensions %dx%d", boundsx.Dx(), boundsx.Dy())
	}
}

func TestPackageDeterministicEncoding(t *testing.T) {
	prov := artifact.Provenance{CreatedAt: time.Unix(100, 0)}
	first, err := artifact.Package([]anonymize.Slice{anonSlice("a.dcm", 8, 8)}, prov)
	if err != nil {
		t.Fatal(err)
	}
	second, err := artifact.Package([]anonymize.Slice{anonSlice("a.dcm", 8, 8)}, prov)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Images[0].Data, second.Images[0].Data) {
		t.Fatal("identical pixels should encode to identical bytes")
	}
}

func TestPackageRejectsEmpty(t *testing.T) {
	if _, err := artifact.Package(nil, artifact.Provenance{}); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestPackageRejectsBadGrid(t *testing.T) {
	bad := anonymize.Slice{Source: "a.dcm", Rows: 4, Cols: 4, Data: []int{1, 2}}
	if _, err := artifact.Package([]anonymize.Slice{bad}, artifact.Provenance{}); err == nil {
		t.Fatal("expected error for mismatched pixel grid")
	}
}

func TestWriteToMaterializesBundle(t *testing.T) {
	bundle, err := artifact.Package([]anonymize.Slice{anonSlice("a.dcm", 8, 8)}, artifact.Provenance{
		ItemID:    "item-7",
		RunID:     "run-7",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "bundle")
	paths, err := bundle.WriteTo(dir)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected image + manifest, got %v", paths)
	}

	data, err := os.ReadFile(filepath.Join(dir, artifact.ManifestName))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	var manifest artifact.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if manifest.ItemID != "item-7" || manifest.RunID != "run-7" {
		t.Fatalf("manifest identity wrong: %+v", manifest)
	}
}
