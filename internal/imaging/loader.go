package imaging

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"gantry/internal/logging"
	"gantry/internal/services"
)

// LoadOptions tunes container loading behavior.
type LoadOptions struct {
	// MaxUnreadableFraction is the tolerated share of undecodable candidate
	// files before the load fails outright.
	MaxUnreadableFraction float64
	Logger                *slog.Logger
}

// LoadSeries parses a container (directory or ZIP archive) of DICOM files
// into an ordered series. Undecodable files are tolerated up to the
// configured fraction and recorded for audit.
func LoadSeries(ctx context.Context, itemID, path string, opts LoadOptions) (*Series, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	root := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extracted, cleanup, err := extractArchive(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedContainer, path, err)
		}
		defer cleanup()
		root = extracted
	}

	candidates, err := findCandidates(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedContainer, path, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate files in %s", ErrEmptySeries, path)
	}

	var (
		slices  []Slice
		skipped []SkippedFile
	)
	for _, file := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slice, err := parseSliceFile(root, file)
		if err != nil {
			logger.Warn("skipping unreadable file",
				slog.String("file", file), slog.String("reason", err.Error()))
			skipped = append(skipped, SkippedFile{File: file, Reason: err.Error()})
			continue
		}
		slices = append(slices, slice)
	}

	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: none of %d candidate files decoded", ErrEmptySeries, len(candidates))
	}
	fraction := float64(len(skipped)) / float64(len(candidates))
	if fraction > opts.MaxUnreadableFraction {
		return nil, services.Wrap(ErrMalformedContainer, "imaging", "load series",
			fmt.Sprintf("%d of %d files unreadable, above tolerance %.2f",
				len(skipped), len(candidates), opts.MaxUnreadableFraction), nil)
	}

	return NewSeries(itemID, slices, skipped)
}

// findCandidates returns container members that plausibly hold DICOM data:
// .dcm files plus extensionless files, which are common in exported studies.
func findCandidates(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ".dcm") || !strings.Contains(name, ".") {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func parseSliceFile(root, file string) (Slice, error) {
	ds, err := dicom.ParseFile(filepath.Join(root, file), nil)
	if err != nil {
		return Slice{}, fmt.Errorf("parse: %w", err)
	}

	slice := Slice{File: file, Metadata: map[string]string{}}

	for _, elem := range ds.Elements {
		if elem == nil || elem.Tag == tag.PixelData {
			continue
		}
		info, err := tag.Find(elem.Tag)
		if err != nil || info.Name == "" {
			continue
		}
		if rendered := renderValue(elem.Value.GetValue()); rendered != "" {
			slice.Metadata[info.Name] = rendered
		}
	}

	if loc, ok := metadataFloat(slice.Metadata, "SliceLocation"); ok {
		slice.Location = loc
		slice.HasLocation = true
	}

	if err := decodePixels(&ds, &slice); err != nil {
		return Slice{}, err
	}
	return slice, nil
}

func decodePixels(ds *dicom.Dataset, slice *Slice) error {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return fmt.Errorf("pixel data: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(elem.Value)
	if info.IsEncapsulated {
		return fmt.Errorf("pixel data: encapsulated transfer syntax unsupported")
	}
	if len(info.Frames) == 0 {
		return fmt.Errorf("pixel data: no frames")
	}

	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return fmt.Errorf("pixel data: %w", err)
	}
	if native.Rows <= 0 || native.Cols <= 0 {
		return fmt.Errorf("pixel data: invalid dimensions %dx%d", native.Rows, native.Cols)
	}

	slope, hasSlope := metadataFloat(slice.Metadata, "RescaleSlope")
	intercept, hasIntercept := metadataFloat(slice.Metadata, "RescaleIntercept")
	if !hasSlope {
		slope = 1
	}
	if !hasIntercept {
		intercept = 0
	}
	rescale := hasSlope || hasIntercept

	data := make([]int, 0, native.Rows*native.Cols)
	for _, sample := range native.Data {
		if len(sample) == 0 {
			return fmt.Errorf("pixel data: empty sample")
		}
		v := sample[0]
		if rescale {
			v = int(float64(v)*slope + intercept)
		}
		data = append(data, v)
	}
	if len(data) != native.Rows*native.Cols {
		return fmt.Errorf("pixel data: %d samples for %dx%d frame", len(data), native.Rows, native.Cols)
	}

	slice.Rows = native.Rows
	slice.Cols = native.Cols
	slice.BitsPerSample = native.BitsPerSample
	slice.Data = data
	return nil
}

func renderValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.TrimSpace(strings.Join(v, "\\"))
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, "\\")
	case []float64:
		parts := make([]string, len(v))
		for i, f := range v {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, "\\")
	case nil:
		return ""
	case []byte:
		// Binary payloads are not representable as audit metadata.
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func metadataFloat(metadata map[string]string, keyword string) (float64, bool) {
	raw, ok := metadata[keyword]
	if !ok {
		return 0, false
	}
	first := strings.Split(raw, "\\")[0]
	f, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func extractArchive(zipPath string) (string, func(), error) {
	dest, err := os.MkdirTemp("", "gantry-series-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dest) }
	if err := unzip(zipPath, dest); err != nil {
		cleanup()
		return "", nil, err
	}
	return dest, cleanup, nil
}
