package imaging

import (
	"fmt"
	"sort"

	"gantry/internal/services"
)

// Series failure modes surfaced to callers. All carry services.ErrInput so the
// workflow aborts without retrying.
var (
	ErrMalformedContainer   = fmt.Errorf("%w: malformed container", services.ErrInput)
	ErrEmptySeries          = fmt.Errorf("%w: empty series", services.ErrInput)
	ErrInconsistentGeometry = fmt.Errorf("%w: inconsistent geometry", services.ErrInput)
)

// Slice is one decoded 2-D image from a volumetric acquisition. Slices are
// immutable once loaded; downstream transforms produce new values.
type Slice struct {
	// File is the source filename within the container, for audit.
	File string
	Rows int
	Cols int
	// BitsPerSample is the stored sample depth of the original data.
	BitsPerSample int
	// Data holds row-major pixel samples after rescale slope/intercept.
	Data []int
	// Location is the spatial position along the acquisition axis.
	Location    float64
	HasLocation bool
	// Metadata maps DICOM keyword to a rendered value.
	Metadata map[string]string
}

// SkippedFile records a container member that could not be decoded.
type SkippedFile struct {
	File   string
	Reason string
}

// Series is an ordered, geometry-consistent set of slices from one container.
type Series struct {
	ItemID  string
	Slices  []Slice
	Skipped []SkippedFile
}

// NewSeries orders the slices and verifies geometry. Ordering uses the spatial
// location along the acquisition axis when every slice carries one, falling
// back to filename lexical order so results stay reproducible.
func NewSeries(itemID string, slices []Slice, skipped []SkippedFile) (*Series, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("%w: no decodable slices", ErrEmptySeries)
	}

	ordered := make([]Slice, len(slices))
	copy(ordered, slices)

	byLocation := true
	for _, s := range ordered {
		if !s.HasLocation {
			byLocation = false
			break
		}
	}
	if byLocation {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Location != ordered[j].Location {
				return ordered[i].Location < ordered[j].Location
			}
			return ordered[i].File < ordered[j].File
		})
	} else {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].File < ordered[j].File
		})
	}

	rows, cols := ordered[0].Rows, ordered[0].Cols
	for _, s := range ordered[1:] {
		if s.Rows != rows || s.Cols != cols {
			return nil, fmt.Errorf("%w: %s is %dx%d, series is %dx%d",
				ErrInconsistentGeometry, s.File, s.Rows, s.Cols, rows, cols)
		}
	}

	return &Series{ItemID: itemID, Slices: ordered, Skipped: skipped}, nil
}

// Len returns the number of slices in the series.
func (s *Series) Len() int {
	return len(s.Slices)
}
