package anonymize

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Region is a rectangular pixel area, origin top-left.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Detection is a detector verdict: candidate regions plus a confidence score
// in [0, 1].
type Detection struct {
	Regions    []Region
	Confidence float64
}

// Detector locates likely burned-in text regions in a pixel grid.
// Implementations must be pure functions of their input.
type Detector interface {
	Name() string
	Detect(rows, cols int, data []int) Detection
}

// LowConfidenceAction is the explicit policy applied when detection
// confidence falls below the threshold.
type LowConfidenceAction int

const (
	// LeaveUntouched keeps the frame as-is on low confidence.
	LeaveUntouched LowConfidenceAction = iota
	// BlankMargin conservatively blanks the whole edge margin on low confidence.
	BlankMargin
)

// ParseLowConfidenceAction maps a config value to its action.
func ParseLowConfidenceAction(value string) (LowConfidenceAction, bool) {
	switch value {
	case "leave":
		return LeaveUntouched, true
	case "blank-margin":
		return BlankMargin, true
	default:
		return LeaveUntouched, false
	}
}

// FixedRegions blanks a configured set of known overlay rectangles, the
// common case for modality-stamped series where burn-in locations are stable.
type FixedRegions struct {
	Regions []Region
}

func (FixedRegions) Name() string { return "regions" }

func (d FixedRegions) Detect(rows, cols int, data []int) Detection {
	regions := make([]Region, 0, len(d.Regions))
	for _, r := range d.Regions {
		if clipped, ok := clipRegion(r, rows, cols); ok {
			regions = append(regions, clipped)
		}
	}
	return Detection{Regions: regions, Confidence: 1}
}

// GradientDetector scores the top and bottom edge bands for burned-in text
// likelihood using horizontal intensity gradients: rendered text produces
// dense high-contrast transitions that smooth anatomy does not.
type GradientDetector struct {
	// EdgeMarginPercent is the share of each dimension treated as the edge band.
	EdgeMarginPercent float64
}

func (GradientDetector) Name() string { return "gradient" }

func (d GradientDetector) Detect(rows, cols int, data []int) Detection {
	margin := int(float64(rows) * d.EdgeMarginPercent / 100)
	if margin < 1 {
		margin = 1
	}
	if margin > rows/2 {
		margin = rows / 2
	}
	if rows == 0 || cols < 2 || len(data) < rows*cols {
		return Detection{}
	}

	interior := bandGradientDensity(data, cols, margin, rows-margin)
	var regions []Region
	best := 0.0
	for _, band := range []Region{
		{X: 0, Y: 0, W: cols, H: margin},
		{X: 0, Y: rows - margin, W: cols, H: margin},
	} {
		density := bandGradientDensity(data, cols, band.Y, band.Y+band.H)
		score := relativeDensity(density, interior)
		if score > best {
			best = score
		}
		if score > 0.5 {
			regions = append(regions, band)
		}
	}
	confidence := math.Min(best, 1)
	return Detection{Regions: regions, Confidence: confidence}
}

// bandGradientDensity is the mean absolute horizontal gradient over rows
// [loRow, hiRow).
func bandGradientDensity(data []int, cols, loRow, hiRow int) float64 {
	if hiRow <= loRow {
		return 0
	}
	grads := make([]float64, 0, (hiRow-loRow)*(cols-1))
	for row := loRow; row < hiRow; row++ {
		base := row * cols
		for col := 1; col < cols; col++ {
			grads = append(grads, math.Abs(float64(data[base+col]-data[base+col-1])))
		}
	}
	if len(grads) == 0 {
		return 0
	}
	return stat.Mean(grads, nil)
}

func relativeDensity(band, interior float64) float64 {
	if band == 0 {
		return 0
	}
	if interior == 0 {
		return 1
	}
	ratio := band / interior
	// Map the ratio into [0, 1]: parity with the interior scores 0.5,
	// double the interior density saturates toward 1.
	return math.Min(ratio/2, 1)
}

// Redactor applies a detector verdict to pixel data under explicit
// low-confidence policy.
type Redactor struct {
	Detector            Detector
	ConfidenceThreshold float64
	LowConfidence       LowConfidenceAction
	EdgeMarginPercent   float64
}

// Redact returns a copy of data with redacted regions zeroed, plus the
// regions that were blanked. The input is never mutated.
func (r Redactor) Redact(rows, cols int, data []int) ([]int, []Region) {
	out := make([]int, len(data))
	copy(out, data)
	if r.Detector == nil {
		return out, nil
	}

	detection := r.Detector.Detect(rows, cols, data)
	regions := detection.Regions
	if detection.Confidence < r.ConfidenceThreshold {
		switch r.LowConfidence {
		case BlankMargin:
			regions = marginRegions(rows, cols, r.EdgeMarginPercent)
		default:
			return out, nil
		}
	}

	blanked := make([]Region, 0, len(regions))
	for _, region := range regions {
		clipped, ok := clipRegion(region, rows, cols)
		if !ok {
			continue
		}
		for y := clipped.Y; y < clipped.Y+clipped.H; y++ {
			for x := clipped.X; x < clipped.X+clipped.W; x++ {
				out[y*cols+x] = 0
			}
		}
		blanked = append(blanked, clipped)
	}
	return out, blanked
}

func marginRegions(rows, cols int, marginPercent float64) []Region {
	margin := int(float64(rows) * marginPercent / 100)
	if margin < 1 {
		margin = 1
	}
	if margin > rows/2 {
		margin = rows / 2
	}
	if margin == 0 {
		return nil
	}
	return []Region{
		{X: 0, Y: 0, W: cols, H: margin},
		{X: 0, Y: rows - margin, W: cols, H: margin},
	}
}

func clipRegion(r Region, rows, cols int) (Region, bool) {
	if r.X < 0 {
		r.W += r.X
		r.X = 0
	}
	if r.Y < 0 {
		r.H += r.Y
		r.Y = 0
	}
	if r.X+r.W > cols {
		r.W = cols - r.X
	}
	if r.Y+r.H > rows {
		r.H = rows - r.Y
	}
	if r.W <= 0 || r.H <= 0 {
		return Region{}, false
	}
	return r, true
}
