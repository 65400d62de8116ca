package selection

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"gantry/internal/imaging"
)

// Strategy scores slices within one band and picks the representative.
// Implementations must be deterministic; ties break toward the lowest index.
type Strategy interface {
	Name() string
	// Pick returns the chosen index in [lo, hi) and its criterion score.
	Pick(series *imaging.Series, lo, hi int) (int, float64)
}

// StrategyFor resolves a configured scoring name to its implementation.
func StrategyFor(name string) (Strategy, error) {
	switch name {
	case "midpoint":
		return Midpoint{}, nil
	case "variance":
		return Variance{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", name)
	}
}

// Midpoint picks the middle slice of each band.
type Midpoint struct{}

func (Midpoint) Name() string { return "midpoint" }

func (Midpoint) Pick(series *imaging.Series, lo, hi int) (int, float64) {
	idx := lo + (hi-lo)/2
	return idx, float64(idx)
}

// Variance picks the band slice with the highest pixel-intensity variance,
// an information-density proxy that favors anatomy-rich slices over air.
type Variance struct{}

func (Variance) Name() string { return "variance" }

func (Variance) Pick(series *imaging.Series, lo, hi int) (int, float64) {
	best := lo
	bestScore := -1.0
	for i := lo; i < hi; i++ {
		score := intensityVariance(series.Slices[i].Data)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best, bestScore
}

func intensityVariance(data []int) float64 {
	if len(data) == 0 {
		return 0
	}
	floats := make([]float64, len(data))
	for i, v := range data {
		floats[i] = float64(v)
	}
	return stat.Variance(floats, nil)
}
