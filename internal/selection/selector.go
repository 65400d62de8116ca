package selection

import (
	"fmt"

	"gantry/internal/imaging"
	"gantry/internal/services"
)

// Pick records one chosen slice and the criterion values that drove the choice.
type Pick struct {
	Index     int     `json:"index"`
	BandStart int     `json:"band_start"`
	BandEnd   int     `json:"band_end"`
	Score     float64 `json:"score"`
}

// Result is the chosen subset of a series: ascending indices plus rationale.
type Result struct {
	Strategy string `json:"strategy"`
	Indices  []int  `json:"indices"`
	Picks    []Pick `json:"picks"`
}

// Select partitions the ordered series into k roughly equal contiguous bands
// and picks one representative per band using the supplied strategy. When the
// series holds fewer than k slices, every slice is selected once. Identical
// input and strategy always produce identical output.
func Select(series *imaging.Series, k int, strategy Strategy) (Result, error) {
	if series == nil || series.Len() == 0 {
		return Result{}, services.Wrap(services.ErrInput, "selection", "select", "series is empty", nil)
	}
	if k <= 0 {
		return Result{}, services.Wrap(services.ErrConfiguration, "selection", "select",
			fmt.Sprintf("target count %d must be positive", k), nil)
	}
	if strategy == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "selection", "select", "strategy is nil", nil)
	}

	n := series.Len()
	result := Result{Strategy: strategy.Name()}

	if n <= k {
		for i := 0; i < n; i++ {
			_, score := strategy.Pick(series, i, i+1)
			result.Indices = append(result.Indices, i)
			result.Picks = append(result.Picks, Pick{Index: i, BandStart: i, BandEnd: i + 1, Score: score})
		}
		return result, nil
	}

	for band := 0; band < k; band++ {
		lo := band * n / k
		hi := (band + 1) * n / k
		idx, score := strategy.Pick(series, lo, hi)
		result.Indices = append(result.Indices, idx)
		result.Picks = append(result.Picks, Pick{Index: idx, BandStart: lo, BandEnd: hi, Score: score})
	}
	return result, nil
}
