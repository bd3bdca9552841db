package niche

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

// Spearman computes the Spearman rank correlation of two equal-length
// samples: Pearson correlation of the rank transforms, with ties assigned
// their mean rank.
func Spearman(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < 3 {
		return 0, fmt.Errorf("need at least 3 samples, got %d", len(x))
	}
	return stat.Correlation(ranks(x), ranks(y), nil), nil
}

func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	r := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		mean := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			r[idx[k]] = mean
		}
		i = j + 1
	}
	return r
}

// Reduction records what the variable-reduction pass kept and why each
// dropped predictor was removed.
type Reduction struct {
	Kept    []string
	Dropped map[string]string // predictor -> reason
}

// Reduce prunes the predictor stack in two passes. First, for every pair
// whose |Spearman rho| exceeds corrCutoff, the member with the lower
// permutation importance is dropped. Second, surviving predictors with
// importance below contribFloor (percent) are dropped. Correlations are
// computed over the cells valid in every layer.
func Reduce(layers map[string]*raster.Grid, importance map[string]float64, corrCutoff, contribFloor float64) (*Reduction, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("need at least 2 predictors to reduce, got %d", len(layers))
	}
	if corrCutoff <= 0 || corrCutoff > 1 {
		return nil, fmt.Errorf("correlation cutoff %g out of range (0,1]", corrCutoff)
	}
	if err := raster.CheckAligned(layers); err != nil {
		return nil, err
	}
	for name := range layers {
		if _, ok := importance[name]; !ok {
			return nil, fmt.Errorf("no permutation importance for predictor %q", name)
		}
	}

	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)

	samples, err := commonValidCells(layers, names)
	if err != nil {
		return nil, err
	}

	red := &Reduction{Dropped: map[string]string{}}
	dropped := map[string]bool{}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			if dropped[a] || dropped[b] {
				continue
			}
			rho, err := Spearman(samples[a], samples[b])
			if err != nil {
				return nil, fmt.Errorf("%s vs %s: %w", a, b, err)
			}
			if rho < 0 {
				rho = -rho
			}
			if rho <= corrCutoff {
				continue
			}
			// drop the less informative member of the pair
			victim, kept := a, b
			if importance[a] >= importance[b] {
				victim, kept = b, a
			}
			dropped[victim] = true
			red.Dropped[victim] = fmt.Sprintf("|rho|=%.2f with %s", rho, kept)
		}
	}

	for _, name := range names {
		if dropped[name] {
			continue
		}
		if importance[name] < contribFloor {
			dropped[name] = true
			red.Dropped[name] = fmt.Sprintf("importance %.2f%% below floor %.2f%%", importance[name], contribFloor)
			continue
		}
		red.Kept = append(red.Kept, name)
	}

	if len(red.Kept) == 0 {
		return nil, fmt.Errorf("variable reduction removed every predictor (cutoff %g, floor %g%%)", corrCutoff, contribFloor)
	}
	return red, nil
}

// commonValidCells extracts, per layer, the values at cells that are valid
// in every layer.
func commonValidCells(layers map[string]*raster.Grid, names []string) (map[string][]float64, error) {
	ref := layers[names[0]]
	out := make(map[string][]float64, len(names))

cells:
	for i := range ref.Data {
		for _, name := range names {
			if layers[name].IsNodata(layers[name].Data[i]) {
				continue cells
			}
		}
		for _, name := range names {
			out[name] = append(out[name], layers[name].Data[i])
		}
	}

	if len(out[names[0]]) < 3 {
		return nil, fmt.Errorf("fewer than 3 cells are valid in every predictor")
	}
	return out, nil
}
