package niche

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const importanceSuffix = " permutation importance"

// ParseImportance extracts per-predictor permutation importance (percent)
// from an engine results table. Columns are named
// "<predictor> permutation importance"; with replicate rows present, the
// last row (the aggregate) wins.
func ParseImportance(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: malformed results table: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: results table has no data rows", path)
	}

	header := rows[0]
	last := rows[len(rows)-1]

	out := make(map[string]float64)
	for i, col := range header {
		if !strings.HasSuffix(col, importanceSuffix) {
			continue
		}
		if i >= len(last) {
			continue
		}
		name := strings.TrimSuffix(col, importanceSuffix)
		v, err := strconv.ParseFloat(strings.TrimSpace(last[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad importance for %q: %w", path, name, err)
		}
		out[name] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no permutation importance columns", path)
	}
	return out, nil
}
