// Package niche drives the external maximum-entropy modeling engine:
// candidate grids over regularization and feature-class combinations,
// evaluation by information criterion and omission rate, candidate
// selection, collinearity-based variable reduction and the final bootstrap
// replicate ensemble.
package niche

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Feature classes recognized by the modeling engine.
const (
	FeatureLinear    = 'l'
	FeatureQuadratic = 'q'
	FeatureProduct   = 'p'
	FeatureThreshold = 't'
	FeatureHinge     = 'h'
)

// FeatureSet is a combination of feature classes, e.g. "lqp".
type FeatureSet string

// ParseFeatureSet validates a feature-class combination symbol.
func ParseFeatureSet(s string) (FeatureSet, error) {
	if s == "" {
		return "", fmt.Errorf("empty feature set")
	}
	seen := map[rune]bool{}
	for _, c := range s {
		switch c {
		case FeatureLinear, FeatureQuadratic, FeatureProduct, FeatureThreshold, FeatureHinge:
			if seen[c] {
				return "", fmt.Errorf("duplicate feature class %q in %q", c, s)
			}
			seen[c] = true
		default:
			return "", fmt.Errorf("unknown feature class %q in %q (expect l,q,p,t,h)", c, s)
		}
	}
	return FeatureSet(s), nil
}

// Has reports whether the set includes the feature class.
func (fs FeatureSet) Has(c rune) bool {
	return strings.ContainsRune(string(fs), c)
}

// Candidate is one (regularization multiplier, feature classes) pair of the
// calibration grid.
type Candidate struct {
	RegMult  float64
	Features FeatureSet
}

// ID is the stable artifact name of the candidate, unique within a grid.
func (c Candidate) ID() string {
	return fmt.Sprintf("m_%s_%s",
		strconv.FormatFloat(c.RegMult, 'g', -1, 64), string(c.Features))
}

// Grid expands the full candidate grid in deterministic order.
func Grid(regMults []float64, featureSets []FeatureSet) ([]Candidate, error) {
	if len(regMults) == 0 || len(featureSets) == 0 {
		return nil, fmt.Errorf("empty candidate grid: %d multipliers x %d feature sets",
			len(regMults), len(featureSets))
	}
	for _, m := range regMults {
		if m <= 0 {
			return nil, fmt.Errorf("regularization multiplier must be positive, got %g", m)
		}
	}

	mults := append([]float64(nil), regMults...)
	sort.Float64s(mults)
	sets := append([]FeatureSet(nil), featureSets...)
	sort.Slice(sets, func(i, j int) bool { return sets[i] < sets[j] })

	out := make([]Candidate, 0, len(mults)*len(sets))
	seen := map[string]bool{}
	for _, m := range mults {
		for _, fs := range sets {
			c := Candidate{RegMult: m, Features: fs}
			if seen[c.ID()] {
				return nil, fmt.Errorf("duplicate candidate %s", c.ID())
			}
			seen[c.ID()] = true
			out = append(out, c)
		}
	}
	return out, nil
}
