package niche

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoViableModel reports that no candidate met the omission-rate
// tolerance. This is an expected outcome surfaced for human review, not a
// crash.
var ErrNoViableModel = errors.New("no candidate model within omission tolerance")

// Rank orders evaluations best-first: qualifying candidates (omission within
// tolerance) before non-qualifying ones, then by ascending AICc, ties by
// fewest parameters, then by candidate id for full determinism.
func Rank(evals []Evaluation, omissionTol float64) []Evaluation {
	ranked := append([]Evaluation(nil), evals...)
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		qa, qb := a.Omission <= omissionTol, b.Omission <= omissionTol
		if qa != qb {
			return qa
		}
		if a.AICc != b.AICc {
			return a.AICc < b.AICc
		}
		if a.NParams != b.NParams {
			return a.NParams < b.NParams
		}
		return a.Candidate.ID() < b.Candidate.ID()
	})
	return ranked
}

// Select returns the best candidate: minimum AICc among those meeting the
// omission tolerance, ties broken by lowest model complexity. When no
// candidate qualifies, the result is ErrNoViableModel with the closest
// omission observed, so the operator can judge how far off the grid was.
func Select(evals []Evaluation, omissionTol float64) (Evaluation, error) {
	if len(evals) == 0 {
		return Evaluation{}, fmt.Errorf("no candidate evaluations")
	}

	ranked := Rank(evals, omissionTol)
	best := ranked[0]
	if best.Omission > omissionTol {
		minOmission := best.Omission
		for _, e := range ranked[1:] {
			if e.Omission < minOmission {
				minOmission = e.Omission
			}
		}
		return Evaluation{}, fmt.Errorf("%w: tolerance %.3f, best omission %.3f across %d candidates",
			ErrNoViableModel, omissionTol, minOmission, len(evals))
	}
	return best, nil
}
