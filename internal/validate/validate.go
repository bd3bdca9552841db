// Package validate computes threshold-dependent accuracy of a final model
// against independent field presence/absence records. For each supported
// threshold-selection rule it derives the implied cutoff, the confusion
// matrix and the standard derived metrics. The stage is fully
// deterministic; choosing among the candidate thresholds is left to the
// operator.
package validate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

// Rule names a threshold-selection criterion.
type Rule string

const (
	RuleMinPresence    Rule = "min_presence"     // lowest prediction at any presence site
	RuleMeanPresence   Rule = "mean_presence"    // mean prediction over presence sites
	RulePercentile     Rule = "percent_omission" // fixed presence omission (e.g. 10%)
	RuleSensEqSpec     Rule = "sens_eq_spec"     // sensitivity = specificity balance
	RuleMaxSensSpec    Rule = "max_sens_spec"    // maximum sensitivity + specificity
	RuleMaxAccuracy    Rule = "max_accuracy"     // maximum proportion correct
	RuleMinROCDistance Rule = "min_roc_distance" // closest point to (0,1) in ROC space
)

// Rules lists every supported rule in presentation order.
func Rules() []Rule {
	return []Rule{
		RuleMinPresence, RuleMeanPresence, RulePercentile,
		RuleSensEqSpec, RuleMaxSensSpec, RuleMaxAccuracy, RuleMinROCDistance,
	}
}

// Sample is one independent validation site with its known class and the
// model prediction sampled at its location.
type Sample struct {
	SiteID  string
	Value   float64
	Present bool
}

// Confusion is a 2x2 confusion matrix at a given threshold.
type Confusion struct {
	TP, FP, TN, FN int
}

// Sensitivity is the true positive rate.
func (c Confusion) Sensitivity() float64 { return ratio(c.TP, c.TP+c.FN) }

// Specificity is the true negative rate.
func (c Confusion) Specificity() float64 { return ratio(c.TN, c.TN+c.FP) }

// FPR is the false positive rate, 1 - specificity.
func (c Confusion) FPR() float64 { return 1 - c.Specificity() }

// FNR is the false negative rate (omission rate), 1 - sensitivity.
func (c Confusion) FNR() float64 { return 1 - c.Sensitivity() }

// Precision is the positive predictive value.
func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// NPV is the negative predictive value.
func (c Confusion) NPV() float64 { return ratio(c.TN, c.TN+c.FN) }

// Accuracy is the overall proportion correct.
func (c Confusion) Accuracy() float64 { return ratio(c.TP+c.TN, c.TP+c.TN+c.FP+c.FN) }

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}
	return float64(num) / float64(den)
}

// Result is one candidate operating point for the operator to choose from.
type Result struct {
	Rule      Rule
	Threshold float64
	Confusion Confusion
}

// Sampler extracts predictions at validation sites from the mean raster.
// Sites falling on nodata or outside the extent are rejected: a silent drop
// would bias the confusion matrix.
func Sampler(g *raster.Grid, sites []Site) ([]Sample, error) {
	if len(sites) == 0 {
		return nil, errors.New("no validation sites")
	}
	out := make([]Sample, 0, len(sites))
	for _, s := range sites {
		v, ok := g.Sample(s.X, s.Y)
		if !ok {
			return nil, fmt.Errorf("validation site %s at (%g,%g) is outside the prediction raster", s.SiteID, s.X, s.Y)
		}
		out = append(out, Sample{SiteID: s.SiteID, Value: v, Present: s.Present})
	}
	return out, nil
}

// Site is an independent field point with known class, already projected
// into the raster coordinate system.
type Site struct {
	SiteID  string
	X, Y    float64
	Present bool
}

// CheckIndependence errors when any validation site was also used for
// calibration. Leakage here would inflate every accuracy metric.
func CheckIndependence(sites []Site, calibrationSiteIDs map[string]bool) error {
	var leaked []string
	for _, s := range sites {
		if calibrationSiteIDs[s.SiteID] {
			leaked = append(leaked, s.SiteID)
		}
	}
	if len(leaked) > 0 {
		return fmt.Errorf("%d validation site(s) also present in calibration data: %v", len(leaked), leaked)
	}
	return nil
}

// Evaluate computes the confusion matrix at the given threshold.
// Predicted present means value >= threshold.
func Evaluate(samples []Sample, threshold float64) Confusion {
	var c Confusion
	for _, s := range samples {
		predicted := s.Value >= threshold
		switch {
		case s.Present && predicted:
			c.TP++
		case s.Present && !predicted:
			c.FN++
		case !s.Present && predicted:
			c.FP++
		default:
			c.TN++
		}
	}
	return c
}

// Run computes every rule's threshold and metrics. omission is the presence
// omission fraction for the percent-omission rule (0.10 for the usual 10%).
// Ties between candidate thresholds are broken toward the lowest threshold,
// which keeps results reproducible.
func Run(samples []Sample, omission float64) ([]Result, error) {
	if len(samples) == 0 {
		return nil, errors.New("no validation samples")
	}
	if omission < 0 || omission >= 1 {
		return nil, fmt.Errorf("omission fraction %g out of range [0,1)", omission)
	}

	var presenceVals []float64
	absences := 0
	for _, s := range samples {
		if s.Present {
			presenceVals = append(presenceVals, s.Value)
		} else {
			absences++
		}
	}
	if len(presenceVals) == 0 {
		return nil, errors.New("validation set has no presence sites")
	}
	if absences == 0 {
		return nil, errors.New("validation set has no absence sites")
	}
	sort.Float64s(presenceVals)

	results := []Result{
		{Rule: RuleMinPresence, Threshold: presenceVals[0]},
		{Rule: RuleMeanPresence, Threshold: stat.Mean(presenceVals, nil)},
		{Rule: RulePercentile, Threshold: omissionThreshold(presenceVals, omission)},
	}

	candidates := candidateThresholds(samples)
	results = append(results,
		optimize(samples, candidates, RuleSensEqSpec, func(c Confusion) float64 {
			return -math.Abs(c.Sensitivity() - c.Specificity())
		}),
		optimize(samples, candidates, RuleMaxSensSpec, func(c Confusion) float64 {
			return c.Sensitivity() + c.Specificity()
		}),
		optimize(samples, candidates, RuleMaxAccuracy, func(c Confusion) float64 {
			return c.Accuracy()
		}),
		optimize(samples, candidates, RuleMinROCDistance, func(c Confusion) float64 {
			return -math.Hypot(1-c.Sensitivity(), 1-c.Specificity())
		}),
	)

	for i := range results {
		results[i].Confusion = Evaluate(samples, results[i].Threshold)
	}
	return results, nil
}

// omissionThreshold returns the highest cutoff that omits at most the given
// fraction of presences. presenceVals must be sorted ascending.
func omissionThreshold(presenceVals []float64, omission float64) float64 {
	allowed := int(math.Floor(omission * float64(len(presenceVals))))
	return presenceVals[allowed]
}

// candidateThresholds returns the sorted unique prediction values observed
// at validation sites. Any optimal operating point lies at one of these.
func candidateThresholds(samples []Sample) []float64 {
	seen := make(map[float64]bool, len(samples))
	var vals []float64
	for _, s := range samples {
		if !seen[s.Value] {
			seen[s.Value] = true
			vals = append(vals, s.Value)
		}
	}
	sort.Float64s(vals)
	return vals
}

func optimize(samples []Sample, candidates []float64, rule Rule, score func(Confusion) float64) Result {
	best := Result{Rule: rule, Threshold: candidates[0]}
	bestScore := math.Inf(-1)
	for _, t := range candidates {
		s := score(Evaluate(samples, t))
		if s > bestScore {
			bestScore = s
			best.Threshold = t
		}
	}
	return best
}
