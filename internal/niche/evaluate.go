package niche

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

// Evaluation scores one candidate against the calibration/evaluation split.
type Evaluation struct {
	Candidate Candidate
	// AICc is the corrected Akaike information criterion computed from the
	// raw-output prediction and the fitted parameter count.
	AICc float64
	// Omission is the fraction of evaluation presences predicted below the
	// calibration omission threshold.
	Omission float64
	// NParams is the number of non-zero fitted parameters.
	NParams int
	// PredictionASC locates the candidate's prediction artifact.
	PredictionASC string
}

// Evaluate scores a finished candidate run. raw must be the raw-output
// prediction grid; train and eval are projected presence locations of the
// calibration and held-out folds; omissionPct is the percentile of training
// predictions used as the omission threshold (e.g. 5 for E=5%).
func Evaluate(c Candidate, raw *raster.Grid, lambdasPath string, train, eval []geom.Point, omissionPct float64) (Evaluation, error) {
	nParams, err := CountParameters(lambdasPath)
	if err != nil {
		return Evaluation{}, fmt.Errorf("candidate %s: %w", c.ID(), err)
	}

	aicc, err := AICc(raw, append(append([]geom.Point{}, train...), eval...), nParams)
	if err != nil {
		return Evaluation{}, fmt.Errorf("candidate %s: %w", c.ID(), err)
	}

	omission, err := OmissionRate(raw, train, eval, omissionPct)
	if err != nil {
		return Evaluation{}, fmt.Errorf("candidate %s: %w", c.ID(), err)
	}

	return Evaluation{
		Candidate: c,
		AICc:      aicc,
		Omission:  omission,
		NParams:   nParams,
	}, nil
}

// AICc computes the corrected Akaike information criterion from a raw
// prediction grid and the occurrence locations, following Warren & Seifert:
// the raw surface is normalized to sum to one and the likelihood is the
// product of normalized values at the occurrences. Returns +Inf when the
// parameter count is too large for the sample size, which deterministically
// loses against any scoreable candidate.
func AICc(raw *raster.Grid, occurrences []geom.Point, nParams int) (float64, error) {
	n := len(occurrences)
	if n == 0 {
		return 0, fmt.Errorf("no occurrences to score")
	}

	total := 0.0
	for _, v := range raw.Data {
		if !raw.IsNodata(v) && v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return 0, fmt.Errorf("raw prediction has no positive mass")
	}

	logLik := 0.0
	for _, p := range occurrences {
		v, ok := raw.Sample(p.X, p.Y)
		if !ok {
			return 0, fmt.Errorf("occurrence (%g,%g) outside prediction raster", p.X, p.Y)
		}
		if v <= 0 {
			// zero predicted suitability at a known occurrence
			return math.Inf(1), nil
		}
		logLik += math.Log(v / total)
	}

	if n-nParams-1 <= 0 {
		return math.Inf(1), nil
	}
	k := float64(nParams)
	return 2*k - 2*logLik + (2*k*(k+1))/float64(n-nParams-1), nil
}

// OmissionRate computes the evaluation omission: the calibration threshold
// is the omissionPct percentile of predictions at training presences, and
// the rate is the share of evaluation presences falling strictly below it.
func OmissionRate(raw *raster.Grid, train, eval []geom.Point, omissionPct float64) (float64, error) {
	if len(train) == 0 || len(eval) == 0 {
		return 0, fmt.Errorf("omission rate needs both training (%d) and evaluation (%d) presences", len(train), len(eval))
	}
	if omissionPct < 0 || omissionPct >= 100 {
		return 0, fmt.Errorf("omission percentile %g out of range [0,100)", omissionPct)
	}

	trainVals := make([]float64, 0, len(train))
	for _, p := range train {
		v, ok := raw.Sample(p.X, p.Y)
		if !ok {
			return 0, fmt.Errorf("training presence (%g,%g) outside prediction raster", p.X, p.Y)
		}
		trainVals = append(trainVals, v)
	}
	sort.Float64s(trainVals)
	threshold := trainVals[int(math.Floor(omissionPct/100*float64(len(trainVals))))]

	omitted := 0
	for _, p := range eval {
		v, ok := raw.Sample(p.X, p.Y)
		if !ok {
			return 0, fmt.Errorf("evaluation presence (%g,%g) outside prediction raster", p.X, p.Y)
		}
		if v < threshold {
			omitted++
		}
	}
	return float64(omitted) / float64(len(eval)), nil
}

// CountParameters counts the non-zero fitted parameters in an engine
// lambdas file. Lines hold "feature, lambda, min, max"; the trailing
// normalizer entries have fewer fields and are skipped.
func CountParameters(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open lambdas file: %w", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ",")
		if len(fields) != 4 {
			continue
		}
		lambda, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: bad lambda in line %q: %w", path, sc.Text(), err)
		}
		if lambda != 0 {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s: no fitted parameters", path)
	}
	return n, nil
}
