package niche

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Maxent invokes the Maxent jar. Each run writes into a fresh output
// directory; an existing directory is an error rather than an overwrite.
type Maxent struct {
	// Java is the java executable.
	Java string
	// Jar is the path to maxent.jar.
	Jar string
	// HeapMB is the -mx heap size.
	HeapMB int
	// Timeout bounds one fit. Zero means no limit. Fits are never retried:
	// they are the most expensive step of the pipeline and a failure needs
	// human review, not a blind re-run.
	Timeout time.Duration

	logger *slog.Logger
}

// NewMaxent creates the exec-based engine adapter.
func NewMaxent(java, jar string, heapMB int, timeout time.Duration, logger *slog.Logger) *Maxent {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if heapMB <= 0 {
		heapMB = 1024
	}
	return &Maxent{Java: java, Jar: jar, HeapMB: heapMB, Timeout: timeout, logger: logger}
}

// Run executes one candidate fit.
func (m *Maxent) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	if spec.Replicates > 1 {
		switch spec.ReplicateType {
		case ReplicateBootstrap, ReplicateCrossvalidate, ReplicateSubsample:
		default:
			return nil, fmt.Errorf("unknown replicate type %q", spec.ReplicateType)
		}
	}
	if _, err := os.Stat(spec.OutDir); err == nil {
		return nil, fmt.Errorf("output directory %s already exists; refusing to overwrite a previous run", spec.OutDir)
	}
	if err := os.MkdirAll(spec.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	args := m.buildArgs(spec)

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	m.logger.Debug("maxent run", "candidate", spec.Candidate.ID(), "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, m.Java, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("modeling engine failed on candidate %s: %s %s: %w (%s)",
			spec.Candidate.ID(), m.Java, strings.Join(args, " "), err, firstLine(stderr.Bytes()))
	}
	m.logger.Info("maxent run done", "candidate", spec.Candidate.ID(),
		"elapsed", time.Since(start).Round(time.Second))

	species := speciesName(spec.SamplesCSV)
	res := &RunResult{ResultsCSV: filepath.Join(spec.OutDir, "maxentResults.csv")}
	required := []string{res.ResultsCSV}
	if spec.Replicates > 1 {
		// replicated runs aggregate across replicates; the per-replicate
		// grids stay on disk but only the aggregates are consumed
		res.MeanASC = filepath.Join(spec.OutDir, species+"_avg.asc")
		res.StddevASC = filepath.Join(spec.OutDir, species+"_stddev.asc")
		required = append(required, res.MeanASC, res.StddevASC)
		if spec.ProjectionLayersDir != "" {
			proj := species + "_" + filepath.Base(spec.ProjectionLayersDir)
			res.ProjectionMeanASC = filepath.Join(spec.OutDir, proj+"_avg.asc")
			res.ProjectionStddevASC = filepath.Join(spec.OutDir, proj+"_stddev.asc")
			required = append(required, res.ProjectionMeanASC, res.ProjectionStddevASC)
		}
	} else {
		res.PredictionASC = filepath.Join(spec.OutDir, species+".asc")
		res.LambdasPath = filepath.Join(spec.OutDir, species+".lambdas")
		required = append(required, res.PredictionASC, res.LambdasPath)
		if spec.ProjectionLayersDir != "" {
			res.ProjectionASC = filepath.Join(spec.OutDir,
				species+"_"+filepath.Base(spec.ProjectionLayersDir)+".asc")
			required = append(required, res.ProjectionASC)
		}
	}
	for _, path := range required {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("candidate %s: engine completed but %s is missing: %w",
				spec.Candidate.ID(), path, err)
		}
	}
	return res, nil
}

// buildArgs renders the full command line for a spec.
func (m *Maxent) buildArgs(spec RunSpec) []string {
	args := []string{
		fmt.Sprintf("-mx%dm", m.HeapMB),
		"-jar", m.Jar,
		"nowarnings", "noprompt", "autorun",
		"samplesfile=" + spec.SamplesCSV,
		"environmentallayers=" + spec.LayersDir,
		"outputdirectory=" + spec.OutDir,
		"betamultiplier=" + strconv.FormatFloat(spec.Candidate.RegMult, 'g', -1, 64),
		"outputformat=" + spec.OutputFormat,
		"randomseed=true",
		"visible=false",
		"writeplotdata=false",
		"autofeature=false",
	}
	if spec.Replicates > 1 {
		args = append(args,
			"replicates="+strconv.Itoa(spec.Replicates),
			"replicatetype="+spec.ReplicateType)
	}
	if spec.Threads > 0 {
		args = append(args, "threads="+strconv.Itoa(spec.Threads))
	}
	fixed := len(args)

	for class, name := range map[rune]string{
		FeatureLinear:    "linear",
		FeatureQuadratic: "quadratic",
		FeatureProduct:   "product",
		FeatureThreshold: "threshold",
		FeatureHinge:     "hinge",
	} {
		args = append(args, fmt.Sprintf("%s=%t", name, spec.Candidate.Features.Has(class)))
	}

	if spec.Jackknife {
		args = append(args, "jackknife=true")
	}
	if spec.ProjectionLayersDir != "" {
		args = append(args, "projectionlayers="+spec.ProjectionLayersDir)
	}

	// map iteration order above is not deterministic; sort everything
	// after the fixed prefix for reproducible command lines in logs and
	// errors
	sort.Strings(args[fixed:])
	return args
}

// Check verifies java and the jar are present.
func (m *Maxent) Check(ctx context.Context) error {
	if _, err := os.Stat(m.Jar); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, m.Jar, err)
	}
	cmd := exec.CommandContext(ctx, m.Java, "-version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s -version: %v (%s)", ErrEngineUnavailable, m.Java, err, firstLine(out))
	}
	return nil
}

// speciesName is the engine's convention for naming outputs: the first
// column of the samples file, which we set to the species id used when the
// samples were written.
func speciesName(samplesCSV string) string {
	base := filepath.Base(samplesCSV)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		s = "no output"
	}
	return s
}

