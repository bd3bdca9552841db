package gis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// ioAttempts bounds retries on import/export. Those touch the filesystem
// and occasionally fail transiently; compute operations are never retried
// because re-running a long module blindly is more expensive than a manual
// resume.
const ioAttempts = 3

// GRASS drives the GRASS GIS executable in --exec mode against a fixed
// mapset. The mapset path is part of the configuration, never ambient
// session state.
type GRASS struct {
	// Exe is the grass executable, e.g. "grass".
	Exe string
	// Mapset is the full GISDBASE/LOCATION/MAPSET path.
	Mapset string
	// Timeout bounds a single engine invocation. Zero means no limit.
	Timeout time.Duration

	logger *slog.Logger
}

// NewGRASS creates a GRASS adapter. A nil logger discards output.
func NewGRASS(exe, mapset string, timeout time.Duration, logger *slog.Logger) *GRASS {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GRASS{Exe: exe, Mapset: mapset, Timeout: timeout, logger: logger}
}

// Import brings a raster or vector file into the workspace. The "kind"
// param selects the module: raster (default) or vector.
func (g *GRASS) Import(ctx context.Context, path, layer string, p Params) error {
	module := "r.import"
	if p["kind"] == "vector" {
		module = "v.import"
	}
	args := []string{module, "input=" + path, "output=" + layer}
	args = append(args, flattenParams(p, "kind")...)

	return g.withIORetry(ctx, func(ctx context.Context) error {
		return g.exec(ctx, layer, args)
	})
}

// Compute runs a named GRASS module. Inputs are joined into the module's
// input= option; all other options come from p.
func (g *GRASS) Compute(ctx context.Context, op string, inputs []string, output string, p Params) error {
	args := []string{op}
	if len(inputs) > 0 {
		args = append(args, "input="+strings.Join(inputs, ","))
	}
	if output != "" {
		args = append(args, "output="+output)
	}
	args = append(args, flattenParams(p)...)
	return g.exec(ctx, output, args)
}

// Export writes a layer out of the workspace.
func (g *GRASS) Export(ctx context.Context, layer, path, format string) error {
	args := []string{"r.out.gdal", "input=" + layer, "output=" + path, "format=" + format}
	if format == "AAIGrid" {
		// plain text grids do not carry compression
		args = append(args, "-c")
	}
	return g.withIORetry(ctx, func(ctx context.Context) error {
		return g.exec(ctx, layer, args)
	})
}

// Remove drops layers from the mapset.
func (g *GRASS) Remove(ctx context.Context, layers ...string) error {
	if len(layers) == 0 {
		return nil
	}
	args := []string{"g.remove", "-f", "type=raster,vector", "name=" + strings.Join(layers, ",")}
	return g.exec(ctx, strings.Join(layers, ","), args)
}

// Check verifies the executable responds.
func (g *GRASS) Check(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, g.Exe, "--version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s --version: %v (%s)", ErrEngineUnavailable, g.Exe, err, firstLine(out))
	}
	return nil
}

// exec runs one grass --exec invocation. The failing command line and the
// layer being processed are always part of the error so a run can be
// resumed from the failed step.
func (g *GRASS) exec(ctx context.Context, layer string, args []string) error {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	full := append([]string{g.Mapset, "--exec"}, args...)
	g.logger.Debug("gis exec", "exe", g.Exe, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, g.Exe, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("gis engine failed on layer %q: %s %s: %w (%s)",
			layer, g.Exe, strings.Join(full, " "), err, firstLine(stderr.Bytes()))
	}
	g.logger.Debug("gis exec done", "module", args[0], "layer", layer, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (g *GRASS) withIORetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(ioAttempts-1, retry.NewConstant(500*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// flattenParams renders params as deterministic key=value module options,
// skipping the listed keys.
func flattenParams(p Params, skip ...string) []string {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		if !skipped[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, "-") {
			// flag options like -c carry no value
			out = append(out, k)
			continue
		}
		out = append(out, k+"="+p[k])
	}
	return out
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
