package scene

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/gis"
)

// Bands are the multispectral bands processed per scene.
var Bands = []int{1, 2, 3, 4, 5, 7}

// textureMetrics are the co-occurrence texture measures computed over the
// red band.
var textureMetrics = []string{"asm", "contrast", "entropy", "idm"}

// Processor runs the per-scene chain: band import, top-of-atmosphere
// conversion with atmospheric correction, spectral indices, texture and
// diversity metrics, unsupervised classification, distance rasters, and
// ASCII-grid export.
type Processor struct {
	engine gis.Engine
	logger *slog.Logger

	// MeanElevation parameterizes the atmospheric correction (from ingest).
	MeanElevation float64
	// DistanceSources maps base-layer names to rasterized workspace layers.
	DistanceSources map[string]string
	// Classes is the number of unsupervised land-cover classes.
	Classes int
	// Parallel caps concurrent metric computations. Zero or one runs them
	// sequentially.
	Parallel int
}

// NewProcessor creates a scene processor over the given engine.
func NewProcessor(engine gis.Engine, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{engine: engine, logger: logger, Classes: 8}
}

// Result maps predictor names to the exported grid files of one scene.
type Result struct {
	SceneID    string
	Predictors map[string]string
}

// Process runs the full chain for one scene, exporting predictors into
// outDir. Intermediate workspace layers are removed afterwards; exported
// predictor layers are kept.
func (p *Processor) Process(ctx context.Context, sc config.Scene, outDir string) (*Result, error) {
	if sc.ID == "" {
		return nil, fmt.Errorf("scene has no id")
	}

	p.logger.Info("processing scene", slog.String("scene", sc.ID))

	bands, err := p.importBands(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
	}

	corrected, err := p.correct(ctx, sc, bands)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
	}

	predictors, err := p.derive(ctx, sc, corrected)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
	}

	res := &Result{SceneID: sc.ID, Predictors: make(map[string]string, len(predictors))}
	for _, layer := range predictors {
		path := filepath.Join(outDir, layer+".asc")
		if err := p.engine.Export(ctx, layer, path, "AAIGrid"); err != nil {
			return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
		}
		res.Predictors[layer] = path
	}

	if err := p.cleanup(ctx, sc, bands, corrected); err != nil {
		return nil, fmt.Errorf("scene %s: %w", sc.ID, err)
	}

	p.logger.Info("scene done", slog.String("scene", sc.ID),
		slog.Int("predictors", len(res.Predictors)))
	return res, nil
}

// importBands registers the raw band files as workspace layers.
func (p *Processor) importBands(ctx context.Context, sc config.Scene) ([]string, error) {
	layers := make([]string, 0, len(Bands))
	for _, b := range Bands {
		path := filepath.Join(sc.Path, fmt.Sprintf("band%d.tif", b))
		layer := fmt.Sprintf("%s_b%d", sc.ID, b)
		if err := p.engine.Import(ctx, path, layer, gis.Params{"kind": "raster"}); err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

// correct converts raw digital numbers to corrected reflectance: TOA
// radiance plus dark-object-subtraction atmospheric correction, using the
// scene's sun elevation and the region's mean elevation.
func (p *Processor) correct(ctx context.Context, sc config.Scene, bands []string) ([]string, error) {
	out := sc.ID + "_corr"
	err := p.engine.Compute(ctx, "i.landsat.toar", bands, out, gis.Params{
		"method":        "dos3",
		"sun_elevation": strconv.FormatFloat(sc.SunElevation, 'g', -1, 64),
		"date_doy":      strconv.Itoa(sc.DayOfYear),
		"scale_height":  strconv.FormatFloat(p.MeanElevation, 'g', -1, 64),
	})
	if err != nil {
		return nil, err
	}

	corrected := make([]string, 0, len(Bands))
	for _, b := range Bands {
		corrected = append(corrected, fmt.Sprintf("%s_corr%d", sc.ID, b))
	}
	return corrected, nil
}

// derive computes the predictor layers from the corrected bands: indices,
// texture/diversity metrics, land-cover classification, distance rasters.
// The metric computations are independent and fan out in parallel; each
// writes its own uniquely named layer.
func (p *Processor) derive(ctx context.Context, sc config.Scene, corrected []string) ([]string, error) {
	red := fmt.Sprintf("%s_corr3", sc.ID)
	nir := fmt.Sprintf("%s_corr4", sc.ID)
	green := fmt.Sprintf("%s_corr2", sc.ID)

	ndvi := sc.ID + "_ndvi"
	ndwi := sc.ID + "_ndwi"
	if err := p.engine.Compute(ctx, "r.mapcalc", []string{nir, red}, ndvi, gis.Params{
		"expression": fmt.Sprintf("%s = float(%s - %s) / (%s + %s)", ndvi, nir, red, nir, red),
	}); err != nil {
		return nil, err
	}
	if err := p.engine.Compute(ctx, "r.mapcalc", []string{green, nir}, ndwi, gis.Params{
		"expression": fmt.Sprintf("%s = float(%s - %s) / (%s + %s)", ndwi, green, nir, green, nir),
	}); err != nil {
		return nil, err
	}

	predictors := []string{ndvi, ndwi}

	metrics, err := p.deriveMetrics(ctx, sc, red, ndvi)
	if err != nil {
		return nil, err
	}
	predictors = append(predictors, metrics...)

	classified, err := p.classify(ctx, sc, corrected)
	if err != nil {
		return nil, err
	}
	predictors = append(predictors, classified)

	distances, err := p.deriveDistances(ctx, sc)
	if err != nil {
		return nil, err
	}
	predictors = append(predictors, distances...)

	sort.Strings(predictors)
	return predictors, nil
}

// deriveMetrics computes the texture and diversity layers. Each metric is
// an independent engine computation writing its own output layer, so they
// run concurrently up to Parallel workers; selection of predictors waits on
// all of them.
func (p *Processor) deriveMetrics(ctx context.Context, sc config.Scene, red, ndvi string) ([]string, error) {
	type metric struct {
		op     string
		input  string
		output string
		params gis.Params
	}

	jobs := make([]metric, 0, len(textureMetrics)+2)
	for _, m := range textureMetrics {
		jobs = append(jobs, metric{
			op:     "r.texture",
			input:  red,
			output: fmt.Sprintf("%s_tex_%s", sc.ID, m),
			params: gis.Params{"method": m, "size": "3"},
		})
	}
	jobs = append(jobs,
		metric{
			op:     "r.neighbors",
			input:  ndvi,
			output: sc.ID + "_diversity",
			params: gis.Params{"method": "diversity", "size": "7"},
		},
		metric{
			op:     "r.neighbors",
			input:  ndvi,
			output: sc.ID + "_context",
			params: gis.Params{"method": "mode", "size": "7"},
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	if p.Parallel > 1 {
		g.SetLimit(p.Parallel)
	} else {
		g.SetLimit(1)
	}

	var mu sync.Mutex
	layers := make([]string, 0, len(jobs))
	for _, j := range jobs {
		g.Go(func() error {
			if err := p.engine.Compute(gctx, j.op, []string{j.input}, j.output, j.params); err != nil {
				return err
			}
			mu.Lock()
			layers = append(layers, j.output)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(layers)
	return layers, nil
}

// classify runs the unsupervised land-cover classification over the
// corrected bands.
func (p *Processor) classify(ctx context.Context, sc config.Scene, corrected []string) (string, error) {
	group := sc.ID + "_group"
	if err := p.engine.Compute(ctx, "i.group", corrected, group, nil); err != nil {
		return "", err
	}

	sig := sc.ID + "_sig"
	if err := p.engine.Compute(ctx, "i.cluster", []string{group}, sig, gis.Params{
		"classes": strconv.Itoa(p.Classes),
	}); err != nil {
		return "", err
	}

	landcover := sc.ID + "_landcover"
	if err := p.engine.Compute(ctx, "i.maxlik", []string{group, sig}, landcover, nil); err != nil {
		return "", err
	}
	return landcover, nil
}

// deriveDistances computes distance-to-feature rasters from the rasterized
// base layers.
func (p *Processor) deriveDistances(ctx context.Context, sc config.Scene) ([]string, error) {
	names := make([]string, 0, len(p.DistanceSources))
	for name := range p.DistanceSources {
		names = append(names, name)
	}
	sort.Strings(names)

	var layers []string
	for _, name := range names {
		out := fmt.Sprintf("%s_dist_%s", sc.ID, name)
		if err := p.engine.Compute(ctx, "r.grow.distance", []string{p.DistanceSources[name]}, out, nil); err != nil {
			return nil, err
		}
		layers = append(layers, out)
	}
	return layers, nil
}

// cleanup removes the intermediate layers of a scene, keeping the exported
// predictors out of the workspace's way for the next scene.
func (p *Processor) cleanup(ctx context.Context, sc config.Scene, bands, corrected []string) error {
	victims := append(append([]string{}, bands...), corrected...)
	victims = append(victims, sc.ID+"_group", sc.ID+"_sig")
	return p.engine.Remove(ctx, victims...)
}
