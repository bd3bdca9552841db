package validate

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geovector-labs/aedesmap/internal/raster"
)

func TestEvaluate(t *testing.T) {
	samples := []Sample{
		{Value: 0.9, Present: true},
		{Value: 0.4, Present: true},
		{Value: 0.6, Present: false},
		{Value: 0.1, Present: false},
	}

	c := Evaluate(samples, 0.5)
	assert.Equal(t, Confusion{TP: 1, FN: 1, FP: 1, TN: 1}, c)
	assert.InDelta(t, 0.5, c.Sensitivity(), 1e-12)
	assert.InDelta(t, 0.5, c.Accuracy(), 1e-12)
}

func TestConfusionIdentities(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var samples []Sample
	for i := 0; i < 200; i++ {
		samples = append(samples, Sample{
			SiteID:  fmt.Sprintf("v%03d", i),
			Value:   rng.Float64(),
			Present: rng.Float64() < 0.3,
		})
	}

	for th := 0.0; th <= 1.0; th += 0.05 {
		c := Evaluate(samples, th)
		if c.TP+c.FN > 0 {
			assert.InDelta(t, 1.0, c.FNR()+c.Sensitivity(), 1e-12, "threshold %g", th)
		}
		if c.TN+c.FP > 0 {
			assert.InDelta(t, 1.0, c.FPR()+c.Specificity(), 1e-12, "threshold %g", th)
		}
	}
}

func TestRun_RuleThresholds(t *testing.T) {
	// presence predictions: 0.2 0.3 0.5 0.7 0.9; absences low.
	samples := []Sample{
		{SiteID: "p1", Value: 0.2, Present: true},
		{SiteID: "p2", Value: 0.3, Present: true},
		{SiteID: "p3", Value: 0.5, Present: true},
		{SiteID: "p4", Value: 0.7, Present: true},
		{SiteID: "p5", Value: 0.9, Present: true},
		{SiteID: "a1", Value: 0.1, Present: false},
		{SiteID: "a2", Value: 0.15, Present: false},
		{SiteID: "a3", Value: 0.25, Present: false},
		{SiteID: "a4", Value: 0.05, Present: false},
	}

	results, err := Run(samples, 0.10)
	require.NoError(t, err)
	require.Len(t, results, len(Rules()))

	byRule := map[Rule]Result{}
	for _, r := range results {
		byRule[r.Rule] = r
	}

	assert.InDelta(t, 0.2, byRule[RuleMinPresence].Threshold, 1e-12)
	assert.InDelta(t, 0.52, byRule[RuleMeanPresence].Threshold, 1e-12)
	// 10% of 5 presences floors to 0 omitted, so the P10 cutoff is the minimum
	assert.InDelta(t, 0.2, byRule[RulePercentile].Threshold, 1e-12)
	// max sens+spec: at 0.3, sens=4/5 and spec=1; no candidate beats 1.8
	assert.InDelta(t, 0.3, byRule[RuleMaxSensSpec].Threshold, 1e-12)

	for _, r := range results {
		c := r.Confusion
		assert.Equal(t, 9, c.TP+c.FP+c.TN+c.FN, "rule %s", r.Rule)
		assert.InDelta(t, 1.0, c.FNR()+c.Sensitivity(), 1e-12)
		assert.InDelta(t, 1.0, c.FPR()+c.Specificity(), 1e-12)
	}
}

func TestRun_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var samples []Sample
	for i := 0; i < 80; i++ {
		samples = append(samples, Sample{
			SiteID:  fmt.Sprintf("v%02d", i),
			Value:   rng.Float64(),
			Present: i%3 == 0,
		})
	}

	a, err := Run(samples, 0.10)
	require.NoError(t, err)
	b, err := Run(samples, 0.10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_DegenerateInputs(t *testing.T) {
	_, err := Run(nil, 0.1)
	require.Error(t, err)

	onlyPresence := []Sample{{Value: 0.5, Present: true}}
	_, err = Run(onlyPresence, 0.1)
	require.Error(t, err)

	onlyAbsence := []Sample{{Value: 0.5, Present: false}}
	_, err = Run(onlyAbsence, 0.1)
	require.Error(t, err)

	mixed := []Sample{{Value: 0.5, Present: true}, {Value: 0.2, Present: false}}
	_, err = Run(mixed, 1.0)
	require.Error(t, err)
}

func TestSampler(t *testing.T) {
	g := raster.New(3, 3, 0, 0, 10)
	for i := range g.Data {
		g.Data[i] = float64(i) / 10
	}
	g.Set(1, 1, g.Nodata)

	sites := []Site{
		{SiteID: "ok", X: 5, Y: 5, Present: true},
		{SiteID: "nodata", X: 15, Y: 15, Present: false},
	}

	_, err := Sampler(g, sites)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nodata")

	got, err := Sampler(g, sites[:1])
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.6, got[0].Value, 1e-12)
}

func TestCheckIndependence(t *testing.T) {
	sites := []Site{{SiteID: "a"}, {SiteID: "b"}}

	require.NoError(t, CheckIndependence(sites, map[string]bool{"c": true}))

	err := CheckIndependence(sites, map[string]bool{"b": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}

func TestLoadSites(t *testing.T) {
	csv := "site,lon,lat,present\n" +
		"v01,-34.90,-8.05,1\n" +
		"v02,-34.92,-8.06,0\n"
	path := filepath.Join(t.TempDir(), "validation.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	utm25s := "+proj=utm +zone=25 +south +datum=WGS84 +units=m +no_defs"
	sites, err := LoadSites(path, utm25s)
	require.NoError(t, err)
	require.Len(t, sites, 2)

	assert.Equal(t, "v01", sites[0].SiteID)
	assert.True(t, sites[0].Present)
	assert.False(t, sites[1].Present)
	// Recife sits around 290km easting, 9.1Mm northing in UTM 25S.
	assert.InDelta(t, 290e3, sites[0].X, 20e3)
	assert.InDelta(t, 9.11e6, sites[0].Y, 20e3)
}

func TestLoadSites_BadPresent(t *testing.T) {
	csv := "site,lon,lat,present\nv01,-34.90,-8.05,maybe\n"
	path := filepath.Join(t.TempDir(), "validation.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	_, err := LoadSites(path, "+proj=utm +zone=25 +south +datum=WGS84 +units=m +no_defs")
	require.ErrorContains(t, err, "present must be 0 or 1")
}

func TestLoadSites_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validation.csv")
	require.NoError(t, os.WriteFile(path, []byte("site,lon,lat\nv01,-34.9,-8.05\n"), 0o644))

	_, err := LoadSites(path, "+proj=longlat +datum=WGS84 +no_defs")
	require.ErrorContains(t, err, `missing column "present"`)
}
