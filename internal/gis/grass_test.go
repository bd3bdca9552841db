package gis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenParams_DeterministicOrder(t *testing.T) {
	p := Params{"resolution": "30", "extent": "region", "method": "bilinear"}

	got := flattenParams(p)
	want := []string{"extent=region", "method=bilinear", "resolution=30"}
	assert.Equal(t, want, got)

	// repeated calls agree regardless of map iteration order
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, flattenParams(p))
	}
}

func TestFlattenParams_SkipAndFlags(t *testing.T) {
	p := Params{"kind": "vector", "-o": "", "snap": "1e-6"}
	got := flattenParams(p, "kind")
	assert.Equal(t, []string{"-o", "snap=1e-6"}, got)
}

func TestGRASSExec_FailureNamesLayerAndCommand(t *testing.T) {
	g := NewGRASS("/nonexistent/grass", "/tmp/gisdb/loc/PERMANENT", 0, nil)

	err := g.Compute(context.Background(), "i.vi", []string{"toar_red", "toar_nir"}, "ndvi_s1", Params{"viname": "ndvi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ndvi_s1")
	assert.Contains(t, err.Error(), "i.vi")
}

func TestGRASSCheck_Unavailable(t *testing.T) {
	g := NewGRASS("/nonexistent/grass", "/tmp/gisdb/loc/PERMANENT", 0, nil)
	err := g.Check(context.Background())
	require.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestRemove_NoLayersIsNoop(t *testing.T) {
	g := NewGRASS("/nonexistent/grass", "", 0, nil)
	require.NoError(t, g.Remove(context.Background(), []string{}...))
}
