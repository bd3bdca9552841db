package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineGraph builds the production stage layout: a mostly linear chain
// with calibration consuming both the scene rasters and the occurrence
// labels.
func pipelineGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, s := range []string{"ingest", "scene", "occurrence", "area", "calibrate", "finalize", "validate", "render"} {
		g.Add(s)
	}
	deps := map[string][]string{
		"scene":     {"ingest"},
		"area":      {"occurrence"},
		"calibrate": {"scene", "occurrence", "area"},
		"finalize":  {"calibrate"},
		"validate":  {"finalize"},
		"render":    {"finalize", "validate"},
	}
	for stage, ups := range deps {
		for _, up := range ups {
			require.NoError(t, g.Depend(stage, up))
		}
	}
	return g
}

func TestDepend_Validation(t *testing.T) {
	g := New()
	g.Add("scene")

	require.Error(t, g.Depend("scene", "ingest"))
	require.Error(t, g.Depend("render", "scene"))
	require.Error(t, g.Depend("scene", "scene"))
}

func TestSort_OrderRespectsDependencies(t *testing.T) {
	g := pipelineGraph(t)

	order, err := g.Sort()
	require.NoError(t, err)
	require.Len(t, order, 8)

	pos := map[string]int{}
	for i, s := range order {
		pos[s] = i
	}
	assert.Less(t, pos["ingest"], pos["scene"])
	assert.Less(t, pos["scene"], pos["calibrate"])
	assert.Less(t, pos["occurrence"], pos["calibrate"])
	assert.Less(t, pos["area"], pos["calibrate"])
	assert.Less(t, pos["calibrate"], pos["finalize"])
	assert.Less(t, pos["finalize"], pos["render"])
	assert.Less(t, pos["validate"], pos["render"])

	again, err := g.Sort()
	require.NoError(t, err)
	assert.Equal(t, order, again, "sort must be deterministic")
}

func TestCycleDetection(t *testing.T) {
	g := New()
	g.Add("a")
	g.Add("b")
	g.Add("c")
	require.NoError(t, g.Depend("b", "a"))
	require.NoError(t, g.Depend("c", "b"))
	require.NoError(t, g.Depend("a", "c"))

	has, path := g.Cycle()
	assert.True(t, has)
	assert.GreaterOrEqual(t, len(path), 3)

	_, err := g.Sort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDownstream_SkipSetOnFailure(t *testing.T) {
	g := pipelineGraph(t)

	skip := g.Downstream("scene")
	assert.Equal(t, []string{"calibrate", "finalize", "render", "scene", "validate"}, skip)

	// an occurrence failure must not skip the scene chain
	skip = g.Downstream("occurrence")
	assert.NotContains(t, skip, "scene")
	assert.Contains(t, skip, "area")
	assert.Contains(t, skip, "calibrate")
}

func TestUpstream(t *testing.T) {
	g := pipelineGraph(t)

	up := g.Upstream("calibrate")
	assert.Equal(t, []string{"area", "ingest", "occurrence", "scene"}, up)

	assert.Empty(t, g.Upstream("ingest"))
}

func TestSubgraph(t *testing.T) {
	g := pipelineGraph(t)

	sub := g.Subgraph([]string{"finalize", "validate", "render"})
	assert.Equal(t, []string{"finalize", "render", "validate"}, sub.Stages())

	order, err := sub.Sort()
	require.NoError(t, err)
	assert.Equal(t, "finalize", order[0])
	assert.Equal(t, "render", order[2])

	// edges crossing the cut are dropped
	assert.Empty(t, sub.Upstream("finalize"))
}
