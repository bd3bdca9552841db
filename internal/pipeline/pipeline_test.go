package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/raster"
	"github.com/geovector-labs/aedesmap/internal/state"
)

type fakeStage struct {
	name   string
	inputs []string
	run    func(ctx context.Context, rc *RunContext) error
	calls  int
}

func (f *fakeStage) Name() string     { return f.name }
func (f *fakeStage) Inputs() []string { return f.inputs }
func (f *fakeStage) Run(ctx context.Context, rc *RunContext) error {
	f.calls++
	if f.run != nil {
		return f.run(ctx, rc)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Region: config.Region{
			Name:       "recife",
			Projection: "+proj=utm +zone=25 +south",
			Xmin:       0, Ymin: 0, Xmax: 1000, Ymax: 1000,
			CellSize: 30,
		},
	}
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })
	return NewRunner(testConfig(), store, nil)
}

func TestExecute_AllSucceed(t *testing.T) {
	r := newRunner(t)
	a := &fakeStage{name: "a"}
	b := &fakeStage{name: "b"}
	c := &fakeStage{name: "c"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b, "a"))
	require.NoError(t, r.Register(c, "b"))

	res, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
	for _, s := range []string{"a", "b", "c"} {
		assert.Equal(t, state.StageStatusSuccess, res.Statuses[s])
	}
}

func TestExecute_FailureSkipsDownstream(t *testing.T) {
	r := newRunner(t)
	a := &fakeStage{name: "a"}
	b := &fakeStage{name: "b", run: func(context.Context, *RunContext) error {
		return fmt.Errorf("band 4 missing")
	}}
	c := &fakeStage{name: "c"}
	side := &fakeStage{name: "side"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b, "a"))
	require.NoError(t, r.Register(c, "b"))
	require.NoError(t, r.Register(side, "a"))

	res, err := r.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage b")
	assert.Contains(t, err.Error(), "band 4 missing")

	assert.Equal(t, state.StageStatusSuccess, res.Statuses["a"])
	assert.Equal(t, state.StageStatusFailed, res.Statuses["b"])
	assert.Equal(t, state.StageStatusSkipped, res.Statuses["c"])
	// independent branch still runs
	assert.Equal(t, state.StageStatusSuccess, res.Statuses["side"])
	assert.Equal(t, 0, c.calls)
	assert.Equal(t, 1, side.calls)

	got, err := r.store.GetRun(res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "band 4 missing")
}

func TestExecute_CheckpointHaltsRun(t *testing.T) {
	r := newRunner(t)
	a := &fakeStage{name: "calibrate", run: func(_ context.Context, rc *RunContext) error {
		return fmt.Errorf("ranked candidates written: %w", ErrCheckpoint)
	}}
	b := &fakeStage{name: "finalize"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b, "calibrate"))

	res, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "calibrate", res.HaltedAt)
	assert.Equal(t, state.RunStatusAwaiting, res.Run.Status)
	assert.Equal(t, state.StageStatusSuccess, res.Statuses["calibrate"])
	assert.Equal(t, state.StageStatusPending, res.Statuses["finalize"])
	assert.Equal(t, 0, b.calls)
}

func TestExecute_SubsetAndUnknownStage(t *testing.T) {
	r := newRunner(t)
	a := &fakeStage{name: "a"}
	b := &fakeStage{name: "b"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b, "a"))

	res, err := r.Execute(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Len(t, res.Statuses, 1)

	_, err = r.Execute(context.Background(), "nope")
	require.Error(t, err)
}

func TestValidateInputs_MissingAndMisaligned(t *testing.T) {
	r := newRunner(t)
	dir := t.TempDir()

	consumer := &fakeStage{name: "consumer", inputs: []string{"ndvi"}}
	producer := &fakeStage{name: "producer", run: func(_ context.Context, rc *RunContext) error {
		path := filepath.Join(dir, "ndvi.asc")
		if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
			return err
		}
		return rc.RecordArtifact(&state.Artifact{
			Stage: "producer", Name: "ndvi", Kind: "raster", Path: path,
			CRS: "+proj=utm +zone=25 +south", CellSize: 30,
			Xmin: 0, Ymin: 0, Xmax: 1000, Ymax: 1000,
		})
	}}
	require.NoError(t, r.Register(producer))
	require.NoError(t, r.Register(consumer, "producer"))

	res, err := r.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.StageStatusSuccess, res.Statuses["consumer"])
}

func TestValidateInputs_RejectsWrongCRS(t *testing.T) {
	r := newRunner(t)
	dir := t.TempDir()

	producer := &fakeStage{name: "producer", run: func(_ context.Context, rc *RunContext) error {
		path := filepath.Join(dir, "ndvi.asc")
		if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
			return err
		}
		return rc.RecordArtifact(&state.Artifact{
			Stage: "producer", Name: "ndvi", Kind: "raster", Path: path,
			CRS: "+proj=longlat +datum=WGS84", CellSize: 30,
		})
	}}
	consumer := &fakeStage{name: "consumer", inputs: []string{"ndvi"}}
	require.NoError(t, r.Register(producer))
	require.NoError(t, r.Register(consumer, "producer"))

	_, err := r.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, raster.ErrMisaligned)
}

func TestValidateInputs_RejectsMissingArtifact(t *testing.T) {
	r := newRunner(t)
	consumer := &fakeStage{name: "consumer", inputs: []string{"ndvi"}}
	require.NoError(t, r.Register(consumer))

	_, err := r.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing input artifact")
	assert.Equal(t, 0, consumer.calls)
}

func TestResume_ContinuesHaltedRun(t *testing.T) {
	r := newRunner(t)
	calibrate := &fakeStage{name: "calibrate", run: func(context.Context, *RunContext) error {
		return ErrCheckpoint
	}}
	finalize := &fakeStage{name: "finalize"}
	require.NoError(t, r.Register(calibrate))
	require.NoError(t, r.Register(finalize, "calibrate"))

	halted, err := r.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, state.RunStatusAwaiting, halted.Run.Status)

	res, err := r.Resume(context.Background(), halted.Run.ID, "finalize")
	require.NoError(t, err)
	assert.Equal(t, halted.Run.ID, res.Run.ID)
	assert.Equal(t, state.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 1, finalize.calls)
}

func TestResume_RejectsNonHaltedRun(t *testing.T) {
	r := newRunner(t)
	a := &fakeStage{name: "a"}
	require.NoError(t, r.Register(a))

	done, err := r.Execute(context.Background())
	require.NoError(t, err)

	_, err = r.Resume(context.Background(), done.Run.ID, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not awaiting")

	_, err = r.Resume(context.Background(), "no-such-run", "a")
	require.Error(t, err)
}

func TestResume_DefaultRunsRemaining(t *testing.T) {
	r := newRunner(t)
	a := &fakeStage{name: "a"}
	b := &fakeStage{name: "b", run: func(context.Context, *RunContext) error {
		return fmt.Errorf("operator input needed: %w", ErrCheckpoint)
	}}
	c := &fakeStage{name: "c"}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b, "a"))
	require.NoError(t, r.Register(c, "b"))

	halted, err := r.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", halted.HaltedAt)

	res, err := r.Resume(context.Background(), halted.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestAttach_ReusesRunManifest(t *testing.T) {
	r := newRunner(t)
	producer := &fakeStage{name: "a", run: func(_ context.Context, rc *RunContext) error {
		path := filepath.Join(t.TempDir(), "table.csv")
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
		return rc.RecordArtifact(&state.Artifact{Stage: "a", Name: "table", Kind: "table", Path: path})
	}}
	consumer := &fakeStage{name: "b", inputs: []string{"table"}}
	require.NoError(t, r.Register(producer))
	require.NoError(t, r.Register(consumer, "a"))

	first, err := r.Execute(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, state.RunStatusCompleted, first.Run.Status)

	second, err := r.Attach(context.Background(), first.Run.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, state.StageStatusSuccess, second.Statuses["b"])
	assert.Equal(t, 1, consumer.calls)
}
