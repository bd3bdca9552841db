package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `workspace: ws
state_path: state/aedesmap.db
dem: data/dem.tif
region:
  name: recife
  projection: "+proj=utm +zone=25 +south +datum=WGS84 +units=m +no_defs"
  xmin: 280000
  ymin: 9090000
  xmax: 300000
  ymax: 9110000
  cell_size: 30
occurrence:
  csv: occurrence/traps.csv
  window_start: 44
  window_end: 52
  folds: 4
  seed: 7
calibration:
  reg_multipliers: [1, 2]
  feature_sets: [lq, lqp]
  replicates: 5
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testConfig)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "recife", cfg.Region.Name)
	assert.Equal(t, 30.0, cfg.Region.CellSize)
	assert.Equal(t, []float64{1, 2}, cfg.Calibration.RegMultipliers)
	assert.Equal(t, 5, cfg.Calibration.Replicates)

	// defaults fill what the file omits
	assert.Equal(t, DefaultOmissionTolerance, cfg.Calibration.OmissionTolerance)
	assert.Equal(t, DefaultValidationOmission, cfg.Occurrence.ValidationOmissionPercentile)
	assert.Equal(t, DefaultBufferRadiusMeters, cfg.Area.BufferRadiusMeters)
	assert.Equal(t, "grass", cfg.Engines.Grass.Exe)

	// relative paths resolve against the project root
	assert.Equal(t, filepath.Join(dir, "ws"), cfg.Workspace)
	assert.Equal(t, filepath.Join(dir, "state", "aedesmap.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(dir, "occurrence", "traps.csv"), cfg.Occurrence.CSV)
	assert.Equal(t, dir, cfg.ProjectRoot)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testConfig)

	t.Setenv("AEDESMAP_LOG_LEVEL", "debug")
	t.Setenv("AEDESMAP_CALIBRATION__OMISSION_TOLERANCE", "0.05")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.05, cfg.Calibration.OmissionTolerance)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testConfig)

	t.Setenv("AEDESMAP_LOG_LEVEL", "debug")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=warn", "--state=/tmp/other.db"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/other.db", cfg.StatePath)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, testConfig)
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found := FindProjectRoot(nested)
	// macOS tempdirs involve symlinks; compare resolved paths
	wantResolved, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, wantResolved, gotResolved)

	assert.Empty(t, FindProjectRoot(filepath.Join(string(filepath.Separator), "nonexistent-aedesmap-root")))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testConfig)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Region.CellSize = 0
	bad.Occurrence.Folds = 1
	bad.Occurrence.ValidationOmissionPercentile = 100
	bad.Calibration.Replicates = 1
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cell_size")
	assert.Contains(t, err.Error(), "folds")
	assert.Contains(t, err.Error(), "validation_omission_percentile")
	assert.Contains(t, err.Error(), "replicates")
}

func TestValidate_WindowAndMultipliers(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testConfig)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	cfg.Occurrence.WindowEnd = cfg.Occurrence.WindowStart - 1
	cfg.Calibration.RegMultipliers = []float64{1, -2}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_end")
	assert.Contains(t, err.Error(), "-2")
}
