package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const configTemplate = `# aedesmap project configuration.
workspace: workspace
state_path: aedesmap.db

# Digital elevation model of the study region (GeoTIFF).
dem: data/srtm.tif

# Vector base layers rasterized during ingest; distance surfaces are
# derived from each of them.
base_layers:
  canals: data/canals.shp
  watercourses: data/watercourses.shp

region:
  name: recife
  projection: "+proj=utm +zone=25 +south +datum=WGS84 +units=m +no_defs"
  xmin: 280000
  ymin: 9090000
  xmax: 300000
  ymax: 9115000
  cell_size: 30

# Satellite scenes, one directory of band<N>.tif files each.
scenes:
  - id: s2007032
    path: data/scenes/s2007032
    sun_elevation: 55.2
    day_of_year: 32

occurrence:
  csv: data/ovitraps.csv
  validation_csv: data/validation.csv
  window_start: 44
  window_end: 52
  folds: 4
  seed: 1
  evaluation_fold: 0
  validation_omission_percentile: 10

area:
  buffer_radius_meters: 2000

calibration:
  reg_multipliers: [0.5, 1, 2, 3, 4]
  feature_sets: [l, lq, lqp, lqph]
  omission_percentile: 5
  omission_tolerance: 0.10
  correlation_cutoff: 0.7
  contribution_floor: 1.0
  replicates: 10
  parallel: 2

render:
  neighborhoods: data/neighborhoods.shp
  name_field: NAME
  breaks: [0.2, 0.4, 0.6, 0.8]

engines:
  grass:
    exe: grass
    mapset: aedesmap
    timeout_minutes: 30
  maxent:
    java: java
    jar: tools/maxent.jar
    heap_mb: 1024
    timeout_minutes: 60

log_level: info
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new aedesmap project",
		Long: `Create the project skeleton: an aedesmap.yaml configuration template,
the workspace directory for derived data, and a data directory for
inputs. Edit the configuration before running the pipeline.`,
		Example: `  # Initialize in the current directory
  aedesmap init

  # Initialize in a new directory
  aedesmap init recife-2007`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "aedesmap.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("aedesmap.yaml already exists. Use --force to overwrite")
	}
	if err := os.WriteFile(configPath, []byte(configTemplate), 0o644); err != nil {
		return err
	}

	for _, sub := range []string{"workspace", "data", "data/scenes", "tools"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized aedesmap project in %s\n", dir)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Place the DEM, scenes, surveys and shapefiles under data/")
	fmt.Fprintln(out, "  2. Edit aedesmap.yaml (region extent, scenes, engine paths)")
	fmt.Fprintln(out, "  3. Check the setup: aedesmap doctor")
	fmt.Fprintln(out, "  4. Start the pipeline: aedesmap run")
	return nil
}
