package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/pipeline"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	return stageCommand("ingest",
		"Import the DEM and vector base layers",
		`Import the digital elevation model and the vector base layers into the
GIS workspace, rasterize the vectors, and record the mean elevation used
by atmospheric correction.`,
		pipeline.StageIngest)
}

// NewSceneCommand creates the scene command.
func NewSceneCommand() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Derive environmental predictors from satellite scenes",
		Long: `Run the per-scene chain: band import, atmospheric correction, spectral
indices, texture and diversity metrics, unsupervised land-cover
classification, distance surfaces, and export of the predictor stack.`,
		Example: `  # Process every configured scene
  aedesmap scene

  # Reprocess a single scene
  aedesmap scene --scene s2007213`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if only != "" {
				var keep []config.Scene
				for _, sc := range c.Cfg.Scenes {
					if sc.ID == only {
						keep = append(keep, sc)
					}
				}
				if len(keep) == 0 {
					return fmt.Errorf("no scene %q in configuration", only)
				}
				c.Cfg.Scenes = keep
			}
			return runStages(cmd, c, pipeline.Decisions{}, pipeline.StageScene)
		},
	}
	cmd.Flags().StringVar(&only, "scene", "", "Process only this scene ID")
	return cmd
}

// NewOccurrenceCommand creates the occurrence command.
func NewOccurrenceCommand() *cobra.Command {
	return stageCommand("occurrence",
		"Label, project and split the trap survey",
		`Load the ovitrap survey, sum counts over the configured window of
epidemiological weeks, label presences, project sites into the working
coordinate system, and assign cross-validation folds.`,
		pipeline.StageOccurrence)
}

// NewAreaCommand creates the area command.
func NewAreaCommand() *cobra.Command {
	return stageCommand("area",
		"Build the accessible-area mask",
		`Buffer the presence sites, union the buffers into the accessible area,
rasterize it onto the region grid, and clip every predictor to it. The
clipped stack is what model calibration sees.`,
		pipeline.StageArea)
}

// NewCalibrateCommand creates the calibrate command.
func NewCalibrateCommand() *cobra.Command {
	return stageCommand("calibrate",
		"Fit and rank the candidate model grid",
		`Fit one maximum-entropy model per regularization multiplier and feature
set combination, score each by sample-size-corrected AICc and omission
rate, and halt with a ranked decision table for the operator.`,
		pipeline.StageCalibrate)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return stageCommand("validate",
		"Score the final model against independent field sites",
		`Sample the mean suitability surface at independent presence/absence
sites, compute the confusion matrix under each threshold rule, and halt
with the threshold decision table for the operator.`,
		pipeline.StageValidate)
}
