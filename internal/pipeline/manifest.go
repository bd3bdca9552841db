package pipeline

import (
	"fmt"
	"math"
	"os"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/raster"
	"github.com/geovector-labs/aedesmap/internal/state"
)

const extentTol = 1e-6

// validateInputs checks every declared input against the manifest before a
// stage computes anything: the entry must exist, the file must be present,
// and raster artifacts must match the configured working region.
func validateInputs(rc *RunContext, stage Stage) error {
	for _, name := range stage.Inputs() {
		a, err := rc.Artifact(name)
		if err != nil {
			return fmt.Errorf("stage %s: missing input artifact %q: %w", stage.Name(), name, err)
		}
		if _, err := os.Stat(a.Path); err != nil {
			return fmt.Errorf("stage %s: input %q: file %s: %w", stage.Name(), name, a.Path, err)
		}
		if a.Kind == "raster" {
			if err := checkRasterMeta(a, &rc.Config.Region); err != nil {
				return fmt.Errorf("stage %s: input %q: %w", stage.Name(), name, err)
			}
		}
	}
	return nil
}

// checkRasterMeta verifies a raster artifact's recorded CRS and grid
// geometry against the working region.
func checkRasterMeta(a *state.Artifact, region *config.Region) error {
	if a.CRS != "" && region.Projection != "" && a.CRS != region.Projection {
		return fmt.Errorf("%w: artifact CRS %q does not match region projection", raster.ErrMisaligned, a.CRS)
	}
	if a.CellSize != 0 && math.Abs(a.CellSize-region.CellSize) > extentTol {
		return fmt.Errorf("%w: artifact cell size %g vs region %g", raster.ErrMisaligned, a.CellSize, region.CellSize)
	}
	if a.Xmax > a.Xmin { // extent recorded
		if a.Xmin-region.Xmin < -extentTol || region.Xmax-a.Xmax < -extentTol ||
			a.Ymin-region.Ymin < -extentTol || region.Ymax-a.Ymax < -extentTol {
			return fmt.Errorf("%w: artifact extent [%g %g %g %g] outside region", raster.ErrMisaligned,
				a.Xmin, a.Ymin, a.Xmax, a.Ymax)
		}
	}
	return nil
}
