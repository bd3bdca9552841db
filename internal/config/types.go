// Package config provides the project configuration for aedesmap. The
// config is loaded once and passed explicitly to every component; no stage
// reads ambient files or environment on its own.
package config

import (
	"fmt"
	"strings"
)

// Region describes the study extent in the working projection.
type Region struct {
	Name       string  `koanf:"name"`
	Projection string  `koanf:"projection"` // proj4 string of the metric working CRS
	Xmin       float64 `koanf:"xmin"`
	Ymin       float64 `koanf:"ymin"`
	Xmax       float64 `koanf:"xmax"`
	Ymax       float64 `koanf:"ymax"`
	CellSize   float64 `koanf:"cell_size"` // meters
}

// Scene identifies one satellite acquisition to process.
type Scene struct {
	ID           string  `koanf:"id"`
	Path         string  `koanf:"path"` // directory holding the band files
	SunElevation float64 `koanf:"sun_elevation"`
	DayOfYear    int     `koanf:"day_of_year"`
}

// OccurrenceConfig controls survey loading and labeling.
type OccurrenceConfig struct {
	CSV            string `koanf:"csv"`
	ValidationCSV  string `koanf:"validation_csv"`
	WindowStart    int    `koanf:"window_start"` // first epidemiological week, inclusive
	WindowEnd      int    `koanf:"window_end"`   // last week, inclusive
	Folds          int    `koanf:"folds"`
	Seed           int64  `koanf:"seed"`
	EvaluationFold int    `koanf:"evaluation_fold"`
	// ValidationOmissionPercentile is the presence fraction the percent-
	// omission validation rule tolerates, independent of the stricter
	// percentile used for candidate selection.
	ValidationOmissionPercentile float64 `koanf:"validation_omission_percentile"`
}

// AreaConfig controls the accessible-area construction.
type AreaConfig struct {
	BufferRadiusMeters float64 `koanf:"buffer_radius_meters"`
}

// CalibrationConfig controls the candidate grid and selection thresholds.
type CalibrationConfig struct {
	RegMultipliers     []float64 `koanf:"reg_multipliers"`
	FeatureSets        []string  `koanf:"feature_sets"`
	OmissionPercentile float64   `koanf:"omission_percentile"`
	OmissionTolerance  float64   `koanf:"omission_tolerance"`
	CorrelationCutoff  float64   `koanf:"correlation_cutoff"`
	ContributionFloor  float64   `koanf:"contribution_floor"` // percent
	Replicates         int       `koanf:"replicates"`
	Parallel           int       `koanf:"parallel"`
}

// RenderConfig controls map output.
type RenderConfig struct {
	Neighborhoods string    `koanf:"neighborhoods"` // shapefile of neighborhood polygons
	NameField     string    `koanf:"name_field"`
	Breaks        []float64 `koanf:"breaks"` // suitability class breaks for the PNG map
}

// GrassConfig locates the GIS engine.
type GrassConfig struct {
	Exe            string `koanf:"exe"`
	Mapset         string `koanf:"mapset"`
	TimeoutMinutes int    `koanf:"timeout_minutes"`
}

// MaxentConfig locates the niche-modeling engine.
type MaxentConfig struct {
	Java           string `koanf:"java"`
	Jar            string `koanf:"jar"`
	HeapMB         int    `koanf:"heap_mb"`
	TimeoutMinutes int    `koanf:"timeout_minutes"`
}

// EnginesConfig groups the external engine settings.
type EnginesConfig struct {
	Grass  GrassConfig  `koanf:"grass"`
	Maxent MaxentConfig `koanf:"maxent"`
}

// Config is the full project configuration.
type Config struct {
	Workspace   string            `koanf:"workspace"`
	StatePath   string            `koanf:"state_path"`
	DEM         string            `koanf:"dem"` // digital elevation model raster
	BaseLayers  map[string]string `koanf:"base_layers"`
	Region      Region            `koanf:"region"`
	Scenes      []Scene           `koanf:"scenes"`
	Occurrence  OccurrenceConfig  `koanf:"occurrence"`
	Area        AreaConfig        `koanf:"area"`
	Calibration CalibrationConfig `koanf:"calibration"`
	Render      RenderConfig      `koanf:"render"`
	Engines     EnginesConfig     `koanf:"engines"`
	LogLevel    string            `koanf:"log_level"`

	// ProjectRoot is the directory the config file was found in. Set by the
	// loader, not by the file.
	ProjectRoot string `koanf:"-"`
}

// Validate checks configuration consistency before any stage runs.
func (c *Config) Validate() error {
	var problems []string

	if c.Region.Projection == "" {
		problems = append(problems, "region.projection is required")
	}
	if c.Region.CellSize <= 0 {
		problems = append(problems, "region.cell_size must be positive")
	}
	if c.Region.Xmax <= c.Region.Xmin || c.Region.Ymax <= c.Region.Ymin {
		problems = append(problems, "region extent is empty")
	}
	if c.Occurrence.WindowEnd < c.Occurrence.WindowStart {
		problems = append(problems, "occurrence.window_end before window_start")
	}
	if c.Occurrence.Folds < 2 {
		problems = append(problems, "occurrence.folds must be >= 2")
	}
	if c.Occurrence.EvaluationFold < 0 || c.Occurrence.EvaluationFold >= c.Occurrence.Folds {
		problems = append(problems, "occurrence.evaluation_fold out of range")
	}
	if c.Occurrence.ValidationOmissionPercentile < 0 || c.Occurrence.ValidationOmissionPercentile >= 100 {
		problems = append(problems, "occurrence.validation_omission_percentile out of range")
	}
	if c.Area.BufferRadiusMeters <= 0 {
		problems = append(problems, "area.buffer_radius_meters must be positive")
	}
	if len(c.Calibration.RegMultipliers) == 0 {
		problems = append(problems, "calibration.reg_multipliers is empty")
	}
	if len(c.Calibration.FeatureSets) == 0 {
		problems = append(problems, "calibration.feature_sets is empty")
	}
	for _, m := range c.Calibration.RegMultipliers {
		if m <= 0 {
			problems = append(problems, fmt.Sprintf("regularization multiplier %g must be positive", m))
		}
	}
	if c.Calibration.Replicates < 2 {
		problems = append(problems, "calibration.replicates must be >= 2")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
