package config

// Default configuration values.
const (
	DefaultWorkspace          = "workspace"
	DefaultStateFile          = "aedesmap.db"
	DefaultLogLevel           = "info"
	DefaultFolds              = 4
	DefaultBufferRadiusMeters = 2000.0
	DefaultOmissionPercentile = 5.0
	DefaultOmissionTolerance  = 0.10
	// DefaultValidationOmission is looser than the selection percentile:
	// independent field surveys carry more noise than the calibration split.
	DefaultValidationOmission = 10.0
	DefaultCorrelationCutoff  = 0.7
	DefaultContributionFloor  = 1.0
	DefaultReplicates         = 10
	DefaultMaxentHeapMB       = 1024
	DefaultNameField          = "NAME"
)

// defaultsMap is the lowest-precedence koanf layer.
func defaultsMap() map[string]interface{} {
	return map[string]interface{}{
		"workspace":        DefaultWorkspace,
		"state_path":       DefaultStateFile,
		"log_level":        DefaultLogLevel,
		"occurrence.folds": DefaultFolds,
		"occurrence.validation_omission_percentile": DefaultValidationOmission,
		"area.buffer_radius_meters":                 DefaultBufferRadiusMeters,
		"calibration.omission_percentile":           DefaultOmissionPercentile,
		"calibration.omission_tolerance":            DefaultOmissionTolerance,
		"calibration.correlation_cutoff":            DefaultCorrelationCutoff,
		"calibration.contribution_floor":            DefaultContributionFloor,
		"calibration.replicates":                    DefaultReplicates,
		"engines.grass.exe":                         "grass",
		"engines.maxent.java":                       "java",
		"engines.maxent.heap_mb":                    DefaultMaxentHeapMB,
		"render.name_field":                         DefaultNameField,
	}
}

// ApplyDefaults fills zero-valued fields that koanf layering cannot cover,
// notably slice defaults that a config file would otherwise merge with.
func (c *Config) ApplyDefaults() {
	if len(c.Calibration.RegMultipliers) == 0 {
		c.Calibration.RegMultipliers = []float64{0.5, 1, 2, 3, 4}
	}
	if len(c.Calibration.FeatureSets) == 0 {
		c.Calibration.FeatureSets = []string{"l", "lq", "lqp", "lqph"}
	}
	if len(c.Render.Breaks) == 0 {
		c.Render.Breaks = []float64{0.2, 0.4, 0.6, 0.8}
	}
	if c.Calibration.Parallel <= 0 {
		c.Calibration.Parallel = 1
	}
}
