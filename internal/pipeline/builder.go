package pipeline

import (
	"log/slog"

	"github.com/geovector-labs/aedesmap/internal/config"
	"github.com/geovector-labs/aedesmap/internal/gis"
	"github.com/geovector-labs/aedesmap/internal/niche"
	"github.com/geovector-labs/aedesmap/internal/state"
)

// Engines bundles the external tools the stages shell out to.
type Engines struct {
	GIS   gis.Engine
	Niche niche.Runner
}

// Decisions carries resolved checkpoint choices into the stages behind
// them. Zero values leave those stages unable to run, which is correct
// before the operator has decided.
type Decisions struct {
	// Candidate is the chosen model configuration ID.
	Candidate string
	// ThresholdRule and Threshold are the chosen cut rule and its value.
	ThresholdRule string
	Threshold     float64
}

// Build assembles the full pipeline graph. Stage dependencies mirror the
// data flow: the accessible area needs both the labeled records and the
// predictor stack; calibration needs everything upstream; rendering waits
// for validation.
func Build(cfg *config.Config, store state.Store, logger *slog.Logger,
	eng Engines, dec Decisions) (*Runner, error) {

	r := NewRunner(cfg, store, logger)

	register := []struct {
		stage    Stage
		upstream []string
	}{
		{&IngestStage{Engine: eng.GIS}, nil},
		{&SceneStage{Engine: eng.GIS}, []string{StageIngest}},
		{&OccurrenceStage{}, nil},
		{&AreaStage{}, []string{StageOccurrence, StageScene}},
		{&CalibrateStage{Runner: eng.Niche}, []string{StageArea}},
		{&FinalizeStage{Runner: eng.Niche, Chosen: dec.Candidate}, []string{StageCalibrate}},
		{&ValidateStage{}, []string{StageFinalize}},
		{&RenderStage{Rule: dec.ThresholdRule, Threshold: dec.Threshold}, []string{StageValidate}},
	}
	for _, reg := range register {
		if err := r.Register(reg.stage, reg.upstream...); err != nil {
			return nil, err
		}
	}
	return r, nil
}
