package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/geovector-labs/aedesmap/internal/state"
)

// Checkpoint names. The calibrate checkpoint sits between selection and
// finalization; the threshold checkpoint between validation and rendering.
const (
	CheckpointCandidate = "candidate"
	CheckpointThreshold = "threshold"
)

// CandidateRow is one ranked candidate in the model-selection decision.
type CandidateRow struct {
	ID        string  `yaml:"id"`
	AICc      float64 `yaml:"aicc"`
	Omission  float64 `yaml:"omission"`
	NParams   int     `yaml:"n_params"`
	Qualifies bool    `yaml:"qualifies"`
}

// CandidateDecision is the artifact emitted at the model-selection
// checkpoint. The operator fills Chosen and resumes with finalize.
type CandidateDecision struct {
	RunID      string         `yaml:"run_id"`
	Checkpoint string         `yaml:"checkpoint"`
	Candidates []CandidateRow `yaml:"candidates"`
	Chosen     string         `yaml:"chosen"`
}

// ThresholdRow is one threshold rule's outcome in the validation decision.
type ThresholdRow struct {
	Rule        string  `yaml:"rule"`
	Threshold   float64 `yaml:"threshold"`
	Sensitivity float64 `yaml:"sensitivity"`
	Specificity float64 `yaml:"specificity"`
	Accuracy    float64 `yaml:"accuracy"`
}

// ThresholdDecision is the artifact emitted at the threshold checkpoint.
// The operator fills ChosenRule and resumes with render.
type ThresholdDecision struct {
	RunID      string         `yaml:"run_id"`
	Checkpoint string         `yaml:"checkpoint"`
	Rules      []ThresholdRow `yaml:"rules"`
	ChosenRule string         `yaml:"chosen_rule"`
}

// WriteDecision writes any decision document as YAML, atomically.
func WriteDecision(path string, doc any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".decision-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCandidateDecision reads and structurally checks a candidate decision.
func LoadCandidateDecision(path string) (*CandidateDecision, error) {
	var d CandidateDecision
	if err := loadYAML(path, &d); err != nil {
		return nil, err
	}
	if d.Checkpoint != CheckpointCandidate {
		return nil, fmt.Errorf("%s: not a candidate decision (checkpoint %q)", path, d.Checkpoint)
	}
	return &d, nil
}

// LoadThresholdDecision reads and structurally checks a threshold decision.
func LoadThresholdDecision(path string) (*ThresholdDecision, error) {
	var d ThresholdDecision
	if err := loadYAML(path, &d); err != nil {
		return nil, err
	}
	if d.Checkpoint != CheckpointThreshold {
		return nil, fmt.Errorf("%s: not a threshold decision (checkpoint %q)", path, d.Checkpoint)
	}
	return &d, nil
}

// ResolveCandidate validates an operator's candidate choice against the
// store and records it. The referenced run must exist and the chosen id
// must be one of the ranked candidates.
func ResolveCandidate(store state.Store, d *CandidateDecision, path string) error {
	if d.Chosen == "" {
		return fmt.Errorf("decision %s: no candidate chosen; fill the 'chosen' field", path)
	}
	if _, err := store.GetRun(d.RunID); err != nil {
		return fmt.Errorf("decision %s: %w", path, err)
	}
	found := false
	for _, c := range d.Candidates {
		if c.ID == d.Chosen {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("decision %s: chosen candidate %q is not in the ranked list", path, d.Chosen)
	}
	return store.RecordDecision(&state.Decision{
		RunID:      d.RunID,
		Checkpoint: CheckpointCandidate,
		Choice:     d.Chosen,
		Path:       path,
	})
}

// ResolveThreshold validates an operator's threshold-rule choice against
// the store and records it, returning the chosen threshold value.
func ResolveThreshold(store state.Store, d *ThresholdDecision, path string) (float64, error) {
	if d.ChosenRule == "" {
		return 0, fmt.Errorf("decision %s: no rule chosen; fill the 'chosen_rule' field", path)
	}
	if _, err := store.GetRun(d.RunID); err != nil {
		return 0, fmt.Errorf("decision %s: %w", path, err)
	}
	for _, r := range d.Rules {
		if r.Rule == d.ChosenRule {
			if err := store.RecordDecision(&state.Decision{
				RunID:      d.RunID,
				Checkpoint: CheckpointThreshold,
				Choice:     d.ChosenRule,
				Path:       path,
			}); err != nil {
				return 0, err
			}
			return r.Threshold, nil
		}
	}
	return 0, fmt.Errorf("decision %s: chosen rule %q is not in the rule table", path, d.ChosenRule)
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read decision file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: malformed decision file: %w", path, err)
	}
	return nil
}
