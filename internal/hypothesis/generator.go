// Package hypothesis produces research hypotheses that become experiments.
package hypothesis

import (
	"context"
	"errors"

	"github.com/yourusername/research-lab/internal/models"
)

var (
	// ErrGenerationFailed indicates the generator returned no usable hypotheses
	ErrGenerationFailed = errors.New("hypothesis generation failed")

	// ErrInvalidHypothesis indicates a hypothesis that cannot become an experiment
	ErrInvalidHypothesis = errors.New("invalid hypothesis")
)

// Hypothesis is a candidate experiment proposed by a generator
type Hypothesis struct {
	Name       string                 `json:"name"`
	Text       string                 `json:"hypothesis"`
	Type       models.ExperimentType  `json:"experiment_type"`
	Parameters map[string]interface{} `json:"parameters"`
	Confidence float64                `json:"confidence"`
	Rationale  string                 `json:"rationale,omitempty"`
}

// Validate checks that h can be turned into an experiment
func (h Hypothesis) Validate() error {
	if h.Name == "" {
		return errors.Join(ErrInvalidHypothesis, models.ErrExperimentNameRequired)
	}
	if !h.Type.Valid() {
		return errors.Join(ErrInvalidHypothesis, models.ErrInvalidExperimentType)
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return errors.Join(ErrInvalidHypothesis, errors.New("confidence must be within [0, 1]"))
	}
	return nil
}

// ResearchContext is what a generator knows when proposing hypotheses
type ResearchContext struct {
	Focus         string   `json:"focus,omitempty"`
	Insights      []string `json:"insights,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	MaxHypotheses int      `json:"max_hypotheses"`
}

// Generator proposes hypotheses for a research cycle
type Generator interface {
	Generate(ctx context.Context, rc ResearchContext) ([]Hypothesis, error)
}
