package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/research-lab/internal/models"
)

// Outcome is what an experiment produced, successful or not.
type Outcome struct {
	ExperimentID    uuid.UUID
	Status          models.ExperimentStatus
	TrainingResults map[string]interface{}
	BacktestResults map[string]interface{}
	Error           *models.ErrorInfo
}

// AnalysisResult is the immutable output of one analysis pass
type AnalysisResult struct {
	ExperimentID    uuid.UUID          `json:"experiment_id"`
	FitnessScore    float64            `json:"fitness_score"`
	Components      FitnessComponents  `json:"fitness_components"`
	Metrics         PerformanceMetrics `json:"performance_metrics"`
	RiskProfile     RiskProfile        `json:"risk_profile"`
	Insights        []string           `json:"insights"`
	Warnings        []string           `json:"warnings"`
	Recommendations []string           `json:"recommendations"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
}

// ToResults converts a successful analysis into the persisted results blob.
func (r *AnalysisResult) ToResults(training, backtest map[string]interface{}) *models.ExperimentResults {
	return &models.ExperimentResults{
		FitnessScore:       r.FitnessScore,
		RiskProfile:        string(r.RiskProfile),
		PerformanceMetrics: r.Metrics.ToMap(),
		FitnessComponents:  r.Components.ToMap(),
		TrainingResults:    training,
		BacktestResults:    backtest,
		Insights:           r.Insights,
		Warnings:           r.Warnings,
		Recommendations:    r.Recommendations,
	}
}

// Analyzer runs metric calculation and fitness scoring for experiments
type Analyzer struct {
	calculator *MetricsCalculator
	scorer     *FitnessScorer
	now        func() time.Time
}

// NewAnalyzer creates a results analyzer
func NewAnalyzer(calculator *MetricsCalculator, scorer *FitnessScorer) *Analyzer {
	return &Analyzer{
		calculator: calculator,
		scorer:     scorer,
		now:        time.Now,
	}
}

// Analyze scores a completed experiment or explains a failed one.
// Only context cancellation produces an error.
func (a *Analyzer) Analyze(ctx context.Context, outcome Outcome) (*AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outcome.Status != models.ExperimentStatusCompleted {
		return a.analyzeFailure(outcome), nil
	}
	metrics := a.calculator.Calculate(outcome.TrainingResults, outcome.BacktestResults)
	return a.AnalyzeMetrics(outcome.ExperimentID, metrics), nil
}

// AnalyzeMetrics scores an already computed metrics snapshot.
func (a *Analyzer) AnalyzeMetrics(experimentID uuid.UUID, metrics PerformanceMetrics) *AnalysisResult {
	fitness := a.scorer.Score(metrics)
	f := describeSuccess(metrics, fitness, a.scorer.Config().Thresholds)
	return &AnalysisResult{
		ExperimentID:    experimentID,
		FitnessScore:    fitness.Score,
		Components:      fitness.Components,
		Metrics:         metrics,
		RiskProfile:     fitness.RiskProfile,
		Insights:        f.insights,
		Warnings:        f.warnings,
		Recommendations: f.recommendations,
		AnalyzedAt:      a.now().UTC(),
	}
}

func (a *Analyzer) analyzeFailure(outcome Outcome) *AnalysisResult {
	f := describeFailure(outcome.Status, outcome.Error)
	return &AnalysisResult{
		ExperimentID:    outcome.ExperimentID,
		FitnessScore:    0,
		Metrics:         NeutralMetrics(),
		RiskProfile:     RiskProfileUnknown,
		Insights:        f.insights,
		Warnings:        []string{},
		Recommendations: f.recommendations,
		AnalyzedAt:      a.now().UTC(),
	}
}

// FromExperiment builds an outcome from a persisted experiment.
func FromExperiment(exp *models.Experiment) Outcome {
	outcome := Outcome{
		ExperimentID: exp.ID,
		Status:       exp.Status,
		Error:        exp.ErrorInfo,
	}
	if exp.Results != nil {
		outcome.TrainingResults = exp.Results.TrainingResults
		outcome.BacktestResults = exp.Results.BacktestResults
	}
	return outcome
}
