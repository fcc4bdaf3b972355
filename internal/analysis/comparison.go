package analysis

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

const (
	// successFitness is the score above which an experiment counts as a success.
	successFitness     = 1.0
	topPerformersCount = 3
	leadingInsights    = 2
)

// RankedResult is one entry in a comparison ranking
type RankedResult struct {
	Rank            int         `json:"rank"`
	ExperimentID    uuid.UUID   `json:"experiment_id"`
	FitnessScore    float64     `json:"fitness_score"`
	RiskProfile     RiskProfile `json:"risk_profile"`
	LeadingInsights []string    `json:"leading_insights"`
}

// ComparisonReport summarizes a set of analysis results
type ComparisonReport struct {
	Count            int                 `json:"count"`
	Ranking          []RankedResult      `json:"ranking"`
	BestFitness      float64             `json:"best_fitness"`
	WorstFitness     float64             `json:"worst_fitness"`
	AverageFitness   float64             `json:"average_fitness"`
	FitnessStdDev    float64             `json:"fitness_stddev"`
	SuccessRate      float64             `json:"success_rate"`
	RiskDistribution map[RiskProfile]int `json:"risk_distribution"`
	TopPerformers    []RankedResult      `json:"top_performers"`
}

// CompareResults ranks results by fitness, highest first. Ties keep input order.
func CompareResults(results []*AnalysisResult) ComparisonReport {
	ordered := make([]*AnalysisResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, r)
		}
	}

	report := ComparisonReport{
		Count:            len(ordered),
		Ranking:          make([]RankedResult, 0, len(ordered)),
		RiskDistribution: make(map[RiskProfile]int),
		TopPerformers:    []RankedResult{},
	}
	if len(ordered) == 0 {
		return report
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FitnessScore > ordered[j].FitnessScore
	})

	scores := make([]float64, len(ordered))
	successes := 0
	for i, r := range ordered {
		scores[i] = r.FitnessScore
		if r.FitnessScore > successFitness {
			successes++
		}
		report.RiskDistribution[r.RiskProfile]++

		n := leadingInsights
		if len(r.Insights) < n {
			n = len(r.Insights)
		}
		report.Ranking = append(report.Ranking, RankedResult{
			Rank:            i + 1,
			ExperimentID:    r.ExperimentID,
			FitnessScore:    r.FitnessScore,
			RiskProfile:     r.RiskProfile,
			LeadingInsights: append([]string(nil), r.Insights[:n]...),
		})
	}

	mean, variance := stat.PopMeanVariance(scores, nil)
	report.BestFitness = scores[0]
	report.WorstFitness = scores[len(scores)-1]
	report.AverageFitness = mean
	report.FitnessStdDev = math.Sqrt(variance)
	report.SuccessRate = float64(successes) / float64(len(scores))

	top := topPerformersCount
	if len(report.Ranking) < top {
		top = len(report.Ranking)
	}
	report.TopPerformers = append([]RankedResult(nil), report.Ranking[:top]...)
	return report
}
