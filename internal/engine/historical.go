package engine

import (
	"context"
	"fmt"

	"change-risk/backend/internal/repository"
	"change-risk/backend/pkg/models"
)

// HistoricalRiskAnalyzer judges a request by the outcomes of similar past
// changes. Its verdict replaces the incoming one.
type HistoricalRiskAnalyzer struct {
	Log repository.HistoricalChangeLog
}

func (HistoricalRiskAnalyzer) Name() string { return StepHistorical.String() }

var historicalRecommendations = []string{
	"Review similar past changes",
	"Consider successful patterns from previous changes",
	"Prepare for known issues based on historical data",
	"Document lessons learned from previous incidents",
}

func (a HistoricalRiskAnalyzer) Evaluate(ctx context.Context, in StageInput) (StageResult, error) {
	req := in.Request
	similar, err := a.Log.QuerySimilarChanges(ctx, req.BusinessApplicationGroup, req.ChangeType)
	if err != nil {
		return StageResult{}, fmt.Errorf("query similar changes: %w", err)
	}

	res := StageResult{
		Recommendations: append([]string(nil), historicalRecommendations...),
	}

	if len(similar) == 0 {
		res.RiskLevel = in.State.RiskLevel
		res.RiskFactors = []string{"No similar changes found in history - proceeding with caution"}
		return res, nil
	}

	var incidents []models.HistoricalChange
	resolved := 0
	for _, c := range similar {
		if c.Outcome != models.OutcomeIncident {
			continue
		}
		incidents = append(incidents, c)
		if c.IncidentDetails != nil && c.IncidentDetails.Resolved {
			resolved++
		}
	}

	switch {
	case len(incidents) == 0:
		res.RiskLevel = models.RiskLow
		res.RiskFactors = []string{fmt.Sprintf("%d similar changes completed successfully", len(similar))}
	case resolved == len(incidents):
		res.RiskLevel = models.RiskMedium
		res.RiskFactors = []string{fmt.Sprintf(
			"Similar changes had incidents in the past (Change ID: %s), but all were successfully resolved",
			incidents[0].ID,
		)}
	default:
		res.RiskLevel = models.RiskMedium
		res.RiskFactors = []string{fmt.Sprintf(
			"Similar changes resulted in unresolved incidents (Change ID: %s)",
			incidents[0].ID,
		)}
	}
	return res, nil
}
