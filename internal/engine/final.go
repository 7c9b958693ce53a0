package engine

import (
	"context"
	"fmt"

	"change-risk/backend/pkg/models"
)

// FinalAggregator closes the assessment. It does not re-derive risk; the
// recommended action is a pure function of the verdict it receives.
type FinalAggregator struct{}

func (FinalAggregator) Name() string { return StepFinal.String() }

func (FinalAggregator) Evaluate(_ context.Context, in StageInput) (StageResult, error) {
	level := in.State.RiskLevel
	action := models.RecommendedAction(level)

	return StageResult{
		RiskLevel: level,
		RiskFactors: []string{
			"Final risk assessment complete",
			"All validation steps reviewed",
			"Comprehensive analysis performed",
		},
		Recommendations: []string{
			"Execute implementation plan according to schedule",
			"Monitor all identified risk factors",
			"Keep stakeholders informed of progress",
			"Document any deviations from plan",
			"Prepare post-implementation report",
			"Recommended action: " + action,
		},
		RecommendedAction: action,
		Summary: fmt.Sprintf(
			"Based on the analysis of all previous steps, this change has been assigned a %s risk level. %s.",
			level, action,
		),
	}, nil
}
