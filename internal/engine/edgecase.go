package engine

import (
	"context"

	"change-risk/backend/pkg/models"
)

// EdgeCaseHandler branches on the approval pathway. A manual approval
// bypasses standard validation and is reported as high risk; the standard
// pathway keeps the verdict it was handed.
type EdgeCaseHandler struct{}

func (EdgeCaseHandler) Name() string { return StepEdgeCase.String() }

func (EdgeCaseHandler) Evaluate(_ context.Context, in StageInput) (StageResult, error) {
	if in.Request.Approval() == models.ApprovalManual {
		return StageResult{
			RiskLevel: models.RiskHigh,
			RiskFactors: []string{
				"Manual approval process requires additional documentation",
				"Emergency change validation bypassed",
				"Increased monitoring required",
			},
			Recommendations: []string{
				"Document manual approval justification",
				"Implement enhanced monitoring",
				"Prepare immediate response team",
				"Set up additional monitoring checkpoints",
				"Schedule post-implementation review",
			},
		}, nil
	}

	return StageResult{
		RiskLevel: in.State.RiskLevel,
		RiskFactors: []string{
			"Standard validation process completed",
			"All required approvals obtained",
			"Normal monitoring sufficient",
		},
		Recommendations: []string{
			"Proceed with standard implementation",
			"Follow normal monitoring procedures",
			"Update documentation as required",
			"Schedule regular checkpoints",
		},
	}, nil
}
