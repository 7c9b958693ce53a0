package engine

import (
	"context"
	"fmt"

	"change-risk/backend/pkg/models"
)

// TestingValidator checks whether pre-implementation testing was feasible
// and, when it was, what the test evidence shows.
type TestingValidator struct {
	Evidence TestEvidenceSource
}

func (TestingValidator) Name() string { return StepTesting.String() }

func (v TestingValidator) Evaluate(ctx context.Context, in StageInput) (StageResult, error) {
	req := in.Request

	var res StageResult
	if req.ChangeType == models.ChangeTypeEmergency {
		res = emergencyTesting(req.HasBackoutPlan)
	} else {
		ev, err := v.Evidence.TestEvidence(ctx, req)
		if err != nil {
			return StageResult{}, fmt.Errorf("fetch test evidence: %w", err)
		}
		res = evidenceTesting(ev)
	}

	res.Recommendations = append(res.Recommendations,
		"Document all test results and outcomes",
		"Update test cases based on findings",
	)
	return res, nil
}

// emergencyTesting covers changes that cannot be tested before rollout.
func emergencyTesting(hasBackoutPlan bool) StageResult {
	if hasBackoutPlan {
		return StageResult{
			RiskLevel: models.RiskHigh,
			RiskFactors: []string{
				"Testing not feasible due to emergency nature",
				"Backout plan in place as mitigation",
			},
			Recommendations: []string{
				"Ensure backout plan is readily available",
				"Schedule additional support staff during implementation",
				"Prepare for immediate rollback if needed",
			},
		}
	}
	return StageResult{
		RiskLevel: models.RiskHigh,
		RiskFactors: []string{
			"Testing not feasible due to emergency nature",
			"No comprehensive backout plan identified",
		},
		Recommendations: []string{
			"URGENT: Develop backout plan before proceeding",
			"Consider alternative implementation approaches",
			"Required: Additional approval for no-test implementation",
		},
	}
}

func evidenceTesting(ev TestEvidence) StageResult {
	switch {
	case !ev.Available():
		return StageResult{
			RiskLevel: models.RiskHigh,
			RiskFactors: []string{
				"No test completion link available",
				"Unable to verify test execution",
				"Testing documentation incomplete",
			},
			Recommendations: []string{
				"URGENT: Provide test completion documentation",
				"Review testing process compliance",
				"Required: Additional approval for incomplete testing documentation",
			},
		}
	case ev.Passed:
		return StageResult{
			RiskLevel: models.RiskLow,
			RiskFactors: []string{
				"Pre-production testing completed successfully",
				"All test cases passed",
				"No significant issues identified",
			},
			Recommendations: []string{
				"Proceed with implementation as planned",
				"Monitor system performance post-deployment",
				"Keep test results for future reference",
			},
			TestCompletionLink: ev.Link,
		}
	default:
		return StageResult{
			RiskLevel: models.RiskHigh,
			RiskFactors: []string{
				"Pre-production testing revealed issues",
				"Critical test cases failed",
				"Performance impact detected",
			},
			Recommendations: []string{
				"Address failed test cases before proceeding",
				"Review and update implementation plan",
				"Consider scheduling additional testing window",
			},
			TestCompletionLink: ev.Link,
		}
	}
}
