package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecommendedAction(t *testing.T) {
	assert.Equal(t, "Proceed with deployment", RecommendedAction(RiskLow))
	assert.Equal(t, "Proceed with caution", RecommendedAction(RiskMedium))
	assert.Equal(t, "Delay or revise change", RecommendedAction(RiskHigh))
}

func TestChangeRequestApprovalDefaultsToStandard(t *testing.T) {
	assert.Equal(t, ApprovalStandard, ChangeRequest{}.Approval())
	assert.Equal(t, ApprovalManual, ChangeRequest{ApprovalType: ApprovalManual}.Approval())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, RiskMedium.Valid())
	assert.False(t, RiskLevel("critical").Valid())
	assert.True(t, ChangeTypeNormal.Valid())
	assert.False(t, ChangeType("").Valid())
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority("urgent").Valid())
	assert.True(t, ApprovalManual.Valid())
	assert.False(t, ApprovalType("auto").Valid())
}

func TestWorkflowStateCloneIsDeep(t *testing.T) {
	orig := WorkflowState{
		CurrentStep:        2,
		RiskLevel:          RiskMedium,
		RiskFactors:        []string{"a"},
		Recommendations:    []string{"b"},
		Stages:             []StageRecord{{Step: 1, RiskFactors: []string{"a"}, Recommendations: []string{"b"}}},
		ConflictingChanges: []ScheduledChange{{ID: "CHG1"}},
	}
	cp := orig.Clone()
	assert.Equal(t, orig, cp)

	cp.RiskFactors[0] = "x"
	cp.Recommendations = append(cp.Recommendations, "y")
	cp.Stages[0].RiskFactors[0] = "x"
	cp.ConflictingChanges[0].ID = "CHG2"

	assert.Equal(t, "a", orig.RiskFactors[0])
	assert.Len(t, orig.Recommendations, 1)
	assert.Equal(t, "a", orig.Stages[0].RiskFactors[0])
	assert.Equal(t, "CHG1", orig.ConflictingChanges[0].ID)
}
