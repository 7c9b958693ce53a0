package models

import (
	"time"
)

// StageRecord captures what a single stage contributed to an assessment.
type StageRecord struct {
	Step            int       `json:"step"`
	Name            string    `json:"name"`
	RiskLevel       RiskLevel `json:"risk_level"`
	RiskFactors     []string  `json:"risk_factors"`
	Recommendations []string  `json:"recommendations"`
}

// WorkflowState is the running verdict of one assessment.
// RiskFactors, Recommendations and Stages are append-only across steps.
type WorkflowState struct {
	CurrentStep     int           `json:"current_step"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	RiskFactors     []string      `json:"risk_factors"`
	Recommendations []string      `json:"recommendations"`
	Stages          []StageRecord `json:"stages"`

	ConflictingChanges []ScheduledChange `json:"conflicting_changes,omitempty"`
	TestCompletionLink string            `json:"test_completion_link,omitempty"`
	RecommendedAction  string            `json:"recommended_action,omitempty"`
	Summary            string            `json:"summary,omitempty"`
}

// Clone returns a deep copy of s.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.RiskFactors = append([]string(nil), s.RiskFactors...)
	out.Recommendations = append([]string(nil), s.Recommendations...)
	out.ConflictingChanges = append([]ScheduledChange(nil), s.ConflictingChanges...)
	out.Stages = make([]StageRecord, len(s.Stages))
	for i, st := range s.Stages {
		st.RiskFactors = append([]string(nil), st.RiskFactors...)
		st.Recommendations = append([]string(nil), st.Recommendations...)
		out.Stages[i] = st
	}
	return out
}

// AssessmentRecord is an archived, completed assessment.
type AssessmentRecord struct {
	ID          string        `json:"id"`
	Request     ChangeRequest `json:"request"`
	State       WorkflowState `json:"state"`
	SubmittedBy string        `json:"submitted_by"`
	CompletedAt time.Time     `json:"completed_at"`
}
