package engine

import (
	"errors"
	"fmt"
	"strings"

	"change-risk/backend/pkg/models"
)

var (
	// ErrNoSubmission is returned when advancing a session with no request.
	ErrNoSubmission = errors.New("engine: no change request submitted")
	// ErrStaleState is returned when the state passed to Advance is not the
	// one most recently committed by the session.
	ErrStaleState = errors.New("engine: state does not match the committed step")
	// ErrSessionReset is returned when a session is reset while a stage is
	// being evaluated. The stage output is discarded.
	ErrSessionReset = errors.New("engine: session was reset during evaluation")

	errNoStage        = errors.New("no stage registered")
	errInvalidVerdict = errors.New("stage produced an invalid risk level")
)

// ValidationError reports a malformed or inconsistent change request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid change request: %s %s", e.Field, e.Reason)
}

// TerminalStateError is returned when advancing past the final step.
type TerminalStateError struct {
	Step int
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("workflow is terminal at step %d", e.Step)
}

// EvaluatorError reports a stage that failed to complete.
type EvaluatorError struct {
	Step  int
	Stage string
	Err   error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("stage %d (%s) failed: %v", e.Step, e.Stage, e.Err)
}

func (e *EvaluatorError) Unwrap() error { return e.Err }

// Validate checks the fields every change request must carry.
func Validate(req models.ChangeRequest) error {
	required := []struct {
		field string
		value string
	}{
		{"title", req.Title},
		{"description", req.Description},
		{"justification", req.Justification},
		{"business_application_group", req.BusinessApplicationGroup},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}

	switch {
	case req.PlannedStart.IsZero():
		return &ValidationError{Field: "planned_start", Reason: "is required"}
	case req.PlannedEnd.IsZero():
		return &ValidationError{Field: "planned_end", Reason: "is required"}
	case !req.PlannedStart.Before(req.PlannedEnd):
		return &ValidationError{Field: "planned_end", Reason: "must be after planned_start"}
	case !req.DeclaredRisk.Valid():
		return &ValidationError{Field: "declared_risk", Reason: fmt.Sprintf("has unknown value %q", req.DeclaredRisk)}
	case !req.ChangeType.Valid():
		return &ValidationError{Field: "change_type", Reason: fmt.Sprintf("has unknown value %q", req.ChangeType)}
	case !req.Priority.Valid():
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("has unknown value %q", req.Priority)}
	case req.ApprovalType != "" && !req.ApprovalType.Valid():
		return &ValidationError{Field: "approval_type", Reason: fmt.Sprintf("has unknown value %q", req.ApprovalType)}
	}
	return nil
}
