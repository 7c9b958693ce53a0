package services

import (
	"context"

	"change-risk/backend/internal/engine"
	"change-risk/backend/pkg/models"
)

// Assessments is the assessment workflow as seen by the transport adapters.
type Assessments interface {
	Submit(ctx context.Context, req models.ChangeRequest, submittedBy string) (*Assessment, error)
	Advance(ctx context.Context, id string) (*Assessment, error)
	AdvanceFrom(ctx context.Context, id string, step int) (*Assessment, error)
	Reset(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Assessment, error)
	History(ctx context.Context, limit int) ([]*models.AssessmentRecord, error)
}

// Logger is the logging surface used by the services.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

var (
	_ Assessments               = (*AssessmentService)(nil)
	_ engine.TestEvidenceSource = (*HTTPEvidenceClient)(nil)
)
