package repository

import (
	"context"
	"errors"
	"time"

	"change-risk/backend/pkg/models"
)

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// HistoricalChangeLog is the read-only log of past changes.
type HistoricalChangeLog interface {
	// QuerySimilarChanges returns past changes with the same business
	// application group and change type.
	QuerySimilarChanges(ctx context.Context, group string, changeType models.ChangeType) ([]models.HistoricalChange, error)
}

// ScheduledChangeCalendar is the read-only calendar of planned changes.
type ScheduledChangeCalendar interface {
	// QueryOverlappingChanges returns scheduled changes intersecting [start, end).
	QueryOverlappingChanges(ctx context.Context, start, end time.Time) ([]models.ScheduledChange, error)
}

// MaintenanceWindowRegistry is the read-only registry of maintenance windows.
type MaintenanceWindowRegistry interface {
	QueryMaintenanceWindows(ctx context.Context) ([]models.MaintenanceWindow, error)
}

// AssessmentArchive stores completed assessments.
type AssessmentArchive interface {
	SaveAssessment(ctx context.Context, record *models.AssessmentRecord) error
	GetAssessment(ctx context.Context, id string) (*models.AssessmentRecord, error)
	ListAssessments(ctx context.Context, limit int) ([]*models.AssessmentRecord, error)
}
