package repository

import (
	"context"
	"sort"
	"sync"

	"change-risk/backend/pkg/models"
)

// MemoryArchive is an in-process AssessmentArchive used when no database is
// configured. Records are lost on restart.
type MemoryArchive struct {
	mu      sync.RWMutex
	records map[string]*models.AssessmentRecord
}

var _ AssessmentArchive = (*MemoryArchive)(nil)

// NewMemoryArchive creates an empty MemoryArchive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{records: make(map[string]*models.AssessmentRecord)}
}

// SaveAssessment stores a copy of record, replacing any record with the same ID.
func (a *MemoryArchive) SaveAssessment(_ context.Context, record *models.AssessmentRecord) error {
	cp := *record
	cp.State = record.State.Clone()
	a.mu.Lock()
	a.records[record.ID] = &cp
	a.mu.Unlock()
	return nil
}

// GetAssessment retrieves a record by ID.
func (a *MemoryArchive) GetAssessment(_ context.Context, id string) (*models.AssessmentRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	cp.State = rec.State.Clone()
	return &cp, nil
}

// ListAssessments returns the most recently completed records first.
func (a *MemoryArchive) ListAssessments(_ context.Context, limit int) ([]*models.AssessmentRecord, error) {
	a.mu.RLock()
	out := make([]*models.AssessmentRecord, 0, len(a.records))
	for _, rec := range a.records {
		cp := *rec
		cp.State = rec.State.Clone()
		out = append(out, &cp)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
