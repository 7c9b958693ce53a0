package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"change-risk/backend/pkg/models"
)

// Snapshot is an immutable, in-memory copy of the reference data. It is
// loaded once and shared by every assessment session.
type Snapshot struct {
	history   []models.HistoricalChange
	scheduled []models.ScheduledChange
	windows   []models.MaintenanceWindow
}

// snapshotFile is the on-disk layout of a reference data file.
type snapshotFile struct {
	HistoricalChanges  []models.HistoricalChange  `yaml:"historical_changes"`
	ScheduledChanges   []models.ScheduledChange   `yaml:"scheduled_changes"`
	MaintenanceWindows []models.MaintenanceWindow `yaml:"maintenance_windows"`
}

var (
	_ HistoricalChangeLog       = (*Snapshot)(nil)
	_ ScheduledChangeCalendar   = (*Snapshot)(nil)
	_ MaintenanceWindowRegistry = (*Snapshot)(nil)
)

// NewSnapshot copies the given data into a new Snapshot.
func NewSnapshot(history []models.HistoricalChange, scheduled []models.ScheduledChange, windows []models.MaintenanceWindow) *Snapshot {
	return &Snapshot{
		history:   append([]models.HistoricalChange(nil), history...),
		scheduled: append([]models.ScheduledChange(nil), scheduled...),
		windows:   cloneWindows(windows),
	}
}

// LoadSnapshot reads a YAML reference data file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes YAML reference data and validates it.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode reference data: %w", err)
	}
	for _, c := range f.ScheduledChanges {
		if !c.Start.Before(c.End) {
			return nil, fmt.Errorf("scheduled change %s: start must be before end", c.ID)
		}
	}
	for _, w := range f.MaintenanceWindows {
		if w.StartHour < 0 || w.EndHour > 24 || w.StartHour > w.EndHour {
			return nil, fmt.Errorf("maintenance window %s: invalid hours %d-%d", w.ID, w.StartHour, w.EndHour)
		}
	}
	return NewSnapshot(f.HistoricalChanges, f.ScheduledChanges, f.MaintenanceWindows), nil
}

// QuerySimilarChanges returns past changes matching group and change type.
func (s *Snapshot) QuerySimilarChanges(_ context.Context, group string, changeType models.ChangeType) ([]models.HistoricalChange, error) {
	var out []models.HistoricalChange
	for _, c := range s.history {
		if c.BusinessApplicationGroup == group && c.Type == changeType {
			if c.IncidentDetails != nil {
				d := *c.IncidentDetails
				c.IncidentDetails = &d
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// QueryOverlappingChanges returns scheduled changes intersecting [start, end).
func (s *Snapshot) QueryOverlappingChanges(_ context.Context, start, end time.Time) ([]models.ScheduledChange, error) {
	var out []models.ScheduledChange
	for _, c := range s.scheduled {
		if models.Overlaps(start, end, c.Start, c.End) {
			out = append(out, c)
		}
	}
	return out, nil
}

// QueryMaintenanceWindows returns every registered window.
func (s *Snapshot) QueryMaintenanceWindows(_ context.Context) ([]models.MaintenanceWindow, error) {
	return cloneWindows(s.windows), nil
}

// HistoricalChanges returns a copy of the full historical log.
func (s *Snapshot) HistoricalChanges() []models.HistoricalChange {
	return append([]models.HistoricalChange(nil), s.history...)
}

// ScheduledChanges returns a copy of the full change calendar.
func (s *Snapshot) ScheduledChanges() []models.ScheduledChange {
	return append([]models.ScheduledChange(nil), s.scheduled...)
}

func cloneWindows(in []models.MaintenanceWindow) []models.MaintenanceWindow {
	out := make([]models.MaintenanceWindow, len(in))
	for i, w := range in {
		w.Weekdays = append([]time.Weekday(nil), w.Weekdays...)
		out[i] = w
	}
	return out
}
