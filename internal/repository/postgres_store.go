package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"change-risk/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the reference data
// providers and the assessment archive.
type PostgresStore struct {
	db *pgxpool.Pool
}

var (
	_ HistoricalChangeLog       = (*PostgresStore)(nil)
	_ ScheduledChangeCalendar   = (*PostgresStore)(nil)
	_ MaintenanceWindowRegistry = (*PostgresStore)(nil)
	_ AssessmentArchive         = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// QuerySimilarChanges returns past changes matching group and change type.
func (s *PostgresStore) QuerySimilarChanges(ctx context.Context, group string, changeType models.ChangeType) ([]models.HistoricalChange, error) {
	const query = `SELECT id, business_application_group, change_type, outcome, incident_resolved
		FROM historical_changes
		WHERE business_application_group = $1 AND change_type = $2
		ORDER BY id`
	rows, err := s.db.Query(ctx, query, group, string(changeType))
	if err != nil {
		return nil, fmt.Errorf("query historical changes: %w", err)
	}
	defer rows.Close()

	var changes []models.HistoricalChange
	for rows.Next() {
		var (
			c        models.HistoricalChange
			typ      string
			outcome  string
			resolved *bool
		)
		if err := rows.Scan(&c.ID, &c.BusinessApplicationGroup, &typ, &outcome, &resolved); err != nil {
			return nil, err
		}
		c.Type = models.ChangeType(typ)
		c.Outcome = models.Outcome(outcome)
		if resolved != nil {
			c.IncidentDetails = &models.IncidentDetails{Resolved: *resolved}
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// QueryOverlappingChanges returns scheduled changes intersecting [start, end).
// Rows are constrained to start_time < end_time, so the half-open test is
// equivalent to models.Overlaps.
func (s *PostgresStore) QueryOverlappingChanges(ctx context.Context, start, end time.Time) ([]models.ScheduledChange, error) {
	const query = `SELECT id, business_application_group, start_time, end_time
		FROM scheduled_changes
		WHERE start_time < $2 AND end_time > $1
		ORDER BY start_time, id`
	rows, err := s.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query scheduled changes: %w", err)
	}
	defer rows.Close()

	var changes []models.ScheduledChange
	for rows.Next() {
		var c models.ScheduledChange
		if err := rows.Scan(&c.ID, &c.BusinessApplicationGroup, &c.Start, &c.End); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// QueryMaintenanceWindows returns every registered window.
func (s *PostgresStore) QueryMaintenanceWindows(ctx context.Context) ([]models.MaintenanceWindow, error) {
	const query = `SELECT id, name, weekdays, start_hour, end_hour FROM maintenance_windows ORDER BY id`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query maintenance windows: %w", err)
	}
	defer rows.Close()

	var windows []models.MaintenanceWindow
	for rows.Next() {
		var (
			w    models.MaintenanceWindow
			days []int32
		)
		if err := rows.Scan(&w.ID, &w.Name, &days, &w.StartHour, &w.EndHour); err != nil {
			return nil, err
		}
		for _, d := range days {
			w.Weekdays = append(w.Weekdays, time.Weekday(d))
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// UpsertHistoricalChange inserts or replaces a historical change.
func (s *PostgresStore) UpsertHistoricalChange(ctx context.Context, c models.HistoricalChange) error {
	const query = `INSERT INTO historical_changes (id, business_application_group, change_type, outcome, incident_resolved)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			business_application_group = EXCLUDED.business_application_group,
			change_type = EXCLUDED.change_type,
			outcome = EXCLUDED.outcome,
			incident_resolved = EXCLUDED.incident_resolved`
	var resolved *bool
	if c.IncidentDetails != nil {
		v := c.IncidentDetails.Resolved
		resolved = &v
	}
	_, err := s.db.Exec(ctx, query, c.ID, c.BusinessApplicationGroup, string(c.Type), string(c.Outcome), resolved)
	return err
}

// UpsertScheduledChange inserts or replaces a scheduled change.
func (s *PostgresStore) UpsertScheduledChange(ctx context.Context, c models.ScheduledChange) error {
	const query = `INSERT INTO scheduled_changes (id, business_application_group, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			business_application_group = EXCLUDED.business_application_group,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time`
	_, err := s.db.Exec(ctx, query, c.ID, c.BusinessApplicationGroup, c.Start, c.End)
	return err
}

// UpsertMaintenanceWindow inserts or replaces a maintenance window.
func (s *PostgresStore) UpsertMaintenanceWindow(ctx context.Context, w models.MaintenanceWindow) error {
	const query = `INSERT INTO maintenance_windows (id, name, weekdays, start_hour, end_hour)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			weekdays = EXCLUDED.weekdays,
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour`
	days := make([]int32, len(w.Weekdays))
	for i, d := range w.Weekdays {
		days[i] = int32(d)
	}
	_, err := s.db.Exec(ctx, query, w.ID, w.Name, days, w.StartHour, w.EndHour)
	return err
}

// SaveAssessment archives a completed assessment.
func (s *PostgresStore) SaveAssessment(ctx context.Context, record *models.AssessmentRecord) error {
	request, err := json.Marshal(record.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	state, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	const query = `INSERT INTO assessments (id, request, state, risk_level, submitted_by, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			request = EXCLUDED.request,
			state = EXCLUDED.state,
			risk_level = EXCLUDED.risk_level,
			submitted_by = EXCLUDED.submitted_by,
			completed_at = EXCLUDED.completed_at`
	_, err = s.db.Exec(ctx, query, record.ID, request, state, string(record.State.RiskLevel), record.SubmittedBy, record.CompletedAt)
	return err
}

// GetAssessment retrieves an archived assessment by ID.
func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (*models.AssessmentRecord, error) {
	const query = `SELECT id, request, state, submitted_by, completed_at FROM assessments WHERE id = $1`
	rec, err := scanAssessment(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListAssessments returns the most recently completed assessments first.
func (s *PostgresStore) ListAssessments(ctx context.Context, limit int) ([]*models.AssessmentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, request, state, submitted_by, completed_at
		FROM assessments ORDER BY completed_at DESC LIMIT $1`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()

	var records []*models.AssessmentRecord
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanAssessment(row pgx.Row) (*models.AssessmentRecord, error) {
	var (
		rec     models.AssessmentRecord
		request []byte
		state   []byte
	)
	if err := row.Scan(&rec.ID, &request, &state, &rec.SubmittedBy, &rec.CompletedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(request, &rec.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := json.Unmarshal(state, &rec.State); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &rec, nil
}
