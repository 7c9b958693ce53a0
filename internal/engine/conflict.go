package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"change-risk/backend/internal/repository"
	"change-risk/backend/pkg/models"
)

// ConflictDetector checks the request window against the change calendar
// and the maintenance window registry.
//
//	overlapping changes | inside a window | verdict
//	none                | yes             | low
//	one or more         | either          | high
//	none                | no              | medium
type ConflictDetector struct {
	Calendar repository.ScheduledChangeCalendar
	Windows  repository.MaintenanceWindowRegistry
	Location *time.Location
}

func (ConflictDetector) Name() string { return StepConflict.String() }

var conflictFollowUps = []string{
	"Maintain communication with affected teams",
	"Update change calendar accordingly",
}

func (d ConflictDetector) Evaluate(ctx context.Context, in StageInput) (StageResult, error) {
	req := in.Request

	candidates, err := d.Calendar.QueryOverlappingChanges(ctx, req.PlannedStart, req.PlannedEnd)
	if err != nil {
		return StageResult{}, fmt.Errorf("query scheduled changes: %w", err)
	}
	windows, err := d.Windows.QueryMaintenanceWindows(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("query maintenance windows: %w", err)
	}

	// Calendars may over-approximate; the overlap test here is authoritative.
	conflicts := make([]models.ScheduledChange, 0, len(candidates))
	for _, c := range candidates {
		if models.Overlaps(req.PlannedStart, req.PlannedEnd, c.Start, c.End) {
			conflicts = append(conflicts, c)
		}
	}

	inWindow := false
	for _, w := range windows {
		if WithinMaintenanceWindow(w, req.PlannedStart, req.PlannedEnd, d.Location) {
			inWindow = true
			break
		}
	}

	var res StageResult
	switch {
	case len(conflicts) > 0:
		details := make([]string, len(conflicts))
		for i, c := range conflicts {
			details[i] = fmt.Sprintf("Change %s (%s)", c.ID, c.BusinessApplicationGroup)
		}
		res = StageResult{
			RiskLevel: models.RiskHigh,
			RiskFactors: []string{
				"Scheduling conflict detected with: " + strings.Join(details, ", "),
				"Overlapping change windows may impact service",
				"Resource contention possible",
			},
			Recommendations: []string{
				"Reschedule change to avoid conflicts",
				"Coordinate with other change owners",
				"Consider breaking down the change into smaller windows",
			},
			ConflictingChanges: conflicts,
		}
	case inWindow:
		res = StageResult{
			RiskLevel: models.RiskLow,
			RiskFactors: []string{
				"No scheduling conflicts detected",
				"Change scheduled within approved maintenance window",
				"No resource conflicts identified",
			},
			Recommendations: []string{
				"Proceed with scheduled timeframe",
				"Ensure all stakeholders are notified",
				"Follow standard change procedures",
			},
		}
	default:
		res = StageResult{
			RiskLevel: models.RiskMedium,
			RiskFactors: []string{
				"Change scheduled outside maintenance window",
				"Additional approval may be required",
				"Business impact assessment needed",
			},
			Recommendations: []string{
				"Consider rescheduling within maintenance window",
				"Obtain additional approvals for out-of-window execution",
				"Prepare detailed business justification",
			},
		}
	}

	res.Recommendations = append(res.Recommendations, conflictFollowUps...)
	return res, nil
}

// WithinMaintenanceWindow reports whether [start, end) falls inside w.
// The weekday comes from start. Comparison is at whole-hour granularity:
// minutes are ignored, so a change starting at 22:30 is inside a window
// opening at 22:00 and one ending at 04:45 is inside a window closing at 04:00.
func WithinMaintenanceWindow(w models.MaintenanceWindow, start, end time.Time, loc *time.Location) bool {
	s := localTime(start, loc)
	e := localTime(end, loc)
	return w.AppliesOn(s.Weekday()) &&
		s.Hour() >= w.StartHour &&
		e.Hour() <= w.EndHour
}
