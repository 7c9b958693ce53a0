package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"change-risk/backend/pkg/models"
)

// Peak hours run from 06:00 through the 23:00 hour, local time.
const (
	peakStartHour = 6
	peakEndHour   = 23
)

// IntakeEvaluator derives the initial verdict from the request alone.
type IntakeEvaluator struct {
	Location *time.Location
}

func (IntakeEvaluator) Name() string { return StepIntake.String() }

// Evaluate starts from the declared risk; an emergency change is always high.
func (ev IntakeEvaluator) Evaluate(_ context.Context, in StageInput) (StageResult, error) {
	req := in.Request
	res := StageResult{RiskLevel: req.DeclaredRisk}

	if req.ChangeType == models.ChangeTypeEmergency {
		res.RiskLevel = models.RiskHigh
		res.RiskFactors = append(res.RiskFactors, "Emergency change type automatically elevates risk")
		res.Recommendations = append(res.Recommendations, "Prepare emergency response team")
		if req.Approval() == models.ApprovalManual {
			res.RiskFactors = append(res.RiskFactors, "Manual approval pathway selected")
			res.Recommendations = append(res.Recommendations, "Document manual approval justification")
		}
	}

	if IsPeakHour(localTime(req.PlannedStart, ev.Location).Hour()) {
		res.RiskFactors = append(res.RiskFactors, "Change scheduled during peak hours (6:00 AM - 12:00 AM)")
		res.Recommendations = append(res.Recommendations, "Consider rescheduling during off-peak hours")
	}

	if req.DeclaredRisk == models.RiskHigh {
		res.RiskFactors = append(res.RiskFactors, "High risk declared by requester")
		res.Recommendations = append(res.Recommendations, "Implement enhanced monitoring protocols")
	}

	if len(res.RiskFactors) == 0 {
		res.RiskFactors = append(res.RiskFactors, fmt.Sprintf(
			"%s risk based on %s change type and declared risk level",
			capitalize(string(res.RiskLevel)), req.ChangeType,
		))
	}

	res.Recommendations = append(res.Recommendations,
		"Prepare detailed rollback plan",
		"Review change implementation steps",
	)
	return res, nil
}

// IsPeakHour reports whether a local clock hour falls inside peak hours.
func IsPeakHour(hour int) bool {
	return hour >= peakStartHour && hour <= peakEndHour
}

func localTime(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t.Local()
	}
	return t.In(loc)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
