// Package models defines the domain models for the change risk service
package models

import (
	"time"
)

// RiskLevel represents the overall risk verdict of an assessment
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ChangeType represents the change management category of a request
type ChangeType string

const (
	ChangeTypeStandard  ChangeType = "standard"
	ChangeTypeEmergency ChangeType = "emergency"
	ChangeTypeNormal    ChangeType = "normal"
)

// Valid reports whether c is one of the known change types.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeTypeStandard, ChangeTypeEmergency, ChangeTypeNormal:
		return true
	}
	return false
}

// Priority represents the business priority of a request
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ApprovalType represents the approval pathway chosen for a request
type ApprovalType string

const (
	ApprovalStandard ApprovalType = "standard"
	ApprovalManual   ApprovalType = "manual"
)

// Valid reports whether a is one of the known approval types.
func (a ApprovalType) Valid() bool {
	switch a {
	case ApprovalStandard, ApprovalManual:
		return true
	}
	return false
}

// ChangeRequest is a proposed infrastructure change submitted for assessment.
// It is never mutated once submitted.
type ChangeRequest struct {
	ID                       string       `json:"id,omitempty" yaml:"id"`
	Title                    string       `json:"title" yaml:"title"`
	Description              string       `json:"description" yaml:"description"`
	Justification            string       `json:"justification" yaml:"justification"`
	PlannedStart             time.Time    `json:"planned_start" yaml:"planned_start"`
	PlannedEnd               time.Time    `json:"planned_end" yaml:"planned_end"`
	BusinessApplicationGroup string       `json:"business_application_group" yaml:"business_application_group"`
	DeclaredRisk             RiskLevel    `json:"declared_risk" yaml:"declared_risk"`
	ChangeType               ChangeType   `json:"change_type" yaml:"change_type"`
	Priority                 Priority     `json:"priority" yaml:"priority"`
	ApprovalType             ApprovalType `json:"approval_type,omitempty" yaml:"approval_type"`

	// HasBackoutPlan is supplied by the caller's change record. A missing
	// value is treated as "no plan".
	HasBackoutPlan bool `json:"has_backout_plan,omitempty" yaml:"has_backout_plan"`
}

// Approval returns the effective approval pathway; unset means standard.
func (r ChangeRequest) Approval() ApprovalType {
	if r.ApprovalType == "" {
		return ApprovalStandard
	}
	return r.ApprovalType
}

// RecommendedAction maps a verdict to the action shown to approvers.
func RecommendedAction(level RiskLevel) string {
	switch level {
	case RiskLow:
		return "Proceed with deployment"
	case RiskMedium:
		return "Proceed with caution"
	default:
		return "Delay or revise change"
	}
}
