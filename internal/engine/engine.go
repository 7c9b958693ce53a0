// Package engine implements the staged change-risk evaluation pipeline.
//
// A change request is submitted once and then advanced through a fixed
// sequence of stages. Each stage appends risk factors and recommendations to
// the running WorkflowState and installs its own risk verdict, replacing the
// previous one.
package engine

import (
	"context"
	"time"

	"change-risk/backend/internal/repository"
	"change-risk/backend/pkg/models"
)

// Step identifies a workflow stage.
type Step int

const (
	StepNone Step = iota
	StepIntake
	StepHistorical
	StepTesting
	StepConflict
	StepEdgeCase
	StepFinal
)

// FinalStep is the terminal step number.
const FinalStep = int(StepFinal)

func (s Step) String() string {
	switch s {
	case StepIntake:
		return "intake"
	case StepHistorical:
		return "historical-analysis"
	case StepTesting:
		return "testing-validation"
	case StepConflict:
		return "conflict-detection"
	case StepEdgeCase:
		return "edge-case-handling"
	case StepFinal:
		return "final-recommendation"
	default:
		return "none"
	}
}

// Stage is one evaluator in the pipeline.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, in StageInput) (StageResult, error)
}

// StageInput is what a stage sees: the immutable request and a private copy
// of the state committed so far.
type StageInput struct {
	Request models.ChangeRequest
	State   models.WorkflowState
}

// StageResult is a stage's contribution to the workflow state.
type StageResult struct {
	RiskLevel          models.RiskLevel
	RiskFactors        []string
	Recommendations    []string
	ConflictingChanges []models.ScheduledChange
	TestCompletionLink string
	RecommendedAction  string
	Summary            string
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}

// Option configures an Engine.
type Option func(*options)

type options struct {
	location *time.Location
	logger   Logger
}

// WithLocation sets the time zone used for peak-hour and maintenance-window
// checks. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Engine holds the stage dispatch table. It keeps no per-assessment state
// and is safe for concurrent use by many sessions.
type Engine struct {
	stages [StepFinal + 1]Stage
	logger Logger
}

// New builds an Engine over read-only reference data providers.
func New(
	history repository.HistoricalChangeLog,
	calendar repository.ScheduledChangeCalendar,
	windows repository.MaintenanceWindowRegistry,
	evidence TestEvidenceSource,
	opts ...Option,
) *Engine {
	o := options{location: time.Local, logger: nopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Engine{
		stages: [StepFinal + 1]Stage{
			StepIntake:     IntakeEvaluator{Location: o.location},
			StepHistorical: HistoricalRiskAnalyzer{Log: history},
			StepTesting:    TestingValidator{Evidence: evidence},
			StepConflict:   ConflictDetector{Calendar: calendar, Windows: windows, Location: o.location},
			StepEdgeCase:   EdgeCaseHandler{},
			StepFinal:      FinalAggregator{},
		},
		logger: o.logger,
	}
}

// StageFor returns the stage registered for step.
func (e *Engine) StageFor(step Step) (Stage, bool) {
	if step < StepIntake || step > StepFinal {
		return nil, false
	}
	s := e.stages[step]
	return s, s != nil
}

// Start validates req and runs the intake stage, producing the step 1 state.
func (e *Engine) Start(ctx context.Context, req models.ChangeRequest) (models.WorkflowState, error) {
	if err := Validate(req); err != nil {
		return models.WorkflowState{}, err
	}
	return e.run(ctx, StepIntake, req, models.WorkflowState{})
}

// Step advances state by exactly one stage and returns the new state. The
// passed state is never modified. On failure the returned state is the zero
// value and the caller's state remains the last committed one.
func (e *Engine) Step(ctx context.Context, req models.ChangeRequest, state models.WorkflowState) (models.WorkflowState, error) {
	if IsTerminal(state) {
		return models.WorkflowState{}, &TerminalStateError{Step: state.CurrentStep}
	}
	if state.CurrentStep < int(StepIntake) {
		return models.WorkflowState{}, ErrNoSubmission
	}
	return e.run(ctx, Step(state.CurrentStep+1), req, state)
}

func (e *Engine) run(ctx context.Context, step Step, req models.ChangeRequest, state models.WorkflowState) (models.WorkflowState, error) {
	stage, ok := e.StageFor(step)
	if !ok {
		return models.WorkflowState{}, &EvaluatorError{Step: int(step), Stage: step.String(), Err: errNoStage}
	}

	res, err := stage.Evaluate(ctx, StageInput{Request: req, State: state.Clone()})
	if err != nil {
		return models.WorkflowState{}, &EvaluatorError{Step: int(step), Stage: stage.Name(), Err: err}
	}
	if !res.RiskLevel.Valid() {
		return models.WorkflowState{}, &EvaluatorError{Step: int(step), Stage: stage.Name(), Err: errInvalidVerdict}
	}

	next := merge(state, step, stage.Name(), res)
	e.logger.Debug("stage committed",
		"step", next.CurrentStep,
		"stage", stage.Name(),
		"risk_level", next.RiskLevel,
		"new_factors", len(res.RiskFactors),
	)
	return next, nil
}

// merge appends a stage result onto a copy of state.
func merge(state models.WorkflowState, step Step, name string, res StageResult) models.WorkflowState {
	out := state.Clone()
	out.CurrentStep = int(step)
	out.RiskLevel = res.RiskLevel
	out.RiskFactors = append(out.RiskFactors, res.RiskFactors...)
	out.Recommendations = append(out.Recommendations, res.Recommendations...)
	out.Stages = append(out.Stages, models.StageRecord{
		Step:            int(step),
		Name:            name,
		RiskLevel:       res.RiskLevel,
		RiskFactors:     append([]string(nil), res.RiskFactors...),
		Recommendations: append([]string(nil), res.Recommendations...),
	})
	if res.ConflictingChanges != nil {
		out.ConflictingChanges = append([]models.ScheduledChange(nil), res.ConflictingChanges...)
	}
	if res.TestCompletionLink != "" {
		out.TestCompletionLink = res.TestCompletionLink
	}
	if res.RecommendedAction != "" {
		out.RecommendedAction = res.RecommendedAction
	}
	if res.Summary != "" {
		out.Summary = res.Summary
	}
	return out
}

// IsTerminal reports whether no further Advance is permitted.
func IsTerminal(state models.WorkflowState) bool {
	return state.CurrentStep >= FinalStep
}
