package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"change-risk/backend/internal/engine"
	"change-risk/backend/internal/repository"
	"change-risk/backend/pkg/models"
)

const instrumentationName = "change-risk/backend/internal/services"

// ErrSessionNotFound is returned for an unknown assessment id.
var ErrSessionNotFound = errors.New("assessment not found")

// Assessment is a snapshot of one assessment session.
type Assessment struct {
	ID          string               `json:"id"`
	Request     models.ChangeRequest `json:"request"`
	State       models.WorkflowState `json:"state"`
	SubmittedBy string               `json:"submitted_by,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	Completed   bool                 `json:"completed"`
}

type entry struct {
	session     *engine.Session
	submittedBy string
	createdAt   time.Time
	touched     time.Time
}

// DefaultIdleTimeout is how long an unfinished assessment may go without
// being advanced before it is discarded.
const DefaultIdleTimeout = 24 * time.Hour

// Option configures an AssessmentService.
type Option func(*AssessmentService)

// WithIdleTimeout sets how long an unfinished assessment is kept without
// activity. Non-positive values keep the default.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *AssessmentService) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithCompletionHook registers fn to be called once for every assessment
// that reaches the final step, whichever transport advanced it.
func WithCompletionHook(fn func(*Assessment)) Option {
	return func(s *AssessmentService) {
		if fn != nil {
			s.onComplete = append(s.onComplete, fn)
		}
	}
}

// AssessmentService keeps one engine session per assessment and archives
// assessments once they reach the final step.
type AssessmentService struct {
	engine  *engine.Engine
	archive repository.AssessmentArchive
	logger  Logger
	now     func() time.Time

	idleTimeout time.Duration
	onComplete  []func(*Assessment)

	mu       sync.RWMutex
	sessions map[string]*entry

	tracer    trace.Tracer
	submitted metric.Int64Counter
	advanced  metric.Int64Counter
	failures  metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewAssessmentService creates a new AssessmentService. Sessions live in
// memory until they complete, are reset or sit idle past the idle timeout;
// completed assessments are then served from archive.
func NewAssessmentService(eng *engine.Engine, archive repository.AssessmentArchive, logger Logger, opts ...Option) (*AssessmentService, error) {
	meter := otel.Meter(instrumentationName)

	submitted, err := meter.Int64Counter("assessments.submitted",
		metric.WithDescription("Change requests accepted for assessment"))
	if err != nil {
		return nil, err
	}
	advanced, err := meter.Int64Counter("assessments.stages",
		metric.WithDescription("Stages committed, by stage and verdict"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("assessments.failures",
		metric.WithDescription("Rejected or failed assessment operations"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("assessments.stage.duration",
		metric.WithDescription("Stage evaluation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	s := &AssessmentService{
		engine:      eng,
		archive:     archive,
		logger:      logger,
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
		sessions:    make(map[string]*entry),
		tracer:      otel.Tracer(instrumentationName),
		submitted:   submitted,
		advanced:    advanced,
		failures:    failures,
		duration:    duration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit starts a new assessment for req.
func (s *AssessmentService) Submit(ctx context.Context, req models.ChangeRequest, submittedBy string) (*Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "assessment.submit", trace.WithAttributes(
		attribute.String("change.id", req.ID),
		attribute.String("change.type", string(req.ChangeType)),
	))
	defer span.End()

	session := s.engine.NewSession()
	start := time.Now()
	state, err := session.Submit(ctx, req)
	if err != nil {
		s.fail(ctx, span, "submit", err)
		return nil, err
	}
	s.recordStage(ctx, state, time.Since(start))

	now := s.now()
	e := &entry{session: session, submittedBy: submittedBy, createdAt: now, touched: now}
	id := uuid.New().String()
	s.mu.Lock()
	expired := s.sweepLocked(now)
	s.sessions[id] = e
	s.mu.Unlock()
	if expired > 0 {
		s.logger.Info("expired idle assessments", "count", expired)
	}

	span.SetAttributes(attribute.String("assessment.id", id))
	s.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("change_type", string(req.ChangeType))))
	s.logger.Info("assessment submitted", "id", id, "change_id", req.ID, "risk_level", state.RiskLevel)

	return &Assessment{ID: id, Request: req, State: state, SubmittedBy: submittedBy, CreatedAt: e.createdAt}, nil
}

// Advance moves the assessment one stage forward from its committed step.
func (s *AssessmentService) Advance(ctx context.Context, id string) (*Assessment, error) {
	e, err := s.sessionFor(ctx, id)
	if err != nil {
		return nil, err
	}
	state, ok := e.session.State()
	if !ok {
		return nil, engine.ErrNoSubmission
	}
	return s.advance(ctx, id, e, state)
}

// AdvanceFrom advances only if the assessment is still at step, so that a
// caller holding an outdated view gets engine.ErrStaleState.
func (s *AssessmentService) AdvanceFrom(ctx context.Context, id string, step int) (*Assessment, error) {
	e, err := s.sessionFor(ctx, id)
	if err != nil {
		return nil, err
	}
	state, ok := e.session.State()
	if !ok {
		return nil, engine.ErrNoSubmission
	}
	state.CurrentStep = step
	return s.advance(ctx, id, e, state)
}

func (s *AssessmentService) advance(ctx context.Context, id string, e *entry, state models.WorkflowState) (*Assessment, error) {
	ctx, span := s.tracer.Start(ctx, "assessment.advance", trace.WithAttributes(
		attribute.String("assessment.id", id),
		attribute.Int("assessment.from_step", state.CurrentStep),
	))
	defer span.End()

	start := time.Now()
	next, err := e.session.Advance(ctx, state)
	if err != nil {
		s.fail(ctx, span, "advance", err)
		return nil, err
	}
	s.recordStage(ctx, next, time.Since(start))

	s.mu.Lock()
	e.touched = s.now()
	s.mu.Unlock()

	req, _ := e.session.Request()
	a := &Assessment{
		ID:          id,
		Request:     req,
		State:       next,
		SubmittedBy: e.submittedBy,
		CreatedAt:   e.createdAt,
		Completed:   engine.IsTerminal(next),
	}
	if a.Completed {
		s.complete(ctx, a)
	}
	return a, nil
}

// Reset discards the assessment.
func (s *AssessmentService) Reset(ctx context.Context, id string) error {
	_, span := s.tracer.Start(ctx, "assessment.reset", trace.WithAttributes(attribute.String("assessment.id", id)))
	defer span.End()

	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.session.Reset()
	s.logger.Info("assessment reset", "id", id)
	return nil
}

// Get returns the current view of an assessment. Completed assessments
// that are no longer held in memory are served from the archive.
func (s *AssessmentService) Get(ctx context.Context, id string) (*Assessment, error) {
	e, err := s.lookup(id)
	if errors.Is(err, ErrSessionNotFound) {
		rec, archErr := s.archive.GetAssessment(ctx, id)
		if archErr != nil {
			if errors.Is(archErr, repository.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, archErr
		}
		return &Assessment{
			ID:          rec.ID,
			Request:     rec.Request,
			State:       rec.State,
			SubmittedBy: rec.SubmittedBy,
			CreatedAt:   rec.CompletedAt,
			Completed:   true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	state, ok := e.session.State()
	if !ok {
		return nil, ErrSessionNotFound
	}
	req, _ := e.session.Request()
	return &Assessment{
		ID:          id,
		Request:     req,
		State:       state,
		SubmittedBy: e.submittedBy,
		CreatedAt:   e.createdAt,
		Completed:   engine.IsTerminal(state),
	}, nil
}

// History lists archived assessments, newest first.
func (s *AssessmentService) History(ctx context.Context, limit int) ([]*models.AssessmentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "assessment.history")
	defer span.End()
	return s.archive.ListAssessments(ctx, limit)
}

// sessionFor returns the live session for id. An id that is only in the
// archive has completed, so advancing it is a terminal-state error.
func (s *AssessmentService) sessionFor(ctx context.Context, id string) (*entry, error) {
	e, err := s.lookup(id)
	if !errors.Is(err, ErrSessionNotFound) {
		return e, err
	}
	rec, archErr := s.archive.GetAssessment(ctx, id)
	if archErr != nil {
		if errors.Is(archErr, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, archErr
	}
	return nil, &engine.TerminalStateError{Step: rec.State.CurrentStep}
}

// sweepLocked drops sessions idle for longer than the idle timeout and
// returns how many were removed. s.mu must be held.
func (s *AssessmentService) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.touched) > s.idleTimeout {
			e.session.Reset()
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *AssessmentService) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// complete archives a finished assessment and releases its session. The
// assessment itself has already completed, so an archive failure is logged
// rather than returned and the session stays in memory to keep it readable.
func (s *AssessmentService) complete(ctx context.Context, a *Assessment) {
	for _, fn := range s.onComplete {
		fn(a)
	}
	if s.archiveCompleted(ctx, a) {
		s.mu.Lock()
		delete(s.sessions, a.ID)
		s.mu.Unlock()
	}
}

func (s *AssessmentService) archiveCompleted(ctx context.Context, a *Assessment) bool {
	rec := &models.AssessmentRecord{
		ID:          a.ID,
		Request:     a.Request,
		State:       a.State.Clone(),
		SubmittedBy: a.SubmittedBy,
		CompletedAt: s.now(),
	}
	if err := s.archive.SaveAssessment(ctx, rec); err != nil {
		s.logger.Error("failed to archive assessment", "id", a.ID, "error", err)
		return false
	}
	s.logger.Info("assessment completed",
		"id", a.ID,
		"risk_level", a.State.RiskLevel,
		"recommended_action", a.State.RecommendedAction,
	)
	return true
}

func (s *AssessmentService) recordStage(ctx context.Context, state models.WorkflowState, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", engine.Step(state.CurrentStep).String()),
		attribute.String("risk_level", string(state.RiskLevel)),
	)
	s.advanced.Add(ctx, 1, attrs)
	s.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (s *AssessmentService) fail(ctx context.Context, span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("reason", failureReason(err)),
	))

	var evalErr *engine.EvaluatorError
	if errors.As(err, &evalErr) {
		s.logger.Error("stage evaluation failed", "op", op, "step", evalErr.Step, "stage", evalErr.Stage, "error", evalErr.Err)
		return
	}
	s.logger.Warn("assessment operation rejected", "op", op, "error", err)
}

func failureReason(err error) string {
	var (
		validation *engine.ValidationError
		terminal   *engine.TerminalStateError
		evalErr    *engine.EvaluatorError
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &terminal):
		return "terminal"
	case errors.As(err, &evalErr):
		return "evaluator"
	case errors.Is(err, engine.ErrStaleState):
		return "stale"
	case errors.Is(err, engine.ErrSessionReset):
		return "reset"
	default:
		return "other"
	}
}
