package engine

import (
	"context"
	"sync"

	"change-risk/backend/pkg/models"
)

// Session owns the state of a single assessment. Submit starts it, Advance
// moves it one stage forward and Reset discards it.
type Session struct {
	engine *Engine

	mu         sync.Mutex
	generation uint64
	request    *models.ChangeRequest
	state      *models.WorkflowState
}

// NewSession creates an empty session bound to e.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e}
}

// Submit validates req, runs intake and replaces any prior assessment held
// by the session. A rejected request leaves the session untouched.
func (s *Session) Submit(ctx context.Context, req models.ChangeRequest) (models.WorkflowState, error) {
	state, err := s.engine.Start(ctx, req)
	if err != nil {
		return models.WorkflowState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.request = &req
	s.state = &state
	return state.Clone(), nil
}

// Advance evaluates the next stage for the committed state identified by
// state. The passed value is not modified. If the stage fails nothing is
// committed and the error is returned.
func (s *Session) Advance(ctx context.Context, state models.WorkflowState) (models.WorkflowState, error) {
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return models.WorkflowState{}, ErrNoSubmission
	}
	if IsTerminal(*s.state) {
		step := s.state.CurrentStep
		s.mu.Unlock()
		return models.WorkflowState{}, &TerminalStateError{Step: step}
	}
	if state.CurrentStep != s.state.CurrentStep {
		s.mu.Unlock()
		return models.WorkflowState{}, ErrStaleState
	}
	gen := s.generation
	req := *s.request
	committed := s.state.Clone()
	s.mu.Unlock()

	next, err := s.engine.Step(ctx, req, committed)
	if err != nil {
		return models.WorkflowState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.state == nil {
		return models.WorkflowState{}, ErrSessionReset
	}
	if s.state.CurrentStep != committed.CurrentStep {
		return models.WorkflowState{}, ErrStaleState
	}
	s.state = &next
	return next.Clone(), nil
}

// Reset discards the request and state. Output of a stage still being
// evaluated is dropped when it completes.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.request = nil
	s.state = nil
}

// State returns a copy of the committed state, if any.
func (s *Session) State() (models.WorkflowState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return models.WorkflowState{}, false
	}
	return s.state.Clone(), true
}

// Request returns the submitted request, if any.
func (s *Session) Request() (models.ChangeRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request == nil {
		return models.ChangeRequest{}, false
	}
	return *s.request, true
}
