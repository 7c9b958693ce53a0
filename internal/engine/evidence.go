package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"change-risk/backend/pkg/models"
)

// TestEvidence is the pre-implementation testing record for a request.
// Evidence exists only when Link is set.
type TestEvidence struct {
	Link   string `json:"link,omitempty"`
	Passed bool   `json:"passed"`
}

// Available reports whether verifiable test-completion evidence exists.
func (t TestEvidence) Available() bool { return t.Link != "" }

// TestEvidenceSource supplies testing outcomes for non-emergency changes.
type TestEvidenceSource interface {
	TestEvidence(ctx context.Context, req models.ChangeRequest) (TestEvidence, error)
}

// EvidenceFunc adapts a function to TestEvidenceSource.
type EvidenceFunc func(ctx context.Context, req models.ChangeRequest) (TestEvidence, error)

func (f EvidenceFunc) TestEvidence(ctx context.Context, req models.ChangeRequest) (TestEvidence, error) {
	return f(ctx, req)
}

// StaticEvidence returns the same outcome for every request.
type StaticEvidence TestEvidence

func (s StaticEvidence) TestEvidence(context.Context, models.ChangeRequest) (TestEvidence, error) {
	return TestEvidence(s), nil
}

// SimulatedEvidence draws outcomes from a seeded source, for demos. Tests
// pass 70% of the time and a completion link exists 50% of the time.
type SimulatedEvidence struct {
	PassRate float64
	LinkRate float64
	LinkBase string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedEvidence returns a SimulatedEvidence seeded with seed.
func NewSimulatedEvidence(seed int64, linkBase string) *SimulatedEvidence {
	return &SimulatedEvidence{
		PassRate: 0.7,
		LinkRate: 0.5,
		LinkBase: linkBase,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

func (s *SimulatedEvidence) TestEvidence(_ context.Context, req models.ChangeRequest) (TestEvidence, error) {
	s.mu.Lock()
	passed := s.rnd.Float64() < s.PassRate
	hasLink := s.rnd.Float64() < s.LinkRate
	s.mu.Unlock()

	if !hasLink {
		return TestEvidence{Passed: passed}, nil
	}
	ref := req.ID
	if ref == "" {
		ref = "unassigned"
	}
	return TestEvidence{
		Link:   fmt.Sprintf("%s/test-results/%s", s.LinkBase, ref),
		Passed: passed,
	}, nil
}
