package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"change-risk/backend/internal/engine"
	"change-risk/backend/pkg/models"
)

// HTTPEvidenceClient fetches pre-implementation test results from the
// testing portal. Calls go through a circuit breaker so a failing portal
// is not hammered by every assessment.
type HTTPEvidenceClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// portalResult is the portal's response body.
type portalResult struct {
	Link   string `json:"link"`
	Passed bool   `json:"passed"`
}

// NewHTTPEvidenceClient creates a new HTTPEvidenceClient.
func NewHTTPEvidenceClient(baseURL string, timeout time.Duration, logger Logger) *HTTPEvidenceClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "testing-portal",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	if logger != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		}
	}
	return &HTTPEvidenceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// TestEvidence returns the portal's record for req. A 404 means no tests
// were recorded and yields empty evidence, not an error.
func (c *HTTPEvidenceClient) TestEvidence(ctx context.Context, req models.ChangeRequest) (engine.TestEvidence, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return engine.TestEvidence{}, fmt.Errorf("testing portal unavailable: %w", err)
		}
		return engine.TestEvidence{}, err
	}
	return out.(engine.TestEvidence), nil
}

func (c *HTTPEvidenceClient) fetch(ctx context.Context, req models.ChangeRequest) (engine.TestEvidence, error) {
	q := url.Values{}
	q.Set("change_id", req.ID)
	q.Set("group", req.BusinessApplicationGroup)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/test-results?"+q.Encode(), nil)
	if err != nil {
		return engine.TestEvidence{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return engine.TestEvidence{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return engine.TestEvidence{}, nil
	default:
		return engine.TestEvidence{}, fmt.Errorf("failed to get test results: status code %d", resp.StatusCode)
	}

	var result portalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engine.TestEvidence{}, fmt.Errorf("failed to decode response body: %w", err)
	}
	return engine.TestEvidence{Link: result.Link, Passed: result.Passed}, nil
}
