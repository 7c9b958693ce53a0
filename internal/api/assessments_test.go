package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-risk/backend/internal/auth"
	"change-risk/backend/internal/engine"
	"change-risk/backend/internal/logging"
	"change-risk/backend/internal/repository"
	"change-risk/backend/internal/services"
	"change-risk/backend/pkg/models"
)

const sampleBody = `{
  "id": "CHG0010234",
  "title": "Database Server Upgrade",
  "description": "Upgrade database server from version 10.2 to 11.5",
  "justification": "Current version reaches end-of-support next month",
  "planned_start": "2025-07-15T22:00:00Z",
  "planned_end": "2025-07-16T03:00:00Z",
  "business_application_group": "Customer Data Services",
  "declared_risk": "low",
  "change_type": "standard",
  "priority": "low",
  "approval_type": "standard"
}`

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T, evidence engine.TestEvidenceSource) *testAPI {
	t.Helper()
	snap := repository.NewSnapshot(nil, nil, []models.MaintenanceWindow{
		{ID: "MW-TUE", Weekdays: []time.Weekday{time.Tuesday}, StartHour: 22, EndHour: 23},
	})
	eng := engine.New(snap, snap, snap, evidence, engine.WithLocation(time.UTC))
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, reg)
	svc, err := services.NewAssessmentService(eng, repository.NewMemoryArchive(), logging.NewNop(),
		services.WithCompletionHook(metrics.ObserveCompletion))
	require.NoError(t, err)
	requester := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithRequester(r.Context(), "ops@example.com")))
		})
	}

	e := NewRouter(RouterOptions{
		Server:      NewServer(svc),
		Health:      NewHandler("test", map[string]Check{"reference_data": func(context.Context) error { return nil }}),
		Metrics:     metrics,
		Logger:      logging.NewNop(),
		RequireAuth: requester,
		OktaIssuer:  "https://example.okta.com/oauth2/default",
	})
	return &testAPI{t: t, handler: e}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) submit() services.Assessment {
	rec := a.do(http.MethodPost, "/api/v1/assessments", sampleBody)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out services.Assessment
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestSubmitAndWalkAssessment(t *testing.T) {
	api := newTestAPI(t, engine.StaticEvidence{Link: "https://portal/test-results/CHG0010234", Passed: true})

	a := api.submit()
	assert.Equal(t, 1, a.State.CurrentStep)
	assert.Equal(t, "ops@example.com", a.SubmittedBy)

	var last services.Assessment
	for step := 2; step <= 6; step++ {
		rec := api.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/advance", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
		assert.Equal(t, step, last.State.CurrentStep)
	}
	assert.True(t, last.Completed)
	assert.Equal(t, "Proceed with deployment", last.State.RecommendedAction)
	assert.Equal(t, "https://portal/test-results/CHG0010234", last.State.TestCompletionLink)

	rec := api.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/advance", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Assessment already complete", decodeProblem(t, rec).Title)

	rec = api.do(http.MethodGet, "/api/v1/assessments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.AssessmentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, a.ID, history[0].ID)

	rec = api.do(http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), `changerisk_api_assessments_completed_total{risk_level="low"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/assessments/:id/advance"`)
}

func TestSubmitInvalidRequest(t *testing.T) {
	api := newTestAPI(t, engine.StaticEvidence{})

	body := strings.Replace(sampleBody, `"declared_risk": "low"`, `"declared_risk": "extreme"`, 1)
	rec := api.do(http.MethodPost, "/api/v1/assessments", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeProblem(t, rec).Detail, "declared_risk")

	rec = api.do(http.MethodPost, "/api/v1/assessments", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceErrors(t *testing.T) {
	failing := engine.EvidenceFunc(func(context.Context, models.ChangeRequest) (engine.TestEvidence, error) {
		return engine.TestEvidence{}, errors.New("portal down")
	})
	api := newTestAPI(t, failing)

	rec := api.do(http.MethodPost, "/api/v1/assessments/unknown/advance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	a := api.submit()
	rec = api.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/advance", `{"from_step": 3}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Stale assessment state", decodeProblem(t, rec).Title)

	rec = api.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/advance", `{"from_step": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/api/v1/assessments/"+a.ID+"/advance", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeProblem(t, rec).Detail, "portal down")

	rec = api.do(http.MethodGet, "/api/v1/assessments/"+a.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got services.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.State.CurrentStep)
}

func TestResetAssessment(t *testing.T) {
	api := newTestAPI(t, engine.StaticEvidence{})
	a := api.submit()

	rec := api.do(http.MethodDelete, "/api/v1/assessments/"+a.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/assessments/"+a.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodDelete, "/api/v1/assessments/"+a.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAssessmentsRejectsBadLimit(t *testing.T) {
	api := newTestAPI(t, engine.StaticEvidence{})
	rec := api.do(http.MethodGet, "/api/v1/assessments?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/v1/assessments", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHealthAndSpec(t *testing.T) {
	api := newTestAPI(t, engine.StaticEvidence{})

	rec := api.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reference_data":"ok"`)

	rec = api.do(http.MethodGet, "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://example.okta.com/oauth2/default/v1/authorize")
	assert.NotContains(t, rec.Body.String(), "{oktaIssuer}")

	rec = api.do(http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scopes: "openid profile email changerisk:read changerisk:write"`)
	assert.Contains(t, rec.Body.String(), "http://example.com/docs/oauth2-redirect.html")
}

func TestReadyReportsFailingCheck(t *testing.T) {
	h := NewHandler("test", map[string]Check{"db": func(context.Context) error { return errors.New("refused") }})
	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}
