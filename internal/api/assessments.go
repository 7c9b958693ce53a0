// Package api contains the HTTP handlers for the change risk service
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"change-risk/backend/internal/auth"
	"change-risk/backend/internal/services"
	"change-risk/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Assessments services.Assessments
}

// NewServer creates a new Server.
func NewServer(assessments services.Assessments) *Server {
	return &Server{Assessments: assessments}
}

// advanceRequest optionally pins the step the caller is advancing from.
type advanceRequest struct {
	FromStep *int `json:"from_step"`
}

// Register mounts the assessment routes on g.
func (s *Server) Register(g *echo.Group) {
	g.POST("/assessments", s.SubmitAssessment)
	g.GET("/assessments", s.ListAssessments)
	g.GET("/assessments/:id", s.GetAssessment)
	g.POST("/assessments/:id/advance", s.AdvanceAssessment)
	g.DELETE("/assessments/:id", s.ResetAssessment)
}

// SubmitAssessment validates a change request and runs intake
// (POST /api/v1/assessments)
func (s *Server) SubmitAssessment(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.ChangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	requester, _ := auth.RequesterFromContext(ctx)
	a, err := s.Assessments.Submit(ctx, req, requester)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/v1/assessments/"+a.ID)
	return c.JSON(http.StatusCreated, a)
}

// GetAssessment returns the current state of an assessment
// (GET /api/v1/assessments/:id)
func (s *Server) GetAssessment(c echo.Context) error {
	a, err := s.Assessments.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// AdvanceAssessment evaluates the next stage
// (POST /api/v1/assessments/:id/advance)
func (s *Server) AdvanceAssessment(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var body advanceRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
		}
	}

	var (
		a   *services.Assessment
		err error
	)
	if body.FromStep != nil {
		a, err = s.Assessments.AdvanceFrom(ctx, id, *body.FromStep)
	} else {
		a, err = s.Assessments.Advance(ctx, id)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// ResetAssessment discards an assessment
// (DELETE /api/v1/assessments/:id)
func (s *Server) ResetAssessment(c echo.Context) error {
	if err := s.Assessments.Reset(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListAssessments returns archived assessments, newest first
// (GET /api/v1/assessments?limit=N)
func (s *Server) ListAssessments(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	records, err := s.Assessments.History(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if records == nil {
		records = []*models.AssessmentRecord{}
	}
	return c.JSON(http.StatusOK, records)
}
