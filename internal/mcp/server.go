package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"change-risk/backend/internal/auth"
	"change-risk/backend/internal/services"
	"change-risk/backend/pkg/models"
)

// Server exposes the assessment workflow as MCP tools.
type Server struct {
	mcpServer   *server.MCPServer
	assessments services.Assessments
}

func NewServer(assessments services.Assessments, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Change Risk Assessment",
			version,
			server.WithToolCapabilities(true),
		),
		assessments: assessments,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_change_request",
			mcp.WithDescription("Submit a change request for risk assessment. Runs intake and returns the assessment at step 1."),
			mcp.WithString("id", mcp.Description("Change record identifier, e.g. CHG0010234")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short title of the change")),
			mcp.WithString("description", mcp.Required(), mcp.Description("What the change does")),
			mcp.WithString("justification", mcp.Required(), mcp.Description("Why the change is needed")),
			mcp.WithString("planned_start", mcp.Required(), mcp.Description("RFC 3339 start of the change window")),
			mcp.WithString("planned_end", mcp.Required(), mcp.Description("RFC 3339 end of the change window")),
			mcp.WithString("business_application_group", mcp.Required(), mcp.Description("Owning business application group")),
			mcp.WithString("declared_risk", mcp.Required(), mcp.Enum("low", "medium", "high")),
			mcp.WithString("change_type", mcp.Required(), mcp.Enum("standard", "emergency", "normal")),
			mcp.WithString("priority", mcp.Required(), mcp.Enum("low", "medium", "high")),
			mcp.WithString("approval_type", mcp.Enum("standard", "manual")),
			mcp.WithBoolean("has_backout_plan", mcp.Description("Whether a backout plan exists")),
		),
		s.handleSubmit,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"advance_assessment",
			mcp.WithDescription("Evaluate the next stage of an assessment"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The assessment ID")),
			mcp.WithNumber("from_step", mcp.Description("Only advance if the assessment is still at this step")),
		),
		s.handleAdvance,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"reset_assessment",
			mcp.WithDescription("Discard an assessment"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The assessment ID")),
		),
		s.handleReset,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_assessment",
			mcp.WithDescription("Get the current state of an assessment"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The assessment ID")),
		),
		s.handleGet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_assessments",
			mcp.WithDescription("List completed assessments, newest first"),
			mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 20)")),
		),
		s.handleList,
	)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

func timeArg(args map[string]interface{}, name string) (time.Time, error) {
	raw := stringArg(args, name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
	}
	return t, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	start, err := timeArg(args, "planned_start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := timeArg(args, "planned_end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	backout, _ := args["has_backout_plan"].(bool)

	req := models.ChangeRequest{
		ID:                       stringArg(args, "id"),
		Title:                    stringArg(args, "title"),
		Description:              stringArg(args, "description"),
		Justification:            stringArg(args, "justification"),
		PlannedStart:             start,
		PlannedEnd:               end,
		BusinessApplicationGroup: stringArg(args, "business_application_group"),
		DeclaredRisk:             models.RiskLevel(stringArg(args, "declared_risk")),
		ChangeType:               models.ChangeType(stringArg(args, "change_type")),
		Priority:                 models.Priority(stringArg(args, "priority")),
		ApprovalType:             models.ApprovalType(stringArg(args, "approval_type")),
		HasBackoutPlan:           backout,
	}

	requester, _ := auth.RequesterFromContext(ctx)
	a, err := s.assessments.Submit(ctx, req, requester)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to submit: %v", err)), nil
	}
	return jsonResult(a)
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id := stringArg(args, "id")
	if id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	var (
		a   *services.Assessment
		err error
	)
	if step, ok := args["from_step"].(float64); ok {
		a, err = s.assessments.AdvanceFrom(ctx, id, int(step))
	} else {
		a, err = s.assessments.Advance(ctx, id)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to advance: %v", err)), nil
	}
	return jsonResult(a)
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id := stringArg(args, "id")
	if id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	if err := s.assessments.Reset(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reset: %v", err)), nil
	}
	return mcp.NewToolResultText("Assessment reset"), nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id := stringArg(args, "id")
	if id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	a, err := s.assessments.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get assessment: %v", err)), nil
	}
	return jsonResult(a)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 20
	if args, ok := arguments(request); ok {
		if n, ok := args["limit"].(float64); ok && n > 0 {
			limit = int(n)
		}
	}

	records, err := s.assessments.History(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list assessments: %v", err)), nil
	}
	return jsonResult(records)
}

// MountHTTPHandlers serves the MCP SSE transport on mux. The requester
// stored by the auth middleware is carried into tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if email, ok := auth.RequesterFromContext(r.Context()); ok {
				return auth.WithRequester(ctx, email)
			}
			return ctx
		}),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
