package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// RouterOptions collects everything mounted on the service's echo instance.
// Nil fields are skipped.
type RouterOptions struct {
	Server  *Server
	Health  *Handler
	Metrics *Metrics
	Logger  Logger

	// RequireAuth guards /api/v1.
	RequireAuth func(http.Handler) http.Handler
	Login       http.HandlerFunc
	Callback    http.HandlerFunc
	Logout      http.HandlerFunc

	// MCP serves the Model Context Protocol endpoints under /mcp, behind
	// RequireAuth when set.
	MCP http.Handler

	OktaIssuer      string
	SwaggerClientID string
}

// NewRouter builds the echo instance for the service.
func NewRouter(opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler(opts.Logger)

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("change-risk"))
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	if opts.Health != nil {
		e.GET("/health", echo.WrapHandler(http.HandlerFunc(opts.Health.HandleHealth)))
		e.GET("/ready", echo.WrapHandler(http.HandlerFunc(opts.Health.HandleReady)))
	}

	if opts.Login != nil {
		e.GET("/login", echo.WrapHandler(opts.Login))
	}
	if opts.Callback != nil {
		e.GET("/auth/callback", echo.WrapHandler(opts.Callback))
	}
	if opts.Logout != nil {
		e.GET("/logout", echo.WrapHandler(opts.Logout))
	}

	e.GET("/openapi.yaml", echo.WrapHandler(SpecHandler(opts.OktaIssuer)))
	e.GET("/docs", echo.WrapHandler(SwaggerHandler(opts.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(OAuthRedirectHandler)))

	if opts.Server != nil {
		apiGroup := e.Group("/api/v1")
		if opts.RequireAuth != nil {
			apiGroup.Use(echo.WrapMiddleware(opts.RequireAuth))
		}
		opts.Server.Register(apiGroup)
	}

	if opts.MCP != nil {
		mcpHandler := opts.MCP
		if opts.RequireAuth != nil {
			mcpHandler = opts.RequireAuth(mcpHandler)
		}
		e.Any("/mcp", echo.WrapHandler(mcpHandler))
		e.Any("/mcp/*", echo.WrapHandler(mcpHandler))
	}
	return e
}
