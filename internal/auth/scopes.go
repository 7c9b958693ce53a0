package auth

const (
	ScopeOpenID          = "openid"
	ScopeProfile         = "profile"
	ScopeEmail           = "email"
	ScopeAssessmentRead  = "changerisk:read"
	ScopeAssessmentWrite = "changerisk:write"
)

// AllScopes defines the full set of scopes requested by the Swagger UI
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeAssessmentRead,
	ScopeAssessmentWrite,
}
