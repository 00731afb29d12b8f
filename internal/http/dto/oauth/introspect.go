package oauth

// IntrospectResponse is the response for token introspection (RFC 7662).
// Everything except Active is omitted for inactive tokens.
type IntrospectResponse struct {
	Active    bool     `json:"active"`
	TokenType string   `json:"token_type,omitempty"` // "access_token" | "refresh_token"
	ClientID  string   `json:"client_id,omitempty"`
	Scope     string   `json:"scope,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Aud       string   `json:"aud,omitempty"`
	TenantID  string   `json:"tenant_id,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}
