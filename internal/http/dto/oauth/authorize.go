// Package oauth contains DTOs for OAuth2 endpoints.
package oauth

import "time"

// AuthorizeRequest contains the parsed query params for GET /authorize.
type AuthorizeRequest struct {
	ResponseType        string `json:"response_type"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope"`
	State               string `json:"state"`
	Nonce               string `json:"nonce"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// AuthCodePayload is stored in cache under "code:<code>" when an auth code
// is issued, and consumed exactly once by the token endpoint.
type AuthCodePayload struct {
	UserID          string    `json:"user_id"`
	TenantID        string    `json:"tenant_id"`
	ClientID        string    `json:"client_id"`
	RedirectURI     string    `json:"redirect_uri"`
	Scope           string    `json:"scope"`
	Nonce           string    `json:"nonce"`
	CodeChallenge   string    `json:"code_challenge"`
	ChallengeMethod string    `json:"code_challenge_method"`
	Roles           []string  `json:"roles"`
	AuthTime        time.Time `json:"auth_time"`
	IssuedAt        time.Time `json:"issued_at"`
}

// AuthorizeResult is the outcome from AuthorizeService.Authorize.
type AuthorizeResult struct {
	Code        string
	State       string
	RedirectURI string
}
