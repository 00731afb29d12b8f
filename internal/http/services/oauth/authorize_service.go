// Package oauth implementa los servicios de los endpoints de protocolo
// OAuth2: authorize, token, introspection y revocation.
package oauth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/clients"
	"github.com/dropDatabas3/gatekeep/internal/http/dto/oauth"
	httperr "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/metrics"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/security/tokens"
	"github.com/dropDatabas3/gatekeep/internal/token"
	"github.com/dropDatabas3/gatekeep/internal/validation"
)

// PrefixCode es el prefijo de cache de authorization codes.
const PrefixCode = "code:"

// CodeTTL acota la vida de un authorization code sin consumir.
const CodeTTL = 600 * time.Second

const codeBytes = 32

// AuthorizeService emite authorization codes para la parte front-channel
// del grant authorization_code+PKCE.
type AuthorizeService struct {
	registry *clients.Registry
	issuer   *token.Issuer
	cache    cache.Client
}

func NewAuthorizeService(reg *clients.Registry, iss *token.Issuer, c cache.Client) *AuthorizeService {
	return &AuthorizeService{registry: reg, issuer: iss, cache: c}
}

// Authorize valida la request y, con una sesión válida del resource owner
// (bearer access token), emite un code de un solo uso.
//
// El orden de validación importa: el redirect_uri se valida ANTES de
// cualquier redirección con error; una request con redirect inválido jamás
// redirige.
func (s *AuthorizeService) Authorize(ctx context.Context, req oauth.AuthorizeRequest, bearer string) (*oauth.AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Component("oauth"), logger.Op("Authorize"), logger.ClientID(req.ClientID))

	if req.ResponseType == "" || req.ClientID == "" || req.RedirectURI == "" {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "response_type, client_id and redirect_uri are required")
	}

	client, err := s.registry.FindByID(req.ClientID)
	if err != nil {
		// 400 genérico: no confirmamos qué client ids existen.
		return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "unknown or invalid client")
	}
	if req.ResponseType != "code" || !client.SupportsResponseType(req.ResponseType) {
		return nil, httperr.NewOAuth(httperr.OAuthUnsupportedResponseType, "only response_type=code is supported")
	}
	if !client.RedirectURIAllowed(req.RedirectURI) {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "redirect_uri is not registered for this client")
	}

	scope, ok := client.ResolveScope(req.Scope)
	if !ok {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidScope, "requested scope exceeds the client allow-list")
	}
	if !hasScope(scope, "openid") {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidScope, "scope must include openid")
	}

	method := req.CodeChallengeMethod
	if req.CodeChallenge != "" && method == "" {
		method = "plain"
	}
	if client.RequirePKCE {
		if req.CodeChallenge == "" {
			return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "code_challenge is required for this client")
		}
		if method != "S256" {
			return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "code_challenge_method must be S256")
		}
	}
	if method != "" && method != "S256" && method != "plain" {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "unsupported code_challenge_method")
	}

	// El resource owner tiene que estar autenticado ya: acá no hay login UI,
	// la sesión llega como bearer access token.
	v, err := s.issuer.VerifyAccess(ctx, bearer)
	if err != nil {
		return nil, &httperr.OAuthError{Code: httperr.OAuthAccessDenied, Description: "a valid bearer access token is required", Status: 401}
	}
	if revoked, err := s.issuer.IsRevoked(ctx, v.JTI); err != nil || revoked {
		return nil, &httperr.OAuthError{Code: httperr.OAuthAccessDenied, Description: "a valid bearer access token is required", Status: 401}
	}

	code, err := tokens.GenerateOpaqueToken(codeBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	payload := oauth.AuthCodePayload{
		UserID:          v.Sub,
		TenantID:        v.TenantID,
		ClientID:        client.ID,
		RedirectURI:     req.RedirectURI,
		Scope:           scope,
		Nonce:           req.Nonce,
		CodeChallenge:   req.CodeChallenge,
		ChallengeMethod: method,
		Roles:           v.Roles,
		AuthTime:        v.Iat,
		IssuedAt:        now,
	}
	b, _ := json.Marshal(payload)
	if err := s.cache.Set(ctx, PrefixCode+code, string(b), CodeTTL); err != nil {
		return nil, err
	}

	metrics.AuthCodesIssued.Inc()
	log.Info("authorization code issued", logger.UserID(v.Sub))
	return &oauth.AuthorizeResult{Code: code, State: req.State, RedirectURI: req.RedirectURI}, nil
}

func hasScope(scope, want string) bool {
	for _, s := range validation.NormalizeScopes(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// verifyPKCE recomputa el challenge a partir del verifier y compara
// byte a byte. Nada de substring matching.
func verifyPKCE(challenge, method, verifier string) bool {
	switch method {
	case "S256":
		return tokens.ConstantTimeEquals(tokens.SHA256Base64URL(verifier), challenge)
	case "plain":
		return tokens.ConstantTimeEquals(verifier, challenge)
	default:
		return false
	}
}

// subsetOf verifica scope ⊆ allowed (ambos space-delimited).
func subsetOf(scope string, allowed []string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	for _, s := range strings.Fields(scope) {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
