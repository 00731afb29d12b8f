package oauth

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/clients"
	"github.com/dropDatabas3/gatekeep/internal/directory"
	"github.com/dropDatabas3/gatekeep/internal/http/dto/oauth"
	httperr "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/metrics"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/refresh"
	"github.com/dropDatabas3/gatekeep/internal/token"
	"github.com/dropDatabas3/gatekeep/internal/validation"
)

// TokenService resuelve POST /token para los grants soportados.
type TokenService struct {
	registry *clients.Registry
	issuer   *token.Issuer
	rotation *refresh.Protocol
	cache    cache.Client
	dir      *directory.Directory
}

func NewTokenService(reg *clients.Registry, iss *token.Issuer, rot *refresh.Protocol, c cache.Client, dir *directory.Directory) *TokenService {
	return &TokenService{registry: reg, issuer: iss, rotation: rot, cache: c, dir: dir}
}

// Exchange despacha por grant_type. Toda falla se traduce al vocabulario
// OAuth; nada de detalle interno hacia el caller.
func (s *TokenService) Exchange(ctx context.Context, req oauth.TokenRequest) (*oauth.TokenResponse, error) {
	client, err := s.registry.Authenticate(req.ClientID, req.ClientSecret, req.AuthVia)
	if err != nil {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidClient, "client authentication failed")
	}

	switch req.GrantType {
	case "authorization_code":
		return s.exchangeCode(ctx, client, req)
	case "refresh_token":
		return s.exchangeRefresh(ctx, client, req)
	default:
		return nil, httperr.NewOAuth(httperr.OAuthUnsupportedGrantType, "grant_type must be authorization_code or refresh_token")
	}
}

func (s *TokenService) exchangeCode(ctx context.Context, client *clients.Client, req oauth.TokenRequest) (*oauth.TokenResponse, error) {
	log := logger.From(ctx).With(logger.Component("oauth"), logger.Op("exchangeCode"), logger.ClientID(client.ID))

	if !client.SupportsGrant("authorization_code") {
		return nil, httperr.NewOAuth(httperr.OAuthUnauthorizedClient, "client is not allowed to use authorization_code")
	}
	if req.Code == "" {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "code is required")
	}

	// Consumo one-shot: get+delete atómico; la segunda redención del mismo
	// code no ve nada.
	raw, err := s.cache.GetDel(ctx, PrefixCode+req.Code)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, httperr.NewOAuth(httperr.OAuthInvalidGrant, "authorization code is invalid or already used")
		}
		return nil, err
	}
	metrics.AuthCodesConsumed.Inc()

	var payload oauth.AuthCodePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidGrant, "authorization code is invalid or already used")
	}

	if payload.ClientID != client.ID {
		log.Info("code presented by wrong client", logger.String("issued_to", payload.ClientID))
		return nil, httperr.NewOAuth(httperr.OAuthInvalidGrant, "authorization code was issued to another client")
	}
	if payload.RedirectURI != req.RedirectURI {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if payload.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "code_verifier is required")
		}
		if !verifyPKCE(payload.CodeChallenge, payload.ChallengeMethod, req.CodeVerifier) {
			return nil, httperr.NewOAuth(httperr.OAuthInvalidGrant, "PKCE verification failed")
		}
	}

	if !subsetOf(payload.Scope, client.AllowedScopes) {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidScope, "granted scope exceeds the client allow-list")
	}

	sub := token.Subject{
		UserID:   payload.UserID,
		TenantID: payload.TenantID,
		ClientID: client.ID,
		Roles:    payload.Roles,
		Scope:    payload.Scope,
	}
	pair, err := s.issuer.IssueTokenPair(ctx, sub)
	if err != nil {
		return nil, err
	}

	resp := &oauth.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		Scope:        payload.Scope,
	}

	// ID token solo con scope openid; una falla acá no tumba el grant, el
	// par access/refresh ya emitido se devuelve igual.
	if hasScope(payload.Scope, "openid") {
		scopes := map[string]bool{}
		for _, sc := range validation.NormalizeScopes(payload.Scope) {
			scopes[sc] = true
		}
		extra := s.dir.Claims(payload.UserID, scopes)
		if idt, err := s.issuer.SignIDToken(ctx, sub, payload.Nonce, payload.AuthTime, extra); err != nil {
			log.Warn("id token issuance failed", logger.UserID(payload.UserID), logger.Err(err))
		} else {
			resp.IDToken = idt.Token
		}
	}

	log.Info("code exchanged", logger.UserID(payload.UserID))
	return resp, nil
}

func (s *TokenService) exchangeRefresh(ctx context.Context, client *clients.Client, req oauth.TokenRequest) (*oauth.TokenResponse, error) {
	if !client.SupportsGrant("refresh_token") {
		return nil, httperr.NewOAuth(httperr.OAuthUnauthorizedClient, "client is not allowed to use refresh_token")
	}
	if req.RefreshToken == "" {
		return nil, httperr.NewOAuth(httperr.OAuthInvalidRequest, "refresh_token is required")
	}

	pair, err := s.rotation.Rotate(ctx, req.RefreshToken, client.ID)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrInvalidToken),
			errors.Is(err, refresh.ErrReused),
			errors.Is(err, refresh.ErrNotActive):
			return nil, httperr.NewOAuth(httperr.OAuthInvalidGrant, "refresh token is invalid, expired or already used")
		default:
			return nil, err
		}
	}

	return &oauth.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		Scope:        pair.Scope,
	}, nil
}
