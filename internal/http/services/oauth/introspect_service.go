package oauth

import (
	"context"

	"github.com/dropDatabas3/gatekeep/internal/http/dto/oauth"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/refresh"
	"github.com/dropDatabas3/gatekeep/internal/token"
)

// IntrospectService resuelve POST /introspection (RFC 7662).
type IntrospectService struct {
	issuer   *token.Issuer
	rotation *refresh.Protocol
}

func NewIntrospectService(iss *token.Issuer, rot *refresh.Protocol) *IntrospectService {
	return &IntrospectService{issuer: iss, rotation: rot}
}

// Introspect intenta verificar como access y después como refresh, chequea
// la revocation list, y responde {active:false} ante CUALQUIER falla en vez
// de propagar el error: este endpoint no confirma por qué un token no sirve.
func (s *IntrospectService) Introspect(ctx context.Context, raw string) *oauth.IntrospectResponse {
	inactive := &oauth.IntrospectResponse{Active: false}
	if raw == "" {
		return inactive
	}

	tokenType := "access_token"
	v, err := s.issuer.VerifyAccess(ctx, raw)
	if err != nil {
		v, err = s.issuer.VerifyRefresh(ctx, raw)
		if err != nil {
			return inactive
		}
		tokenType = "refresh_token"
	}

	revoked, err := s.issuer.IsRevoked(ctx, v.JTI)
	if err != nil {
		// Cache caído: responder inactive antes que validar a ciegas.
		logger.From(ctx).Warn("revocation lookup failed during introspection", logger.JTI(v.JTI), logger.Err(err))
		return inactive
	}
	if revoked {
		return inactive
	}

	// Un refresh sin record vivo ya no es canjeable: inactive aunque la
	// firma siga siendo válida.
	if tokenType == "refresh_token" {
		rec, err := s.rotation.Record(ctx, v.JTI)
		if err != nil || rec == nil {
			return inactive
		}
	}

	return &oauth.IntrospectResponse{
		Active:    true,
		TokenType: tokenType,
		ClientID:  v.ClientID,
		Scope:     v.Scope,
		Sub:       v.Sub,
		Iss:       v.Iss,
		Exp:       v.Exp.Unix(),
		Iat:       v.Iat.Unix(),
		Aud:       v.ClientID,
		TenantID:  v.TenantID,
		Roles:     v.Roles,
	}
}
