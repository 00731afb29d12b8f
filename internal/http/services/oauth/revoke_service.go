package oauth

import (
	"context"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/refresh"
	"github.com/dropDatabas3/gatekeep/internal/token"
)

// RevokeService resuelve POST /revocation (RFC 7009).
type RevokeService struct {
	issuer   *token.Issuer
	rotation *refresh.Protocol
}

func NewRevokeService(iss *token.Issuer, rot *refresh.Protocol) *RevokeService {
	return &RevokeService{issuer: iss, rotation: rot}
}

// Revoke intenta primero como refresh (mata record + sesión), después como
// access (solo revocation entry). Nunca falla hacia el caller: tokens
// ilegibles también "se revocan" con éxito, la RFC lo exige.
func (s *RevokeService) Revoke(ctx context.Context, raw string) {
	if raw == "" {
		return
	}
	log := logger.From(ctx).With(logger.Component("oauth"), logger.Op("Revoke"))

	if v, err := s.issuer.VerifyRefresh(ctx, raw); err == nil {
		if err := s.rotation.Revoke(ctx, v, "revoked"); err != nil {
			log.Warn("refresh revocation incomplete", logger.JTI(v.JTI), logger.Err(err))
		}
		return
	}

	if v, err := s.issuer.VerifyAccess(ctx, raw); err == nil {
		if err := s.issuer.Revoke(ctx, v.JTI, token.TypeAccess, "revoked", time.Until(v.Exp)); err != nil {
			log.Warn("access revocation incomplete", logger.JTI(v.JTI), logger.Err(err))
		}
		return
	}

	// Token que no parsea: éxito silencioso.
	log.Debug("revocation of unparseable token ignored")
}
