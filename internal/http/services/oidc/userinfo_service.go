package oidc

import (
	"context"

	"github.com/dropDatabas3/gatekeep/internal/directory"
	"github.com/dropDatabas3/gatekeep/internal/http/dto/oidc"
	httperr "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/token"
	"github.com/dropDatabas3/gatekeep/internal/util"
	"github.com/dropDatabas3/gatekeep/internal/validation"
)

// UserInfoService resuelve GET /userinfo con claims acotados por scope.
type UserInfoService struct {
	issuer *token.Issuer
	dir    *directory.Directory
}

func NewUserInfoService(iss *token.Issuer, dir *directory.Directory) *UserInfoService {
	return &UserInfoService{issuer: iss, dir: dir}
}

// UserInfo verifica el bearer, exige scope openid y filtra los claims de
// perfil según profile/email concedidos.
func (s *UserInfoService) UserInfo(ctx context.Context, bearer string) (*oidc.UserInfoResponse, error) {
	v, err := s.issuer.VerifyAccess(ctx, bearer)
	if err != nil {
		return nil, httperr.ErrTokenInvalid.WithCause(err)
	}
	if revoked, err := s.issuer.IsRevoked(ctx, v.JTI); err != nil || revoked {
		return nil, httperr.ErrTokenInvalid
	}

	scopes := map[string]bool{}
	for _, sc := range validation.NormalizeScopes(v.Scope) {
		scopes[sc] = true
	}
	if !scopes["openid"] {
		return nil, httperr.ErrInsufficientScopes.WithDetail("openid scope required")
	}

	resp := &oidc.UserInfoResponse{Sub: v.Sub, TenantID: v.TenantID}
	p, ok := s.dir.FindByID(v.Sub)
	if !ok {
		return resp, nil
	}
	if scopes["profile"] {
		resp.Name = p.Name
	}
	if scopes["email"] {
		resp.Email = p.Email
		verified := p.EmailVerified
		resp.EmailVerified = &verified
	}
	logger.From(ctx).Debug("userinfo served",
		logger.UserID(v.Sub),
		logger.String("email", util.MaskEmail(p.Email)))
	return resp, nil
}
