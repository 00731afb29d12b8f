// Package admin implementa las operaciones administrativas sobre el ciclo
// de vida de claves.
package admin

import (
	"context"
	"errors"

	"github.com/dropDatabas3/gatekeep/internal/audit"
	"github.com/dropDatabas3/gatekeep/internal/http/dto/admin"
	httperr "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/store/core"
)

// KeysService expone rotación y revocación de claves de firma.
type KeysService struct {
	keys *keys.Manager
}

func NewKeysService(km *keys.Manager) *KeysService {
	return &KeysService{keys: km}
}

// Rotate ejecuta la transición de rotación y devuelve los kids resultantes.
func (s *KeysService) Rotate(ctx context.Context) (*admin.RotateKeysResponse, error) {
	res, err := s.keys.RotateKeys(ctx)
	if err != nil {
		return nil, httperr.ErrInternalServerError.WithCause(err)
	}
	resp := &admin.RotateKeysResponse{
		Message: "rotated",
		Current: admin.KeyRef{KID: res.Current.KID},
	}
	fields := map[string]any{"current_kid": res.Current.KID}
	if res.Next != nil {
		resp.Next = &admin.KeyRef{KID: res.Next.KID}
		fields["next_kid"] = res.Next.KID
	}
	audit.Log(ctx, "admin.keys.rotate", fields)
	return resp, nil
}

// RevokeKID expira una clave: todos los tokens firmados con ella dejan de
// verificar (revocación masiva por kid).
func (s *KeysService) RevokeKID(ctx context.Context, kid string) (*admin.RevokeKIDResponse, error) {
	if kid == "" {
		return nil, httperr.ErrBadRequest.WithDetail("kid is required")
	}
	if err := s.keys.RevokeKID(ctx, kid); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, httperr.ErrNotFound.WithDetail("unknown kid")
		}
		return nil, httperr.ErrInternalServerError.WithCause(err)
	}
	logger.From(ctx).Info("kid revoked by admin", logger.KID(kid))
	audit.Log(ctx, "admin.keys.revoke_kid", map[string]any{"kid": kid})
	return &admin.RevokeKIDResponse{Message: "revoked", KID: kid}, nil
}
