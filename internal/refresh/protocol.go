// Package refresh implementa el protocolo de rotación de refresh tokens
// con detección de reuso: cada refresh jti se redime exactamente una vez.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/audit"
	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/metrics"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/token"
	gocache "github.com/patrickmn/go-cache"
)

// Cache key prefixes
const (
	PrefixRotated = "rotated:"
	PrefixSession = "session:"
)

// localSeenTTL acota el negative-cache in-process de jtis rotados. Es solo
// una optimización de latencia: la fuente de verdad es el marker durable.
const localSeenTTL = time.Hour

var (
	ErrInvalidToken = errors.New("invalid or expired refresh token")
	ErrReused       = errors.New("refresh token already rotated")
	ErrNotActive    = errors.New("refresh token not active")
)

// Protocol coordina los estados Active → Rotated / Revoked de cada jti.
type Protocol struct {
	issuer *token.Issuer
	cache  cache.Client
	seen   *gocache.Cache
}

func NewProtocol(iss *token.Issuer, c cache.Client) *Protocol {
	return &Protocol{
		issuer: iss,
		cache:  c,
		seen:   gocache.New(localSeenTTL, 10*time.Minute),
	}
}

// Rotate redime un refresh token: lo consume, marca el jti como rotado y
// emite un par nuevo para el mismo subject. La segunda redención del mismo
// token falla siempre (detección de reuso). Si clientID no es vacío, el
// token debe haber sido emitido para ese client.
func (p *Protocol) Rotate(ctx context.Context, oldToken, clientID string) (*token.Pair, error) {
	log := logger.From(ctx).With(logger.Component("refresh"), logger.Op("Rotate"))

	// 1-2. Firma, exp y type=refresh.
	v, err := p.issuer.VerifyRefresh(ctx, oldToken)
	if err != nil {
		log.Debug("refresh verification failed", logger.Err(err))
		return nil, ErrInvalidToken
	}
	if clientID != "" && v.ClientID != clientID {
		log.Info("refresh presented by wrong client", logger.JTI(v.JTI), logger.ClientID(clientID))
		return nil, ErrInvalidToken
	}

	// 3. Reuso: primero el set local (fast path), después el marker durable.
	if _, hit := p.seen.Get(v.JTI); hit {
		metrics.RefreshReuseDetected.Inc()
		log.Info("refresh reuse detected (local)", logger.JTI(v.JTI))
		return nil, ErrReused
	}
	rotated, err := p.cache.Exists(ctx, PrefixRotated+v.JTI)
	if err != nil {
		return nil, err
	}
	if rotated {
		metrics.RefreshReuseDetected.Inc()
		log.Info("refresh reuse detected", logger.JTI(v.JTI))
		audit.Log(ctx, "token.refresh.reuse", map[string]any{"jti": v.JTI, "sub": v.Sub, "client_id": v.ClientID})
		return nil, ErrReused
	}

	// 4-5. Consumo one-shot del record: GetDel es atómico, a lo sumo un
	// caller concurrente observa el valor.
	raw, err := p.cache.GetDel(ctx, token.PrefixRefresh+v.JTI)
	if err != nil {
		if cache.IsNotFound(err) {
			log.Debug("refresh record missing", logger.JTI(v.JTI))
			return nil, ErrNotActive
		}
		return nil, err
	}
	var rec token.RefreshRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, ErrNotActive
	}

	remaining := time.Until(v.Exp)
	p.markRotated(ctx, v.JTI, remaining)
	if err := p.issuer.Revoke(ctx, v.JTI, token.TypeRefresh, "rotated", remaining); err != nil {
		log.Warn("failed to add revocation entry", logger.JTI(v.JTI), logger.Err(err))
	}

	// 6. Par nuevo para el mismo subject/tenant/roles.
	pair, err := p.issuer.IssueTokenPair(ctx, token.Subject{
		UserID:   rec.Sub,
		TenantID: rec.TenantID,
		ClientID: rec.ClientID,
		Roles:    rec.Roles,
		Scope:    rec.Scope,
	})
	if err != nil {
		return nil, err
	}

	log.Info("refresh rotated", logger.UserID(rec.Sub), logger.ClientID(rec.ClientID), logger.JTI(pair.RefreshJTI))
	return pair, nil
}

// Revoke revoca un refresh token verificado: borra el record, marca el jti
// rotado, agrega la revocation entry y elimina la sesión del subject.
func (p *Protocol) Revoke(ctx context.Context, v *token.VerifiedToken, reason string) error {
	log := logger.From(ctx).With(logger.Component("refresh"), logger.Op("Revoke"))

	if err := p.cache.Delete(ctx, token.PrefixRefresh+v.JTI); err != nil {
		return err
	}
	remaining := time.Until(v.Exp)
	p.markRotated(ctx, v.JTI, remaining)
	if err := p.issuer.Revoke(ctx, v.JTI, token.TypeRefresh, reason, remaining); err != nil {
		return err
	}
	if v.Sub != "" {
		if err := p.cache.Delete(ctx, PrefixSession+v.Sub); err != nil {
			log.Warn("failed to delete session", logger.UserID(v.Sub), logger.Err(err))
		}
	}
	log.Info("refresh revoked", logger.JTI(v.JTI), logger.String("reason", reason))
	return nil
}

// Record devuelve el RefreshRecord vivo de un jti, si existe.
func (p *Protocol) Record(ctx context.Context, jti string) (*token.RefreshRecord, error) {
	raw, err := p.cache.Get(ctx, token.PrefixRefresh+jti)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec token.RefreshRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

// markRotated setea el marker durable y el set local. El marker durable
// cierra la ventana entre delete del record y un segundo intento de uso.
func (p *Protocol) markRotated(ctx context.Context, jti string, remaining time.Duration) {
	if remaining <= 0 {
		remaining = time.Minute
	}
	if err := p.cache.Set(ctx, PrefixRotated+jti, "1", remaining); err != nil {
		logger.From(ctx).Warn("failed to set rotated marker", logger.JTI(jti), logger.Err(err))
	}
	p.seen.Set(jti, struct{}{}, localSeenTTL)
}
