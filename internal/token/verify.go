package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/keys"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// VerifyKind clasifica los fallos de verificación para que los call sites
// ramifiquen por tipo y no por string de error.
type VerifyKind int

const (
	KindMalformed VerifyKind = iota
	KindBadSignature
	KindUnknownKID
	KindExpired
)

func (k VerifyKind) String() string {
	switch k {
	case KindBadSignature:
		return "bad_signature"
	case KindUnknownKID:
		return "unknown_kid"
	case KindExpired:
		return "expired"
	default:
		return "malformed"
	}
}

// VerifyError es el error tipado de verificación.
type VerifyError struct {
	Kind VerifyKind
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token verify: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("token verify: %s", e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }

func verifyErr(kind VerifyKind, err error) *VerifyError {
	return &VerifyError{Kind: kind, Err: err}
}

// VerifiedToken son las claims ya validadas de un token.
type VerifiedToken struct {
	JTI      string
	Sub      string
	ClientID string // aud
	TenantID string
	Scope    string
	Roles    []string
	Type     string
	Iss      string
	Exp      time.Time
	Iat      time.Time
	Nonce    string
	Claims   map[string]any
}

// keyfunc resuelve la pubkey por el 'kid' del header vía el Key Lifecycle
// Manager. Sin kid no hay verificación: no existe camino de aceptación sin
// firma.
func (i *Issuer) keyfunc(ctx context.Context) jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, keys.ErrKIDNotFound
		}
		key, err := i.Keys.KeyByKID(ctx, kid)
		if err != nil {
			return nil, err
		}
		return keys.PublicKey(key)
	}
}

// VerifyAccess valida un access token: firma por kid, exp y type.
func (i *Issuer) VerifyAccess(ctx context.Context, raw string) (*VerifiedToken, error) {
	return i.verify(ctx, raw, TypeAccess)
}

// VerifyRefresh valida un refresh token.
func (i *Issuer) VerifyRefresh(ctx context.Context, raw string) (*VerifiedToken, error) {
	return i.verify(ctx, raw, TypeRefresh)
}

func (i *Issuer) verify(ctx context.Context, raw, wantType string) (*VerifiedToken, error) {
	tok, err := jwtv5.Parse(raw, i.keyfunc(ctx),
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid {
		return nil, verifyErr(KindBadSignature, nil)
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, verifyErr(KindMalformed, errors.New("claims_type"))
	}

	typ, _ := mc["type"].(string)
	if typ != wantType {
		return nil, verifyErr(KindMalformed, fmt.Errorf("type %q, want %q", typ, wantType))
	}

	v := &VerifiedToken{
		Type:   typ,
		Claims: map[string]any(mc),
	}
	v.JTI, _ = mc["jti"].(string)
	v.Sub, _ = mc["sub"].(string)
	v.ClientID, _ = mc["aud"].(string)
	v.TenantID, _ = mc["tid"].(string)
	v.Iss, _ = mc["iss"].(string)
	v.Nonce, _ = mc["nonce"].(string)
	if s, ok := mc["scope"].(string); ok {
		v.Scope = s
	} else if s, ok := mc["scp"].(string); ok {
		v.Scope = s
	}
	if raw, ok := mc["roles"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				v.Roles = append(v.Roles, s)
			}
		}
	}
	if f, ok := mc["exp"].(float64); ok {
		v.Exp = time.Unix(int64(f), 0)
	}
	if f, ok := mc["iat"].(float64); ok {
		v.Iat = time.Unix(int64(f), 0)
	}
	return v, nil
}

// classify mapea errores de jwt/v5 al enum de kinds.
func classify(err error) *VerifyError {
	switch {
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return verifyErr(KindExpired, err)
	case errors.Is(err, keys.ErrKIDNotFound):
		return verifyErr(KindUnknownKID, err)
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return verifyErr(KindBadSignature, err)
	default:
		return verifyErr(KindMalformed, err)
	}
}
