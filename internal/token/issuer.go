package token

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/metrics"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminators del claim "type".
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Cache key prefixes
const (
	PrefixRefresh = "refresh:"
	PrefixRevoked = "revoked:"
)

// Subject es la identidad a la que se le emiten tokens.
type Subject struct {
	UserID   string
	TenantID string
	ClientID string
	Roles    []string
	Scope    string
}

// Signed es el resultado de firmar un token individual.
type Signed struct {
	Token     string
	JTI       string
	KID       string
	ExpiresIn int64 // segundos
}

// Pair es el resultado de IssueTokenPair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
	ExpiresIn    int64 // del access token, segundos
	Scope        string
}

// RefreshRecord es el registro cache-backed de un refresh token vivo,
// keyed por "refresh:"+jti.
type RefreshRecord struct {
	Sub      string   `json:"sub"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles,omitempty"`
	Scope    string   `json:"scope"`
	ClientID string   `json:"client_id"`
}

// RevocationEntry marca un jti revocado, keyed por "revoked:"+jti.
type RevocationEntry struct {
	TokenType string `json:"token_type"` // access | refresh
	Reason    string `json:"reason"`
}

// Issuer firma tokens con la clave current del Key Lifecycle Manager y
// persiste los refresh records en cache. Stateless más allá de eso.
type Issuer struct {
	Iss        string
	Keys       *keys.Manager
	Cache      cache.Client
	AccessTTL  time.Duration // default 15m
	RefreshTTL time.Duration // default 720h
}

func NewIssuer(iss string, km *keys.Manager, c cache.Client, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 720 * time.Hour
	}
	return &Issuer{
		Iss:        iss,
		Keys:       km,
		Cache:      c,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

// signWithCurrent firma claims arbitrarios con la clave current, setea
// header kid/typ y devuelve el JWT firmado.
func (i *Issuer) signWithCurrent(ctx context.Context, claims jwtv5.MapClaims) (token, kid string, err error) {
	key, err := i.Keys.CurrentKey(ctx)
	if err != nil {
		return "", "", err
	}
	priv, err := keys.PrivateKey(key)
	if err != nil {
		return "", "", err
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = key.KID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", "", err
	}
	return signed, key.KID, nil
}

func (i *Issuer) baseClaims(sub Subject, ttl time.Duration, typ string) (jwtv5.MapClaims, string, int64) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := jwtv5.MapClaims{
		"iss":  i.Iss,
		"sub":  sub.UserID,
		"aud":  sub.ClientID,
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  exp.Unix(),
		"jti":  jti,
		"type": typ,
		"tid":  sub.TenantID,
	}
	if len(sub.Roles) > 0 {
		claims["roles"] = sub.Roles
	}
	if sub.Scope != "" {
		claims["scope"] = sub.Scope
		claims["scp"] = sub.Scope
	}
	return claims, jti, int64(ttl.Seconds())
}

// SignAccess emite un access token.
func (i *Issuer) SignAccess(ctx context.Context, sub Subject) (*Signed, error) {
	claims, jti, expSec := i.baseClaims(sub, i.AccessTTL, TypeAccess)
	signed, kid, err := i.signWithCurrent(ctx, claims)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues(TypeAccess).Inc()
	return &Signed{Token: signed, JTI: jti, KID: kid, ExpiresIn: expSec}, nil
}

// SignRefresh emite un refresh token (sin persistir el record; ver IssueTokenPair).
func (i *Issuer) SignRefresh(ctx context.Context, sub Subject) (*Signed, error) {
	claims, jti, expSec := i.baseClaims(sub, i.RefreshTTL, TypeRefresh)
	signed, kid, err := i.signWithCurrent(ctx, claims)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues(TypeRefresh).Inc()
	return &Signed{Token: signed, JTI: jti, KID: kid, ExpiresIn: expSec}, nil
}

// IssueTokenPair emite access+refresh y persiste el RefreshRecord del
// refresh jti con TTL = vida del refresh.
func (i *Issuer) IssueTokenPair(ctx context.Context, sub Subject) (*Pair, error) {
	at, err := i.SignAccess(ctx, sub)
	if err != nil {
		return nil, err
	}
	rt, err := i.SignRefresh(ctx, sub)
	if err != nil {
		return nil, err
	}

	rec := RefreshRecord{
		Sub:      sub.UserID,
		TenantID: sub.TenantID,
		Roles:    sub.Roles,
		Scope:    sub.Scope,
		ClientID: sub.ClientID,
	}
	b, _ := json.Marshal(rec)
	if err := i.Cache.Set(ctx, PrefixRefresh+rt.JTI, string(b), i.RefreshTTL); err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  at.Token,
		RefreshToken: rt.Token,
		AccessJTI:    at.JTI,
		RefreshJTI:   rt.JTI,
		ExpiresIn:    at.ExpiresIn,
		Scope:        sub.Scope,
	}, nil
}

// SignIDToken emite un ID Token OIDC. extra lleva claims de perfil
// (name, email, ...) acotados por los scopes concedidos.
func (i *Issuer) SignIDToken(ctx context.Context, sub Subject, nonce string, authTime time.Time, extra map[string]any) (*Signed, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)
	jti := uuid.NewString()

	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       sub.UserID,
		"aud":       sub.ClientID,
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       jti,
		"tid":       sub.TenantID,
		"auth_time": authTime.UTC().Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	for k, v := range extra {
		claims[k] = v
	}

	signed, kid, err := i.signWithCurrent(ctx, claims)
	if err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues("id").Inc()
	return &Signed{Token: signed, JTI: jti, KID: kid, ExpiresIn: int64(i.AccessTTL.Seconds())}, nil
}

// Revoke agrega una RevocationEntry para el jti con el TTL remanente dado.
func (i *Issuer) Revoke(ctx context.Context, jti, tokenType, reason string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil // ya expirado, nada que marcar
	}
	b, _ := json.Marshal(RevocationEntry{TokenType: tokenType, Reason: reason})
	return i.Cache.Set(ctx, PrefixRevoked+jti, string(b), remaining)
}

// IsRevoked consulta la revocation list por jti.
func (i *Issuer) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	ok, err := i.Cache.Exists(ctx, PrefixRevoked+jti)
	if err != nil {
		return false, err
	}
	return ok, nil
}
