package token_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/store/core"
	"github.com/dropDatabas3/gatekeep/internal/token"
)

// fakeKeyStore es el SigningKeyStore mínimo para armar un Manager real.
type fakeKeyStore struct {
	mu   sync.Mutex
	rows map[string]*core.SigningKey
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{rows: map[string]*core.SigningKey{}}
}

func (f *fakeKeyStore) byStatusLocked(status core.KeyStatus) *core.SigningKey {
	for _, k := range f.rows {
		if k.Status == status {
			return k
		}
	}
	return nil
}

func (f *fakeKeyStore) GetKeyByStatus(ctx context.Context, status core.KeyStatus) (*core.SigningKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k := f.byStatusLocked(status); k != nil {
		cp := *k
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

func (f *fakeKeyStore) GetKeyByKID(ctx context.Context, kid string) (*core.SigningKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.rows[kid]; ok {
		cp := *k
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

func (f *fakeKeyStore) ListPublishableKeys(ctx context.Context) ([]core.SigningKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.SigningKey
	for _, k := range f.rows {
		if k.Status != core.KeyExpired {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) InsertKey(ctx context.Context, k *core.SigningKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *k
	f.rows[k.KID] = &cp
	return nil
}

func (f *fakeKeyStore) RotateKeysTx(ctx context.Context, freshNext *core.SigningKey) (*core.RotationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	cur := f.byStatusLocked(core.KeyCurrent)
	if cur == nil {
		fresh := *freshNext
		fresh.Status = core.KeyCurrent
		fresh.PromotedAt = &now
		f.rows[fresh.KID] = &fresh
		return &core.RotationResult{Current: fresh}, nil
	}
	next := f.byStatusLocked(core.KeyNext)
	if next == nil {
		fresh := *freshNext
		fresh.Status = core.KeyNext
		f.rows[fresh.KID] = &fresh
		return &core.RotationResult{Current: *cur, Next: &fresh}, nil
	}
	cur.Status = core.KeyRetiring
	next.Status = core.KeyCurrent
	next.PromotedAt = &now
	fresh := *freshNext
	fresh.Status = core.KeyNext
	f.rows[fresh.KID] = &fresh
	return &core.RotationResult{Current: *next, Next: &fresh}, nil
}

func (f *fakeKeyStore) ExpireKey(ctx context.Context, kid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.rows[kid]
	if !ok {
		return core.ErrNotFound
	}
	k.Status = core.KeyExpired
	return nil
}

func (f *fakeKeyStore) Ping(ctx context.Context) error { return nil }

func newIssuer(t *testing.T) (*token.Issuer, *keys.Manager, cache.Client) {
	t.Helper()
	km := keys.NewManager(newFakeKeyStore(), 30*time.Second)
	c := cache.NewMemory("")
	iss := token.NewIssuer("https://auth.test", km, c, 15*time.Minute, time.Hour)
	return iss, km, c
}

func subject() token.Subject {
	return token.Subject{
		UserID:   "user-1",
		TenantID: "acme",
		ClientID: "web-app",
		Roles:    []string{"member"},
		Scope:    "openid profile",
	}
}

func TestSignAndVerifyAccess(t *testing.T) {
	ctx := context.Background()
	iss, _, _ := newIssuer(t)

	at, err := iss.SignAccess(ctx, subject())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if at.JTI == "" || at.KID == "" {
		t.Fatalf("missing jti/kid: %+v", at)
	}

	v, err := iss.VerifyAccess(ctx, at.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.Sub != "user-1" || v.TenantID != "acme" || v.ClientID != "web-app" {
		t.Fatalf("claims mismatch: %+v", v)
	}
	if v.Scope != "openid profile" {
		t.Fatalf("scope mismatch: %q", v.Scope)
	}
	if v.JTI != at.JTI {
		t.Fatalf("jti mismatch")
	}
}

func TestVerify_TypeDiscriminator(t *testing.T) {
	ctx := context.Background()
	iss, _, _ := newIssuer(t)

	rt, err := iss.SignRefresh(ctx, subject())
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}

	// A refresh token must not pass access verification.
	_, err = iss.VerifyAccess(ctx, rt.Token)
	var ve *token.VerifyError
	if !asVerifyError(err, &ve) || ve.Kind != token.KindMalformed {
		t.Fatalf("expected malformed (wrong type), got %v", err)
	}

	if _, err := iss.VerifyRefresh(ctx, rt.Token); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	ctx := context.Background()
	iss, _, _ := newIssuer(t)
	iss.AccessTTL = -time.Minute

	at, err := iss.SignAccess(ctx, subject())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = iss.VerifyAccess(ctx, at.Token)
	var ve *token.VerifyError
	if !asVerifyError(err, &ve) || ve.Kind != token.KindExpired {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestVerify_KidTamperFails(t *testing.T) {
	ctx := context.Background()
	iss, km, _ := newIssuer(t)

	at, err := iss.SignAccess(ctx, subject())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Make a second valid kid exist.
	next, err := km.NextKey(ctx, true)
	if err != nil {
		t.Fatalf("next key: %v", err)
	}

	// Swap the header kid for the other valid kid, keep payload+signature.
	parts := strings.Split(at.Token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var hdr map[string]any
	if err := json.Unmarshal(hb, &hdr); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	hdr["kid"] = next.KID
	nb, _ := json.Marshal(hdr)
	parts[0] = base64.RawURLEncoding.EncodeToString(nb)
	tampered := strings.Join(parts, ".")

	_, err = iss.VerifyAccess(ctx, tampered)
	var ve *token.VerifyError
	if !asVerifyError(err, &ve) || ve.Kind != token.KindBadSignature {
		t.Fatalf("expected bad_signature for tampered kid, got %v", err)
	}
}

func TestVerify_UnknownKidAndGarbage(t *testing.T) {
	ctx := context.Background()
	iss, _, _ := newIssuer(t)

	at, err := iss.SignAccess(ctx, subject())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(at.Token, ".")
	var hdr map[string]any
	hb, _ := base64.RawURLEncoding.DecodeString(parts[0])
	_ = json.Unmarshal(hb, &hdr)
	hdr["kid"] = "no-such-kid"
	nb, _ := json.Marshal(hdr)
	parts[0] = base64.RawURLEncoding.EncodeToString(nb)

	_, err = iss.VerifyAccess(ctx, strings.Join(parts, "."))
	var ve *token.VerifyError
	if !asVerifyError(err, &ve) || ve.Kind != token.KindUnknownKID {
		t.Fatalf("expected unknown_kid, got %v", err)
	}

	_, err = iss.VerifyAccess(ctx, "not-a-jwt")
	if !asVerifyError(err, &ve) || ve.Kind != token.KindMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestIssueTokenPair_PersistsRefreshRecord(t *testing.T) {
	ctx := context.Background()
	iss, _, c := newIssuer(t)

	pair, err := iss.IssueTokenPair(ctx, subject())
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty pair")
	}

	raw, err := c.Get(ctx, token.PrefixRefresh+pair.RefreshJTI)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	var rec token.RefreshRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("bad record: %v", err)
	}
	if rec.Sub != "user-1" || rec.ClientID != "web-app" || rec.TenantID != "acme" {
		t.Fatalf("record mismatch: %+v", rec)
	}
}

func TestVerify_TokenFromRetiringKeyStillValid(t *testing.T) {
	ctx := context.Background()
	iss, km, _ := newIssuer(t)

	at, err := iss.SignAccess(ctx, subject())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Seed next and rotate: the signing key goes retiring.
	if _, err := km.NextKey(ctx, true); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := km.RotateKeys(ctx); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := iss.VerifyAccess(ctx, at.Token); err != nil {
		t.Fatalf("token signed before rotation must verify: %v", err)
	}
}

func asVerifyError(err error, target **token.VerifyError) bool {
	if err == nil {
		return false
	}
	ve, ok := err.(*token.VerifyError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
