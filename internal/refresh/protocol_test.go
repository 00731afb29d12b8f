package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/store/core"
	"github.com/dropDatabas3/gatekeep/internal/token"
)

type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]*core.SigningKey
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: map[string]*core.SigningKey{}}
}

func (s *fakeKeyStore) GetKeyByStatus(_ context.Context, status core.KeyStatus) (*core.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Status == status {
			cp := *k
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *fakeKeyStore) GetKeyByKID(_ context.Context, kid string) (*core.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[kid]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *fakeKeyStore) ListPublishableKeys(_ context.Context) ([]core.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SigningKey
	for _, k := range s.keys {
		if k.Status != core.KeyExpired {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) InsertKey(_ context.Context, k *core.SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	s.keys[k.KID] = &cp
	return nil
}

func (s *fakeKeyStore) RotateKeysTx(_ context.Context, fresh *core.SigningKey) (*core.RotationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var cur, next *core.SigningKey
	for _, k := range s.keys {
		switch k.Status {
		case core.KeyCurrent:
			cur = k
		case core.KeyNext:
			next = k
		case core.KeyRetiring:
			k.Status = core.KeyExpired
		}
	}
	cp := *fresh
	switch {
	case cur == nil:
		cp.Status = core.KeyCurrent
		cp.PromotedAt = &now
	case next == nil:
		cp.Status = core.KeyNext
	default:
		cur.Status = core.KeyRetiring
		cur.RetiringAt = &now
		next.Status = core.KeyCurrent
		next.PromotedAt = &now
		cp.Status = core.KeyNext
	}
	s.keys[cp.KID] = &cp
	res := &core.RotationResult{}
	for _, k := range s.keys {
		switch k.Status {
		case core.KeyCurrent:
			res.Current = *k
		case core.KeyNext:
			n := *k
			res.Next = &n
		}
	}
	return res, nil
}

func (s *fakeKeyStore) ExpireKey(_ context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[kid]
	if !ok {
		return core.ErrNotFound
	}
	k.Status = core.KeyExpired
	return nil
}

func (s *fakeKeyStore) Ping(context.Context) error { return nil }

func newProtocol(t *testing.T) (*Protocol, *token.Issuer, cache.Client) {
	t.Helper()
	c, err := cache.New(cache.Config{Kind: "memory"})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	km := keys.NewManager(newFakeKeyStore(), time.Minute)
	iss := token.NewIssuer("https://auth.test", km, c, 15*time.Minute, time.Hour)
	return NewProtocol(iss, c), iss, c
}

func issuePair(t *testing.T, iss *token.Issuer) *token.Pair {
	t.Helper()
	pair, err := iss.IssueTokenPair(context.Background(), token.Subject{
		UserID:   "user-1",
		TenantID: "t1",
		ClientID: "cli",
		Roles:    []string{"member"},
		Scope:    "openid profile",
	})
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	return pair
}

func TestRotate_ChainOfThree(t *testing.T) {
	p, iss, _ := newProtocol(t)
	ctx := context.Background()

	pair := issuePair(t, iss)
	for i := 0; i < 3; i++ {
		next, err := p.Rotate(ctx, pair.RefreshToken, "cli")
		if err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
		if next.RefreshToken == pair.RefreshToken {
			t.Fatalf("rotation %d returned the same refresh token", i)
		}
		v, err := iss.VerifyAccess(ctx, next.AccessToken)
		if err != nil {
			t.Fatalf("rotation %d access verify: %v", i, err)
		}
		if v.Sub != "user-1" || v.TenantID != "t1" || v.Scope != "openid profile" {
			t.Fatalf("rotation %d lost subject context: %+v", i, v)
		}
		pair = next
	}
}

func TestRotate_ReuseDetected(t *testing.T) {
	p, iss, _ := newProtocol(t)
	ctx := context.Background()

	pair := issuePair(t, iss)
	if _, err := p.Rotate(ctx, pair.RefreshToken, "cli"); err != nil {
		t.Fatalf("first rotation: %v", err)
	}
	if _, err := p.Rotate(ctx, pair.RefreshToken, "cli"); err != ErrReused {
		t.Fatalf("second rotation: got %v, want ErrReused", err)
	}
	// Y sigue fallando aunque el set local se vacíe.
	p.seen.Flush()
	if _, err := p.Rotate(ctx, pair.RefreshToken, "cli"); err != ErrReused {
		t.Fatalf("third rotation after local flush: got %v, want ErrReused", err)
	}
}

func TestRotate_RejectsAccessToken(t *testing.T) {
	p, iss, _ := newProtocol(t)
	pair := issuePair(t, iss)
	if _, err := p.Rotate(context.Background(), pair.AccessToken, "cli"); err != ErrInvalidToken {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestRotate_WrongClient(t *testing.T) {
	p, iss, _ := newProtocol(t)
	pair := issuePair(t, iss)
	if _, err := p.Rotate(context.Background(), pair.RefreshToken, "other-cli"); err != ErrInvalidToken {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestRotate_MissingRecord(t *testing.T) {
	p, iss, c := newProtocol(t)
	ctx := context.Background()

	pair := issuePair(t, iss)
	if err := c.Delete(ctx, token.PrefixRefresh+pair.RefreshJTI); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if _, err := p.Rotate(ctx, pair.RefreshToken, "cli"); err != ErrNotActive {
		t.Fatalf("got %v, want ErrNotActive", err)
	}
}

func TestRevoke_KillsRefreshAndSession(t *testing.T) {
	p, iss, c := newProtocol(t)
	ctx := context.Background()

	pair := issuePair(t, iss)
	if err := c.Set(ctx, PrefixSession+"user-1", "sess", time.Hour); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	v, err := iss.VerifyRefresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if err := p.Revoke(ctx, v, "revoked"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if _, err := p.Rotate(ctx, pair.RefreshToken, "cli"); err == nil {
		t.Fatal("rotation succeeded after revocation")
	}
	if ok, _ := c.Exists(ctx, PrefixSession+"user-1"); ok {
		t.Fatal("session survived revocation")
	}
	revoked, err := iss.IsRevoked(ctx, v.JTI)
	if err != nil || !revoked {
		t.Fatalf("IsRevoked = %v, %v; want true, nil", revoked, err)
	}
}
