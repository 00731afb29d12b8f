package keys_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/store/core"
)

// fakeKeyStore is an in-memory SigningKeyStore with the same transition
// semantics as the Postgres adapter.
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
		switch k.Status {
		case core.KeyCurrent, core.KeyNext, core.KeyRetiring:
			cp := *k
			cp.PrivateKey = nil
			out = append(out, cp)
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
	next := f.byStatusLocked(core.KeyNext)

	if cur == nil {
		fresh := *freshNext
		fresh.Status = core.KeyCurrent
		fresh.PromotedAt = &now
		f.rows[fresh.KID] = &fresh
		return &core.RotationResult{Current: fresh, Next: next}, nil
	}
	if next == nil {
		fresh := *freshNext
		fresh.Status = core.KeyNext
		f.rows[fresh.KID] = &fresh
		return &core.RotationResult{Current: *cur, Next: &fresh}, nil
	}

	if old := f.byStatusLocked(core.KeyRetiring); old != nil {
		old.Status = core.KeyExpired
	}
	cur.Status = core.KeyRetiring
	cur.RetiringAt = &now
	next.Status = core.KeyCurrent
	next.PromotedAt = &now

	fresh := *freshNext
	fresh.Status = core.KeyNext
	f.rows[fresh.KID] = &fresh

	promoted := *next
	return &core.RotationResult{Current: promoted, Next: &fresh}, nil
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

func TestCurrentKey_BootstrapsEmptyStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeKeyStore()
	m := keys.NewManager(store, 30*time.Second)

	k, err := m.CurrentKey(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if k.Status != core.KeyCurrent {
		t.Fatalf("expected status current, got %s", k.Status)
	}
	if k.PromotedAt == nil {
		t.Fatalf("bootstrap key must have promoted_at")
	}

	jwks, err := m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("jwks: %v", err)
	}
	if len(jwks.Keys) != 1 {
		t.Fatalf("expected exactly 1 jwk after bootstrap, got %d", len(jwks.Keys))
	}
	if jwks.Keys[0].Kid != k.KID {
		t.Fatalf("jwks kid mismatch: %s vs %s", jwks.Keys[0].Kid, k.KID)
	}
}

func TestRotateKeys_FullCycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeKeyStore()
	m := keys.NewManager(store, 30*time.Second)

	// Seed Current=A, Next=B.
	a, err := m.CurrentKey(ctx)
	if err != nil {
		t.Fatalf("seed current: %v", err)
	}
	b, err := m.NextKey(ctx, true)
	if err != nil {
		t.Fatalf("seed next: %v", err)
	}

	res, err := m.RotateKeys(ctx)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if res.Current.KID != b.KID {
		t.Fatalf("expected current=%s after rotation, got %s", b.KID, res.Current.KID)
	}
	if res.Next == nil {
		t.Fatalf("expected a fresh next key")
	}
	c := res.Next
	if c.KID == a.KID || c.KID == b.KID {
		t.Fatalf("fresh next must be a new key")
	}

	// Previous current is retiring and still resolvable by kid.
	ra, err := m.KeyByKID(ctx, a.KID)
	if err != nil {
		t.Fatalf("resolve retiring kid: %v", err)
	}
	if ra.Status != core.KeyRetiring {
		t.Fatalf("expected %s retiring, got %s", a.KID, ra.Status)
	}

	// Availability: current key and JWKS are non-empty after rotation.
	cur, err := m.CurrentKey(ctx)
	if err != nil || cur == nil {
		t.Fatalf("current after rotation: %v", err)
	}
	jwks, err := m.PublicJWKS(ctx)
	if err != nil || len(jwks.Keys) == 0 {
		t.Fatalf("jwks after rotation: err=%v keys=%d", err, len(jwks.Keys))
	}
}

func TestRotateKeys_BootstrapPathWithoutNext(t *testing.T) {
	ctx := context.Background()
	store := newFakeKeyStore()
	m := keys.NewManager(store, 30*time.Second)

	if _, err := m.CurrentKey(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// First rotation with no Next: the fresh key fills the gap, current stays.
	before, _ := m.CurrentKey(ctx)
	res, err := m.RotateKeys(ctx)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Current.KID != before.KID {
		t.Fatalf("first rotation must keep current, got %s", res.Current.KID)
	}
	if res.Next == nil {
		t.Fatalf("first rotation must synthesize next")
	}
}

func TestPublicJWKS_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeKeyStore()
	m := keys.NewManager(store, 30*time.Second)

	if _, err := m.CurrentKey(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := m.NextKey(ctx, true); err != nil {
		t.Fatalf("next: %v", err)
	}

	kidsOf := func(j keys.JWKS) map[string]bool {
		out := map[string]bool{}
		for _, k := range j.Keys {
			out[k.Kid] = true
		}
		return out
	}

	j1, err := m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("jwks 1: %v", err)
	}
	j2, err := m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("jwks 2: %v", err)
	}

	k1, k2 := kidsOf(j1), kidsOf(j2)
	if len(k1) != len(k2) {
		t.Fatalf("kid sets differ: %v vs %v", k1, k2)
	}
	for kid := range k1 {
		if !k2[kid] {
			t.Fatalf("kid %s missing on second call", kid)
		}
	}
}

func TestKeyByKID_UnknownKid(t *testing.T) {
	ctx := context.Background()
	m := keys.NewManager(newFakeKeyStore(), 30*time.Second)

	if _, err := m.KeyByKID(ctx, "nope"); !errors.Is(err, keys.ErrKIDNotFound) {
		t.Fatalf("expected ErrKIDNotFound, got %v", err)
	}
}

func TestRevokeKID_KeyStopsResolving(t *testing.T) {
	ctx := context.Background()
	store := newFakeKeyStore()
	m := keys.NewManager(store, 30*time.Second)

	k, err := m.CurrentKey(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := m.RevokeKID(ctx, k.KID); err != nil {
		t.Fatalf("revoke kid: %v", err)
	}
	if _, err := m.KeyByKID(ctx, k.KID); !errors.Is(err, keys.ErrKIDNotFound) {
		t.Fatalf("expired kid still resolves: %v", err)
	}
	jwks, err := m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("jwks: %v", err)
	}
	for _, jk := range jwks.Keys {
		if jk.Kid == k.KID {
			t.Fatalf("expired kid still published")
		}
	}
	if err := m.RevokeKID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
