package keys

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/metrics"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
	"github.com/dropDatabas3/gatekeep/internal/store/core"
)

var (
	ErrKIDNotFound = errors.New("kid_not_found")
)

// Manager es el dueño del ciclo de vida de claves de firma: rotación,
// bootstrap, JWKS y un cache de lectura con TTL sobre el store.
//
// El cache nunca es autoritativo: un miss o un TTL vencido siempre vuelve
// al store, y un store caído es un error para el caller (sin fallback a
// material posiblemente retirado).
type Manager struct {
	store core.SigningKeyStore

	mu         sync.RWMutex
	current    *core.SigningKey
	next       *core.SigningKey
	byKID      map[string]*core.SigningKey // publicables, sin material privado garantizado
	cacheUntil time.Time
	cacheTTL   time.Duration
}

// NewManager crea el manager con el TTL de cache dado (default 30s).
func NewManager(store core.SigningKeyStore, cacheTTL time.Duration) *Manager {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Manager{
		store:    store,
		byKID:    make(map[string]*core.SigningKey),
		cacheTTL: cacheTTL,
	}
}

// Invalidate descarta el cache; la próxima lectura recarga del store.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cacheUntil = time.Time{}
	m.mu.Unlock()
}

// CurrentKey devuelve la clave current (cacheada). Si no existe ninguna en
// el store, hace bootstrap: genera un par y lo persiste como current.
func (m *Manager) CurrentKey(ctx context.Context) (*core.SigningKey, error) {
	m.mu.RLock()
	if time.Now().Before(m.cacheUntil) && m.current != nil {
		k := m.current
		m.mu.RUnlock()
		return k, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Now().Before(m.cacheUntil) && m.current != nil {
		return m.current, nil
	}

	if err := m.reloadLocked(ctx); err != nil {
		return nil, err
	}
	if m.current != nil {
		return m.current, nil
	}

	// Bootstrap: store vacío. Sin esto el server no puede emitir ningún token.
	fresh, err := GenerateSigningKey(core.KeyCurrent)
	if err != nil {
		return nil, err
	}
	res, err := m.store.RotateKeysTx(ctx, fresh)
	if err != nil {
		// Otro proceso pudo habernos ganado el bootstrap; releer antes de fallar.
		if rerr := m.reloadLocked(ctx); rerr == nil && m.current != nil {
			return m.current, nil
		}
		return nil, err
	}
	logger.L().Info("signing key bootstrapped", logger.Component("keys"), logger.KID(res.Current.KID))
	m.applyLocked(res)
	return m.current, nil
}

// NextKey devuelve la clave next (cacheada). Si no existe y generateIfMissing,
// la genera y persiste.
func (m *Manager) NextKey(ctx context.Context, generateIfMissing bool) (*core.SigningKey, error) {
	m.mu.RLock()
	if time.Now().Before(m.cacheUntil) && m.next != nil {
		k := m.next
		m.mu.RUnlock()
		return k, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !time.Now().Before(m.cacheUntil) || m.next == nil {
		if err := m.reloadLocked(ctx); err != nil {
			return nil, err
		}
	}
	if m.next != nil || !generateIfMissing {
		return m.next, nil
	}

	fresh, err := GenerateSigningKey(core.KeyNext)
	if err != nil {
		return nil, err
	}
	if err := m.store.InsertKey(ctx, fresh); err != nil {
		return nil, err
	}
	m.next = fresh
	m.byKID[fresh.KID] = fresh
	return m.next, nil
}

// KeyByKID resuelve una clave por kid, cache-first con fallback al store.
// Se usa para verificar tokens firmados por una clave que puede ya no ser
// current (retiring).
func (m *Manager) KeyByKID(ctx context.Context, kid string) (*core.SigningKey, error) {
	m.mu.RLock()
	if time.Now().Before(m.cacheUntil) {
		if k, ok := m.byKID[kid]; ok {
			m.mu.RUnlock()
			return k, nil
		}
	}
	m.mu.RUnlock()

	k, err := m.store.GetKeyByKID(ctx, kid)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrKIDNotFound
		}
		return nil, err
	}
	// Una clave expirada no verifica nada, ni siquiera por lookup directo.
	if k.Status == core.KeyExpired {
		return nil, ErrKIDNotFound
	}
	return k, nil
}

// RevokeKID expira una clave por kid (revocación administrativa). Todos los
// tokens firmados con ella dejan de verificar en cuanto el cache se renueva.
func (m *Manager) RevokeKID(ctx context.Context, kid string) error {
	if err := m.store.ExpireKey(ctx, kid); err != nil {
		return err
	}
	m.Invalidate()
	logger.L().Info("signing key revoked", logger.Component("keys"), logger.KID(kid))
	return nil
}

// RotateKeys ejecuta la transición de rotación. El par nuevo se genera
// ANTES de la transacción (generación RSA es CPU-bound) y el cache solo se
// actualiza después del commit.
func (m *Manager) RotateKeys(ctx context.Context) (*core.RotationResult, error) {
	fresh, err := GenerateSigningKey(core.KeyNext)
	if err != nil {
		return nil, err
	}

	res, err := m.store.RotateKeysTx(ctx, fresh)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.applyLocked(res)
	m.mu.Unlock()

	metrics.KeyRotations.Inc()
	log := logger.L().With(logger.Component("keys"), logger.Op("RotateKeys"))
	if res.Next != nil {
		log.Info("keys rotated", logger.KID(res.Current.KID), logger.String("next_kid", res.Next.KID))
	} else {
		log.Info("keys rotated", logger.KID(res.Current.KID))
	}
	return res, nil
}

// PublicJWKS fuerza una recarga del store y devuelve el JWKS de todas las
// claves publicables (current, next, retiring).
func (m *Manager) PublicJWKS(ctx context.Context) (JWKS, error) {
	pub, err := m.store.ListPublishableKeys(ctx)
	if err != nil {
		return JWKS{}, err
	}
	return BuildJWKS(pub), nil
}

// reloadLocked recarga current/next/publicables desde el store.
// Requiere m.mu tomado en escritura.
func (m *Manager) reloadLocked(ctx context.Context) error {
	cur, err := m.store.GetKeyByStatus(ctx, core.KeyCurrent)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	next, err := m.store.GetKeyByStatus(ctx, core.KeyNext)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	pub, err := m.store.ListPublishableKeys(ctx)
	if err != nil {
		return err
	}

	m.current = cur
	m.next = next
	m.byKID = make(map[string]*core.SigningKey, len(pub)+2)
	for i := range pub {
		k := pub[i]
		m.byKID[k.KID] = &k
	}
	// current/next con material privado pisan la versión solo-pública.
	if cur != nil {
		m.byKID[cur.KID] = cur
	}
	if next != nil {
		m.byKID[next.KID] = next
	}
	m.cacheUntil = time.Now().Add(m.cacheTTL)
	return nil
}

// applyLocked actualiza el cache con el resultado de una rotación ya
// commiteada. Requiere m.mu tomado en escritura.
func (m *Manager) applyLocked(res *core.RotationResult) {
	cur := res.Current
	m.current = &cur
	if m.byKID == nil {
		m.byKID = make(map[string]*core.SigningKey)
	}
	// La current anterior queda retiring y sigue resoluble por kid.
	for kid, k := range m.byKID {
		if k.Status == core.KeyCurrent && kid != cur.KID {
			retired := *k
			retired.Status = core.KeyRetiring
			m.byKID[kid] = &retired
		}
	}
	m.byKID[cur.KID] = &cur
	if res.Next != nil {
		next := *res.Next
		m.next = &next
		m.byKID[next.KID] = &next
	} else {
		m.next = nil
	}
	m.cacheUntil = time.Now().Add(m.cacheTTL)
}
