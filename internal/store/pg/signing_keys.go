package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/store/core"
	"github.com/jackc/pgx/v5"
)

const keyColumns = `kid, alg, public_key, private_key, status, created_at, promoted_at, retiring_at`

func scanKey(row pgx.Row) (*core.SigningKey, error) {
	var k core.SigningKey
	if err := row.Scan(&k.KID, &k.Alg, &k.PublicKey, &k.PrivateKey, &k.Status, &k.CreatedAt, &k.PromotedAt, &k.RetiringAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

// GetKeyByStatus devuelve la clave con ese status.
func (s *Store) GetKeyByStatus(ctx context.Context, status core.KeyStatus) (*core.SigningKey, error) {
	const q = `
SELECT ` + keyColumns + `
FROM signing_keys
WHERE status = $1
LIMIT 1`
	return scanKey(s.pool.QueryRow(ctx, q, status))
}

// GetKeyByKID es un point lookup por kid.
func (s *Store) GetKeyByKID(ctx context.Context, kid string) (*core.SigningKey, error) {
	const q = `
SELECT ` + keyColumns + `
FROM signing_keys
WHERE kid = $1`
	return scanKey(s.pool.QueryRow(ctx, q, kid))
}

// ListPublishableKeys: claves publicables (current + next + retiring), sin
// material privado.
func (s *Store) ListPublishableKeys(ctx context.Context) ([]core.SigningKey, error) {
	const q = `
SELECT kid, alg, public_key, NULL::bytea AS private_key, status, created_at, promoted_at, retiring_at
FROM signing_keys
WHERE status IN ('current','next','retiring')
ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.SigningKey
	for rows.Next() {
		var k core.SigningKey
		if err := rows.Scan(&k.KID, &k.Alg, &k.PublicKey, &k.PrivateKey, &k.Status, &k.CreatedAt, &k.PromotedAt, &k.RetiringAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// InsertKey persiste una clave nueva.
func (s *Store) InsertKey(ctx context.Context, k *core.SigningKey) error {
	const q = `
INSERT INTO signing_keys (kid, alg, public_key, private_key, status, created_at, promoted_at, retiring_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), $7, $8)`
	_, err := s.pool.Exec(ctx, q, k.KID, k.Alg, k.PublicKey, k.PrivateKey, k.Status, nilIfZero(k.CreatedAt), k.PromotedAt, k.RetiringAt)
	return err
}

// RotateKeysTx aplica la rotación en una sola transacción:
//
//	retiring → expired, current → retiring, next → current, freshNext entra como next.
//
// Si falta current o next, freshNext cubre el hueco y la transición termina
// ahí (camino de bootstrap / primera rotación).
func (s *Store) RotateKeysTx(ctx context.Context, freshNext *core.SigningKey) (*core.RotationResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()

	cur, err := getByStatusTx(ctx, tx, core.KeyCurrent)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	next, err := getByStatusTx(ctx, tx, core.KeyNext)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	// Bootstrap: sin current, la clave fresca se promueve directo.
	if cur == nil {
		fresh := *freshNext
		fresh.Status = core.KeyCurrent
		fresh.PromotedAt = &now
		if err := insertTx(ctx, tx, &fresh); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &core.RotationResult{Current: fresh, Next: next}, nil
	}

	// Primera rotación: hay current pero falta next; la fresca lo cubre.
	if next == nil {
		fresh := *freshNext
		fresh.Status = core.KeyNext
		if err := insertTx(ctx, tx, &fresh); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return &core.RotationResult{Current: *cur, Next: &fresh}, nil
	}

	// Rotación completa. El índice parcial exige mover los status en orden:
	// retiring viejo sale primero, después current baja y next sube.
	if _, err := tx.Exec(ctx, `UPDATE signing_keys SET status='expired' WHERE status='retiring'`); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE signing_keys SET status='retiring', retiring_at=$2 WHERE kid=$1 AND status='current'`, cur.KID, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE signing_keys SET status='current', promoted_at=$2 WHERE kid=$1 AND status='next'`, next.KID, now); err != nil {
		return nil, err
	}

	fresh := *freshNext
	fresh.Status = core.KeyNext
	if err := insertTx(ctx, tx, &fresh); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	promoted := *next
	promoted.Status = core.KeyCurrent
	promoted.PromotedAt = &now
	return &core.RotationResult{Current: promoted, Next: &fresh}, nil
}

// ExpireKey marca una clave como expired fuera del ciclo de rotación.
func (s *Store) ExpireKey(ctx context.Context, kid string) error {
	const q = `
UPDATE signing_keys
SET status = 'expired', retiring_at = COALESCE(retiring_at, now())
WHERE kid = $1`
	tag, err := s.pool.Exec(ctx, q, kid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func getByStatusTx(ctx context.Context, tx pgx.Tx, status core.KeyStatus) (*core.SigningKey, error) {
	const q = `
SELECT ` + keyColumns + `
FROM signing_keys
WHERE status = $1
LIMIT 1
FOR UPDATE`
	return scanKey(tx.QueryRow(ctx, q, status))
}

func insertTx(ctx context.Context, tx pgx.Tx, k *core.SigningKey) error {
	const q = `
INSERT INTO signing_keys (kid, alg, public_key, private_key, status, created_at, promoted_at, retiring_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), $7, $8)`
	_, err := tx.Exec(ctx, q, k.KID, k.Alg, k.PublicKey, k.PrivateKey, k.Status, nilIfZero(k.CreatedAt), k.PromotedAt, k.RetiringAt)
	return err
}

func nilIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
