package core

import (
	"context"
	"time"
)

// KeyStatus es el estado de una clave dentro del ciclo de vida de rotación.
type KeyStatus string

const (
	KeyCurrent  KeyStatus = "current"
	KeyNext     KeyStatus = "next"
	KeyRetiring KeyStatus = "retiring"
	KeyExpired  KeyStatus = "expired"
)

// SigningKey es una fila de la tabla signing_keys.
// Invariante: a lo sumo una clave por status en {current, next, retiring}.
type SigningKey struct {
	KID        string
	Alg        string // "RS256"
	PublicKey  []byte // PKIX DER
	PrivateKey []byte // PKCS#1 DER; nil cuando se lista solo lo publicable
	Status     KeyStatus
	CreatedAt  time.Time
	PromotedAt *time.Time
	RetiringAt *time.Time
}

// RotationResult es el resultado de una rotación transaccional.
type RotationResult struct {
	Current SigningKey
	Next    *SigningKey
}

// SigningKeyStore es el contrato mínimo que el Key Lifecycle Manager
// necesita del almacenamiento relacional.
type SigningKeyStore interface {
	// GetKeyByStatus devuelve la clave con ese status. ErrNotFound si no hay.
	GetKeyByStatus(ctx context.Context, status KeyStatus) (*SigningKey, error)

	// GetKeyByKID es un point lookup por kid. ErrNotFound si no existe.
	GetKeyByKID(ctx context.Context, kid string) (*SigningKey, error)

	// ListPublishableKeys devuelve current+next+retiring sin material privado.
	ListPublishableKeys(ctx context.Context) ([]SigningKey, error)

	// InsertKey persiste una clave nueva.
	InsertKey(ctx context.Context, k *SigningKey) error

	// RotateKeysTx aplica la transición current→retiring, next→current e
	// inserta freshNext como next, todo dentro de una transacción.
	RotateKeysTx(ctx context.Context, freshNext *SigningKey) (*RotationResult, error)

	// ExpireKey marca la clave como expired fuera del ciclo normal de
	// rotación (revocación administrativa). ErrNotFound si el kid no existe.
	ExpireKey(ctx context.Context, kid string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error
}
