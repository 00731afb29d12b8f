package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/store/core"
	"github.com/google/uuid"
)

const (
	// Alg es el único algoritmo de firma soportado.
	Alg = "RS256"

	rsaBits = 2048
)

// GenerateSigningKey genera un par RSA-2048 y lo serializa como fila de
// signing_keys. CPU-bound: solo se llama en bootstrap/rotación, nunca en el
// hot path de requests.
func GenerateSigningKey(status core.KeyStatus) (*core.SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, fmt.Errorf("keys: generate rsa: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keys: marshal public: %w", err)
	}

	now := time.Now().UTC()
	k := &core.SigningKey{
		KID:        uuid.NewString(),
		Alg:        Alg,
		PublicKey:  pubDER,
		PrivateKey: x509.MarshalPKCS1PrivateKey(priv),
		Status:     status,
		CreatedAt:  now,
	}
	if status == core.KeyCurrent {
		k.PromotedAt = &now
	}
	return k, nil
}

// PrivateKey deserializa el material privado (PKCS#1 DER).
func PrivateKey(k *core.SigningKey) (*rsa.PrivateKey, error) {
	if len(k.PrivateKey) == 0 {
		return nil, fmt.Errorf("keys: kid %s has no private material", k.KID)
	}
	priv, err := x509.ParsePKCS1PrivateKey(k.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("keys: parse private for kid %s: %w", k.KID, err)
	}
	return priv, nil
}

// PublicKey deserializa el material público (PKIX DER).
func PublicKey(k *core.SigningKey) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(k.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keys: parse public for kid %s: %w", k.KID, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keys: kid %s is not an RSA key", k.KID)
	}
	return rsaPub, nil
}
