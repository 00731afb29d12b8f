package keys

import (
	"encoding/base64"
	"math/big"

	"github.com/dropDatabas3/gatekeep/internal/store/core"
)

// ----- JWKS (serialización) -----

// JWK es la mitad pública de una clave en formato RFC 7517 (RSA).
// El campo status es una extensión propia para que los verificadores
// externos distingan current/next/retiring.
type JWK struct {
	Kty    string `json:"kty"` // "RSA"
	N      string `json:"n"`   // base64url(modulus)
	E      string `json:"e"`   // base64url(exponent)
	Kid    string `json:"kid"`
	Use    string `json:"use"` // "sig"
	Alg    string `json:"alg"` // "RS256"
	Status string `json:"status"`
}

// JWKS es el documento /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// BuildJWKS construye el JWKS a partir de claves publicables.
// Claves con material público inválido se omiten en vez de romper el documento.
func BuildJWKS(keys []core.SigningKey) JWKS {
	out := JWKS{Keys: make([]JWK, 0, len(keys))}
	for i := range keys {
		k := &keys[i]
		pub, err := PublicKey(k)
		if err != nil {
			continue
		}
		out.Keys = append(out.Keys, JWK{
			Kty:    "RSA",
			N:      base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:      base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			Kid:    k.KID,
			Use:    "sig",
			Alg:    k.Alg,
			Status: string(k.Status),
		})
	}
	return out
}
