// Package admin contains DTOs for the administrative surface.
package admin

// KeyRef identifica una clave por kid en las respuestas de admin.
type KeyRef struct {
	KID string `json:"kid"`
}

// RotateKeysResponse es la respuesta de POST /admin/rotate-keys.
type RotateKeysResponse struct {
	Message string  `json:"message"`
	Current KeyRef  `json:"current"`
	Next    *KeyRef `json:"next"`
}

// RevokeKIDRequest es el body de POST /admin/revoke-kid.
type RevokeKIDRequest struct {
	KID string `json:"kid"`
}

// RevokeKIDResponse confirma la revocación masiva de una clave.
type RevokeKIDResponse struct {
	Message string `json:"message"`
	KID     string `json:"kid"`
}
