package errors

import (
	"net/http"
)

// Vocabulario de error estándar OAuth2 (RFC 6749 §5.2). Los endpoints de
// protocolo responden con este formato, no con AppError: los clientes OAuth
// parsean el campo `error`, no códigos propios.
const (
	OAuthInvalidRequest          = "invalid_request"
	OAuthInvalidClient           = "invalid_client"
	OAuthInvalidGrant            = "invalid_grant"
	OAuthUnauthorizedClient      = "unauthorized_client"
	OAuthUnsupportedGrantType    = "unsupported_grant_type"
	OAuthUnsupportedResponseType = "unsupported_response_type"
	OAuthInvalidScope            = "invalid_scope"
	OAuthAccessDenied            = "access_denied"
	OAuthServerError             = "server_error"
)

// OAuthError es un error de protocolo con su vocabulario RFC.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// NewOAuth construye un OAuthError con el status HTTP que le corresponde
// por convención: invalid_client → 401, server_error → 500, resto → 400.
func NewOAuth(code, description string) *OAuthError {
	status := http.StatusBadRequest
	switch code {
	case OAuthInvalidClient:
		status = http.StatusUnauthorized
	case OAuthServerError:
		status = http.StatusInternalServerError
	}
	return &OAuthError{Code: code, Description: description, Status: status}
}

// AsOAuth normaliza cualquier error a OAuthError. Errores no-protocolo se
// colapsan en server_error sin filtrar detalle interno.
func AsOAuth(err error) *OAuthError {
	if oe, ok := err.(*OAuthError); ok {
		return oe
	}
	return &OAuthError{Code: OAuthServerError, Status: http.StatusInternalServerError}
}
