package helpers

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/gatekeep/internal/clients"
)

// ReadForm parsea el body application/x-www-form-urlencoded con límite de 1MB.
func ReadForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return r.ParseForm() == nil
}

// ClientCredentials extrae client_id/client_secret de la request y reporta
// por qué vía llegaron. Basic Auth gana sobre los campos del body.
func ClientCredentials(r *http.Request) (clientID, clientSecret, via string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret, clients.AuthMethodSecretBasic
	}
	id := r.PostFormValue("client_id")
	secret := r.PostFormValue("client_secret")
	if secret != "" {
		return id, secret, clients.AuthMethodSecretPost
	}
	return id, "", clients.AuthMethodNone
}

// BearerToken extrae el token del header Authorization. Vacío si no hay.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
