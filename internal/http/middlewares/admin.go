package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/security/tokens"
)

// RequireAdminKey exige la credencial administrativa en X-Admin-API-Key.
// Es una credencial separada de las de clients OAuth: las rutas /admin no
// aceptan bearer tokens.
func RequireAdminKey(apiKey string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-API-Key")
			if apiKey == "" || !tokens.ConstantTimeEquals(got, apiKey) {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("admin credential required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
