// Package router arma el árbol de rutas del servidor.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/admin"
	healthctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/oidc"
	mw "github.com/dropDatabas3/gatekeep/internal/http/middlewares"
)

// Deps son las dependencias del router: controllers ya construidos más la
// credencial administrativa y el registry de métricas.
type Deps struct {
	Authorize  *oauthctrl.AuthorizeController
	Token      *oauthctrl.TokenController
	Introspect *oauthctrl.IntrospectController
	Revoke     *oauthctrl.RevokeController

	JWKS      *oidcctrl.JWKSController
	Discovery *oidcctrl.DiscoveryController
	UserInfo  *oidcctrl.UserInfoController

	AdminKeys *adminctrl.KeysController
	Health    *healthctrl.Controller

	AdminAPIKey string
	Metrics     prometheus.Gatherer
}

// New arma el router con los middlewares transversales aplicados.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestLogger())

	// Superficie de protocolo: todo lo que transporta tokens va no-store.
	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())
		r.Get("/authorize", d.Authorize.Get)
		r.Post("/token", d.Token.Post)
		r.Post("/introspection", d.Introspect.Post)
		r.Post("/revocation", d.Revoke.Post)
		r.Get("/userinfo", d.UserInfo.Get)
		r.Get("/.well-known/jwks.json", d.JWKS.Get)
	})

	// El documento de discovery sí es cacheable.
	r.With(mw.WithCacheControl("public, max-age=300")).
		Get("/.well-known/openid-configuration", d.Discovery.Get)

	// Superficie admin: credencial separada, nunca bearer tokens.
	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireAdminKey(d.AdminAPIKey))
		r.Post("/rotate-keys", d.AdminKeys.RotateKeys)
		r.Post("/revoke-kid", d.AdminKeys.RevokeKID)
	})

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))

	return r
}
