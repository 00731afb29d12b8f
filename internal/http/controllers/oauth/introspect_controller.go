package oauth

import (
	"net/http"

	"github.com/dropDatabas3/gatekeep/internal/clients"
	httperrors "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/oauth"
)

// IntrospectController maneja POST /introspection.
type IntrospectController struct {
	registry *clients.Registry
	service  *svc.IntrospectService
}

func NewIntrospectController(reg *clients.Registry, service *svc.IntrospectService) *IntrospectController {
	return &IntrospectController{registry: reg, service: service}
}

// Post exige client autenticado y responde el estado del token. Cualquier
// problema con el token en sí se colapsa en {active:false}.
func (c *IntrospectController) Post(w http.ResponseWriter, r *http.Request) {
	if !helpers.ReadForm(w, r) {
		httperrors.WriteOAuthError(w, httperrors.NewOAuth(httperrors.OAuthInvalidRequest, "malformed form body"))
		return
	}

	clientID, clientSecret, via := helpers.ClientCredentials(r)
	if _, err := c.registry.Authenticate(clientID, clientSecret, via); err != nil {
		httperrors.WriteOAuthError(w, httperrors.NewOAuth(httperrors.OAuthInvalidClient, "client authentication failed"))
		return
	}

	resp := c.service.Introspect(r.Context(), r.PostFormValue("token"))
	helpers.WriteNoStoreJSON(w, http.StatusOK, resp)
}
