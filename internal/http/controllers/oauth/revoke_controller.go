package oauth

import (
	"net/http"

	"github.com/dropDatabas3/gatekeep/internal/clients"
	httperrors "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/oauth"
)

// RevokeController maneja POST /revocation.
type RevokeController struct {
	registry *clients.Registry
	service  *svc.RevokeService
}

func NewRevokeController(reg *clients.Registry, service *svc.RevokeService) *RevokeController {
	return &RevokeController{registry: reg, service: service}
}

// Post revoca el token presentado. Siempre 200 con body vacío, incluso para
// tokens que no parsean.
func (c *RevokeController) Post(w http.ResponseWriter, r *http.Request) {
	if !helpers.ReadForm(w, r) {
		httperrors.WriteOAuthError(w, httperrors.NewOAuth(httperrors.OAuthInvalidRequest, "malformed form body"))
		return
	}

	clientID, clientSecret, via := helpers.ClientCredentials(r)
	if _, err := c.registry.Authenticate(clientID, clientSecret, via); err != nil {
		httperrors.WriteOAuthError(w, httperrors.NewOAuth(httperrors.OAuthInvalidClient, "client authentication failed"))
		return
	}

	c.service.Revoke(r.Context(), r.PostFormValue("token"))
	helpers.WriteNoStoreJSON(w, http.StatusOK, struct{}{})
}
