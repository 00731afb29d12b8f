// Package oauth contiene los controllers de los endpoints de protocolo.
package oauth

import (
	"net/http"
	"net/url"

	dto "github.com/dropDatabas3/gatekeep/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/oauth"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
)

// AuthorizeController maneja GET /authorize.
type AuthorizeController struct {
	service *svc.AuthorizeService
}

func NewAuthorizeController(service *svc.AuthorizeService) *AuthorizeController {
	return &AuthorizeController{service: service}
}

// Get valida la request y redirige al redirect_uri con code y state.
// Los errores se devuelven como JSON: nunca redirigimos a un redirect_uri
// que no pasó la validación.
func (c *AuthorizeController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Get"))

	q := r.URL.Query()
	req := dto.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	res, err := c.service.Authorize(ctx, req, helpers.BearerToken(r))
	if err != nil {
		log.Debug("authorize rejected", logger.ClientID(req.ClientID), logger.Err(err))
		httperrors.WriteOAuthError(w, err)
		return
	}

	loc, _ := url.Parse(res.RedirectURI)
	params := loc.Query()
	params.Set("code", res.Code)
	if res.State != "" {
		params.Set("state", res.State)
	}
	loc.RawQuery = params.Encode()

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	http.Redirect(w, r, loc.String(), http.StatusFound)
}
