package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/gatekeep/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/oauth"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
)

// TokenController maneja POST /token.
type TokenController struct {
	service *svc.TokenService
}

func NewTokenController(service *svc.TokenService) *TokenController {
	return &TokenController{service: service}
}

// Post despacha el grant pedido y responde el token pair.
func (c *TokenController) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Post"))

	if !helpers.ReadForm(w, r) {
		httperrors.WriteOAuthError(w, httperrors.NewOAuth(httperrors.OAuthInvalidRequest, "malformed form body"))
		return
	}

	clientID, clientSecret, via := helpers.ClientCredentials(r)
	req := dto.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AuthVia:      via,
	}

	resp, err := c.service.Exchange(ctx, req)
	if err != nil {
		log.Debug("token exchange rejected", logger.ClientID(clientID), logger.GrantType(req.GrantType), logger.Err(err))
		httperrors.WriteOAuthError(w, err)
		return
	}

	helpers.WriteNoStoreJSON(w, http.StatusOK, resp)
}
