// Package oidc contiene los controllers para la superficie OIDC.
package oidc

import (
	"net/http"

	httperrors "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/oidc"
	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
)

// JWKSController maneja GET /.well-known/jwks.json.
type JWKSController struct {
	keys *keys.Manager
}

func NewJWKSController(km *keys.Manager) *JWKSController {
	return &JWKSController{keys: km}
}

// Get publica todas las claves no expiradas (current, next, retiring).
func (c *JWKSController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("JWKSController.Get"))

	jwks, err := c.keys.PublicJWKS(ctx)
	if err != nil {
		log.Error("failed to build jwks", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, jwks)
}

// DiscoveryController maneja GET /.well-known/openid-configuration.
type DiscoveryController struct {
	service *svc.DiscoveryService
}

func NewDiscoveryController(service *svc.DiscoveryService) *DiscoveryController {
	return &DiscoveryController{service: service}
}

func (c *DiscoveryController) Get(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, c.service.Document())
}

// UserInfoController maneja GET /userinfo.
type UserInfoController struct {
	service *svc.UserInfoService
}

func NewUserInfoController(service *svc.UserInfoService) *UserInfoController {
	return &UserInfoController{service: service}
}

func (c *UserInfoController) Get(w http.ResponseWriter, r *http.Request) {
	bearer := helpers.BearerToken(r)
	if bearer == "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	resp, err := c.service.UserInfo(r.Context(), bearer)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
