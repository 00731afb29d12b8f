// Package admin contiene los controllers de la superficie administrativa.
package admin

import (
	"net/http"

	dto "github.com/dropDatabas3/gatekeep/internal/http/dto/admin"
	httperrors "github.com/dropDatabas3/gatekeep/internal/http/errors"
	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/admin"
	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
)

// KeysController maneja las rutas /admin/rotate-keys y /admin/revoke-kid.
type KeysController struct {
	service *svc.KeysService
}

func NewKeysController(service *svc.KeysService) *KeysController {
	return &KeysController{service: service}
}

// RotateKeys maneja POST /admin/rotate-keys.
func (c *KeysController) RotateKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("KeysController.RotateKeys"))

	resp, err := c.service.Rotate(ctx)
	if err != nil {
		log.Error("rotation failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// RevokeKID maneja POST /admin/revoke-kid.
func (c *KeysController) RevokeKID(w http.ResponseWriter, r *http.Request) {
	var req dto.RevokeKIDRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	resp, err := c.service.RevokeKID(r.Context(), req.KID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
