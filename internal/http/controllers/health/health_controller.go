// Package health contiene el controller para health checks.
package health

import (
	"net/http"

	"github.com/dropDatabas3/gatekeep/internal/http/helpers"
	svc "github.com/dropDatabas3/gatekeep/internal/http/services/health"
)

// Controller maneja /healthz y /readyz.
type Controller struct {
	service *svc.Service
}

func NewController(service *svc.Service) *Controller {
	return &Controller{service: service}
}

// Healthz responde mientras el proceso esté vivo.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz chequea dependencias duras (store + cache).
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	st := c.service.Readiness(r.Context())
	status := http.StatusOK
	if !st.Ready {
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, st)
}
