// Package health implementa los chequeos de liveness/readiness.
package health

import (
	"context"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/cache"
)

// Pinger es lo que el chequeo necesita del store relacional.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status es el resultado agregado del chequeo de readiness.
type Status struct {
	Ready bool              `json:"ready"`
	Deps  map[string]string `json:"deps"`
}

// Service chequea las dependencias duras del proceso.
type Service struct {
	store Pinger
	cache cache.Client
}

func NewService(store Pinger, c cache.Client) *Service {
	return &Service{store: store, cache: c}
}

// Readiness pinguea store y cache con timeout acotado.
func (s *Service) Readiness(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := Status{Ready: true, Deps: map[string]string{}}
	if err := s.store.Ping(ctx); err != nil {
		st.Ready = false
		st.Deps["store"] = "down"
	} else {
		st.Deps["store"] = "ok"
	}
	if err := s.cache.Ping(ctx); err != nil {
		st.Ready = false
		st.Deps["cache"] = "down"
	} else {
		st.Deps["cache"] = "ok"
	}
	return st
}
