package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics del ciclo de vida de tokens y claves. Viven en un
// package propio para evitar ciclos de import entre services y HTTP.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_tokens_issued_total",
		Help: "Tokens emitidos por tipo (access|refresh|id)",
	}, []string{"type"})

	KeyRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signing_key_rotations_total",
		Help: "Rotaciones de clave de firma completadas",
	})

	RefreshReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_reuse_detected_total",
		Help: "Intentos de redención de un refresh token ya rotado",
	})

	AuthCodesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_codes_issued_total",
		Help: "Authorization codes emitidos",
	})

	AuthCodesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_codes_consumed_total",
		Help: "Authorization codes consumidos con éxito",
	})
)

// Register registra las métricas en el registry dado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TokensIssued,
		KeyRotations,
		RefreshReuseDetected,
		AuthCodesIssued,
		AuthCodesConsumed,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
