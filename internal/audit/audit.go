// Package audit registra eventos administrativos y de seguridad como
// entradas estructuradas separadas del log operacional.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeep/internal/observability/logger"
)

// Log escribe un evento de auditoría. Hoy sale por el logger con marca
// audit=true; un sink dedicado puede colgarse después sin tocar callers.
func Log(ctx context.Context, event string, fields map[string]any) {
	zfields := make([]zap.Field, 0, len(fields)+2)
	zfields = append(zfields,
		zap.Bool("audit", true),
		zap.Time("ts", time.Now().UTC()),
	)
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}
	logger.From(ctx).Named("audit").Info(event, zfields...)
}
