// Aplica las migraciones embebidas contra la base configurada. El server
// las corre solo en el arranque; este binario sirve para pipelines de
// deploy que migran antes de levantar instancias.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/dropDatabas3/gatekeep/internal/config"
	"github.com/dropDatabas3/gatekeep/internal/store/pg"
	migrations "github.com/dropDatabas3/gatekeep/migrations/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "ruta del archivo de configuración")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer st.Close()

	start := time.Now()
	if err := st.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrations applied (%s)", time.Since(start).Truncate(time.Millisecond))
}
