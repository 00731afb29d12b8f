// Package server construye el handler HTTP con todas las dependencias
// cableadas a partir de la configuración.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dropDatabas3/gatekeep/internal/cache"
	"github.com/dropDatabas3/gatekeep/internal/clients"
	"github.com/dropDatabas3/gatekeep/internal/config"
	"github.com/dropDatabas3/gatekeep/internal/directory"
	adminctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/admin"
	healthctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/gatekeep/internal/http/controllers/oidc"
	"github.com/dropDatabas3/gatekeep/internal/http/router"
	adminsvc "github.com/dropDatabas3/gatekeep/internal/http/services/admin"
	healthsvc "github.com/dropDatabas3/gatekeep/internal/http/services/health"
	oauthsvc "github.com/dropDatabas3/gatekeep/internal/http/services/oauth"
	oidcsvc "github.com/dropDatabas3/gatekeep/internal/http/services/oidc"
	"github.com/dropDatabas3/gatekeep/internal/keys"
	"github.com/dropDatabas3/gatekeep/internal/metrics"
	"github.com/dropDatabas3/gatekeep/internal/refresh"
	"github.com/dropDatabas3/gatekeep/internal/store/pg"
	"github.com/dropDatabas3/gatekeep/internal/token"
	migrations "github.com/dropDatabas3/gatekeep/migrations/postgres"
)

// Build arma el handler completo. Devuelve también un cleanup que cierra
// store y cache.
func Build(ctx context.Context, cfg *config.Config) (http.Handler, func() error, error) {
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("server: init store: %w", err)
	}
	if err := store.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("server: migrate: %w", err)
	}

	cacheClient, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("server: init cache: %w", err)
	}

	cleanup := func() error {
		err := cacheClient.Close()
		store.Close()
		return err
	}

	km := keys.NewManager(store, cfg.KeyCacheTTL())
	issuer := token.NewIssuer(cfg.JWT.Issuer, km, cacheClient, cfg.AccessTTL(), cfg.RefreshTTL())
	rotation := refresh.NewProtocol(issuer, cacheClient)
	registry := clients.NewRegistry(cfg.Clients)
	dir := directory.New(cfg.Directory.Users)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("server: register metrics: %w", err)
	}

	handler := router.New(router.Deps{
		Authorize:  oauthctrl.NewAuthorizeController(oauthsvc.NewAuthorizeService(registry, issuer, cacheClient)),
		Token:      oauthctrl.NewTokenController(oauthsvc.NewTokenService(registry, issuer, rotation, cacheClient, dir)),
		Introspect: oauthctrl.NewIntrospectController(registry, oauthsvc.NewIntrospectService(issuer, rotation)),
		Revoke:     oauthctrl.NewRevokeController(registry, oauthsvc.NewRevokeService(issuer, rotation)),

		JWKS:      oidcctrl.NewJWKSController(km),
		Discovery: oidcctrl.NewDiscoveryController(oidcsvc.NewDiscoveryService(cfg.JWT.Issuer, registry)),
		UserInfo:  oidcctrl.NewUserInfoController(oidcsvc.NewUserInfoService(issuer, dir)),

		AdminKeys: adminctrl.NewKeysController(adminsvc.NewKeysService(km)),
		Health:    healthctrl.NewController(healthsvc.NewService(store, cacheClient)),

		AdminAPIKey: cfg.Admin.APIKey,
		Metrics:     reg,
	})

	return handler, cleanup, nil
}
