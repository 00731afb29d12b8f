package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es el objeto de configuración inmutable del proceso.
// Se construye una sola vez en main() y se inyecta por referencia en los
// constructores; la lógica de negocio nunca lee variables de entorno.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// DSN de Postgres para la tabla signing_keys.
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // "memory" | "redis"
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`  // default 15m
		RefreshTTL string `yaml:"refresh_ttl"` // default 720h
	} `yaml:"jwt"`

	Keys struct {
		CacheTTL string `yaml:"cache_ttl"` // default 30s
	} `yaml:"keys"`

	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`

	// Clients son los OAuth clients registrados, cargados una vez.
	Clients []Client `yaml:"clients"`

	// Directory es el directorio estático de perfiles para /userinfo.
	// En producción real esto vendría de un user-service externo.
	Directory struct {
		Users []User `yaml:"users"`
	} `yaml:"directory"`
}

// Client es la declaración estática de un OAuth client.
type Client struct {
	ClientID                string   `yaml:"client_id"`
	ClientSecret            string   `yaml:"client_secret"` // texto plano o hash bcrypt ($2...)
	RedirectURIs            []string `yaml:"redirect_uris"`
	GrantTypes              []string `yaml:"grant_types"`
	ResponseTypes           []string `yaml:"response_types"`
	AllowedScopes           []string `yaml:"allowed_scopes"`
	DefaultScopes           []string `yaml:"default_scopes"`
	RequirePKCE             bool     `yaml:"require_pkce"`
	TokenEndpointAuthMethod string   `yaml:"token_endpoint_auth_method"` // none | client_secret_basic | client_secret_post
}

// User es una entrada del directorio estático de perfiles.
type User struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Email         string `yaml:"email"`
	EmailVerified bool   `yaml:"email_verified"`
}

// Load lee el YAML, aplica overrides por env, defaults y valida.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h"
	}
	if c.Keys.CacheTTL == "" {
		c.Keys.CacheTTL = "30s"
	}
	if c.Storage.Postgres.MaxConns <= 0 {
		c.Storage.Postgres.MaxConns = 10
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}
}

// Validate aplica la semántica FatalConfigError: si falta algo requerido,
// el proceso no arranca.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		missing = append(missing, "jwt.issuer")
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		missing = append(missing, "storage.dsn")
	}
	if strings.TrimSpace(c.Admin.APIKey) == "" {
		missing = append(missing, "admin.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}

	for _, d := range []struct{ name, val string }{
		{"jwt.access_ttl", c.JWT.AccessTTL},
		{"jwt.refresh_ttl", c.JWT.RefreshTTL},
		{"keys.cache_ttl", c.Keys.CacheTTL},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("config: invalid duration %s=%q: %w", d.name, d.val, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: invalid duration storage.postgres.conn_max_lifetime: %w", err)
		}
	}

	if c.Cache.Kind != "memory" && c.Cache.Kind != "redis" {
		return fmt.Errorf("config: cache.kind must be memory or redis, got %q", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.kind=redis requires cache.redis.addr")
	}

	for i, cl := range c.Clients {
		if strings.TrimSpace(cl.ClientID) == "" {
			return fmt.Errorf("config: clients[%d]: client_id is required", i)
		}
		if len(cl.RedirectURIs) == 0 && contains(cl.GrantTypes, "authorization_code") {
			return fmt.Errorf("config: client %s: authorization_code requires redirect_uris", cl.ClientID)
		}
		switch cl.TokenEndpointAuthMethod {
		case "", "none", "client_secret_basic", "client_secret_post":
		default:
			return fmt.Errorf("config: client %s: unknown token_endpoint_auth_method %q", cl.ClientID, cl.TokenEndpointAuthMethod)
		}
	}
	return nil
}

// AccessTTL devuelve jwt.access_ttl ya parseado. Solo válido tras Load.
func (c *Config) AccessTTL() time.Duration { return mustDur(c.JWT.AccessTTL, 15*time.Minute) }

// RefreshTTL devuelve jwt.refresh_ttl ya parseado.
func (c *Config) RefreshTTL() time.Duration { return mustDur(c.JWT.RefreshTTL, 720*time.Hour) }

// KeyCacheTTL devuelve keys.cache_ttl ya parseado.
func (c *Config) KeyCacheTTL() time.Duration { return mustDur(c.Keys.CacheTTL, 30*time.Second) }

func mustDur(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
