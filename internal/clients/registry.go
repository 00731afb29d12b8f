// Package clients mantiene el registro estático de OAuth clients y resuelve
// su autenticación en el token endpoint.
package clients

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/gatekeep/internal/config"
	"github.com/dropDatabas3/gatekeep/internal/security/tokens"
	"github.com/dropDatabas3/gatekeep/internal/validation"
)

// Métodos de autenticación soportados en el token endpoint.
const (
	AuthMethodNone        = "none"
	AuthMethodSecretBasic = "client_secret_basic"
	AuthMethodSecretPost  = "client_secret_post"
)

var (
	ErrUnknownClient      = errors.New("unknown client")
	ErrInvalidCredentials = errors.New("invalid client credentials")
)

// Client es la vista inmutable de un client registrado.
type Client struct {
	ID            string
	secret        string
	RedirectURIs  []string
	GrantTypes    []string
	ResponseTypes []string
	AllowedScopes []string
	DefaultScope  string
	RequirePKCE   bool
	AuthMethod    string
}

// Public indica si el client opera sin secret (SPA, mobile).
func (c *Client) Public() bool { return c.AuthMethod == AuthMethodNone }

// SupportsGrant reporta si el grant type está declarado para el client.
func (c *Client) SupportsGrant(grant string) bool {
	return contains(c.GrantTypes, grant)
}

// SupportsResponseType reporta si el response type está declarado.
func (c *Client) SupportsResponseType(rt string) bool {
	return contains(c.ResponseTypes, rt)
}

// RedirectURIAllowed exige match exacto contra la lista registrada. Nada de
// prefijos ni wildcards: un redirect_uri abierto es un open redirect.
func (c *Client) RedirectURIAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Fragment != "" {
		return false
	}
	return contains(c.RedirectURIs, raw)
}

// ResolveScope valida el scope pedido contra los allowed del client; vacío
// cae al default registrado.
func (c *Client) ResolveScope(requested string) (string, bool) {
	scopes := validation.NormalizeScopes(requested)
	if len(scopes) == 0 {
		return c.DefaultScope, true
	}
	for _, s := range scopes {
		if !validation.ValidScopeName(s) || !contains(c.AllowedScopes, s) {
			return "", false
		}
	}
	return strings.Join(scopes, " "), true
}

// Registry indexa los clients cargados de la configuración.
type Registry struct {
	byID map[string]*Client
}

func NewRegistry(cfgClients []config.Client) *Registry {
	r := &Registry{byID: make(map[string]*Client, len(cfgClients))}
	for _, cc := range cfgClients {
		method := cc.TokenEndpointAuthMethod
		if method == "" {
			if cc.ClientSecret == "" {
				method = AuthMethodNone
			} else {
				method = AuthMethodSecretBasic
			}
		}
		r.byID[cc.ClientID] = &Client{
			ID:            cc.ClientID,
			secret:        cc.ClientSecret,
			RedirectURIs:  append([]string(nil), cc.RedirectURIs...),
			GrantTypes:    append([]string(nil), cc.GrantTypes...),
			ResponseTypes: append([]string(nil), cc.ResponseTypes...),
			AllowedScopes: append([]string(nil), cc.AllowedScopes...),
			DefaultScope:  strings.Join(cc.DefaultScopes, " "),
			RequirePKCE:   cc.RequirePKCE,
			AuthMethod:    method,
		}
	}
	return r
}

// All devuelve todos los clients registrados (orden indefinido).
func (r *Registry) All() []*Client {
	out := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// FindByID devuelve el client o ErrUnknownClient.
func (r *Registry) FindByID(id string) (*Client, error) {
	c, ok := r.byID[id]
	if !ok || id == "" {
		return nil, ErrUnknownClient
	}
	return c, nil
}

// Authenticate resuelve las credenciales presentadas contra el método
// registrado del client. Falla cerrado: método distinto al declarado o
// secret ausente/incorrecto rechazan.
func (r *Registry) Authenticate(clientID, clientSecret, presentedVia string) (*Client, error) {
	c, err := r.FindByID(clientID)
	if err != nil {
		return nil, err
	}

	if c.Public() {
		if clientSecret != "" {
			return nil, ErrInvalidCredentials
		}
		return c, nil
	}

	if presentedVia != c.AuthMethod {
		return nil, ErrInvalidCredentials
	}
	if clientSecret == "" || !secretMatches(c.secret, clientSecret) {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

// secretMatches compara contra hash bcrypt cuando el registro guarda uno,
// y en texto plano (tiempo constante) cuando no.
func secretMatches(stored, presented string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return tokens.ConstantTimeEquals(stored, presented)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
