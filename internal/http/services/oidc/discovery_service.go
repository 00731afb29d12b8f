// Package oidc implementa los servicios de la superficie OpenID Connect:
// discovery, JWKS y userinfo.
package oidc

import (
	"sort"
	"strings"

	"github.com/dropDatabas3/gatekeep/internal/clients"
	"github.com/dropDatabas3/gatekeep/internal/http/dto/oidc"
)

// DiscoveryService arma el documento de discovery. El documento es estático
// por proceso: se construye una vez a partir del issuer y el registry.
type DiscoveryService struct {
	doc oidc.DiscoveryDocument
}

func NewDiscoveryService(issuer string, reg *clients.Registry) *DiscoveryService {
	base := strings.TrimRight(issuer, "/")
	return &DiscoveryService{doc: oidc.DiscoveryDocument{
		Issuer:                            issuer,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		IntrospectionEndpoint:             base + "/introspection",
		RevocationEndpoint:                base + "/revocation",
		UserinfoEndpoint:                  base + "/userinfo",
		JwksURI:                           base + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		ScopesSupported:                   supportedScopes(reg),
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		TokenEndpointAuthMethodsSupported: []string{clients.AuthMethodNone, clients.AuthMethodSecretBasic, clients.AuthMethodSecretPost},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
	}}
}

// Document devuelve el documento de discovery.
func (s *DiscoveryService) Document() oidc.DiscoveryDocument { return s.doc }

// supportedScopes es la unión de los allowed scopes de todos los clients.
func supportedScopes(reg *clients.Registry) []string {
	set := map[string]struct{}{"openid": {}}
	for _, c := range reg.All() {
		for _, s := range c.AllowedScopes {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
