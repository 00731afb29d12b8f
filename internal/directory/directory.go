// Package directory expone el directorio estático de perfiles de usuario
// cargado de la configuración. En un despliegue real esto sería un
// user-service externo; el contrato de lookup es el mismo.
package directory

import "github.com/dropDatabas3/gatekeep/internal/config"

// Profile es el perfil visible vía /userinfo e ID tokens.
type Profile struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
}

// Directory es un lookup inmutable por user id.
type Directory struct {
	byID map[string]Profile
}

func New(users []config.User) *Directory {
	d := &Directory{byID: make(map[string]Profile, len(users))}
	for _, u := range users {
		d.byID[u.ID] = Profile{
			ID:            u.ID,
			Name:          u.Name,
			Email:         u.Email,
			EmailVerified: u.EmailVerified,
		}
	}
	return d
}

// FindByID devuelve el perfil y si existe.
func (d *Directory) FindByID(id string) (Profile, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// Claims arma los claims de perfil acotados por los scopes concedidos:
// profile → name, email → email + email_verified.
func (d *Directory) Claims(userID string, scopes map[string]bool) map[string]any {
	p, ok := d.FindByID(userID)
	if !ok {
		return nil
	}
	out := map[string]any{}
	if scopes["profile"] && p.Name != "" {
		out["name"] = p.Name
	}
	if scopes["email"] && p.Email != "" {
		out["email"] = p.Email
		out["email_verified"] = p.EmailVerified
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
