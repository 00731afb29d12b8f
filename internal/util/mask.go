// Package util agrupa helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskEmail enmascara un email para logs: conserva la primera letra del
// usuario y del dominio ("ana@example.com" -> "a…@e….com"). Si la entrada
// no parece un email devuelve una versión igualmente acotada.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		switch {
		case s == "":
			return ""
		case len(s) <= 3:
			return "***"
		default:
			return s[:1] + "…" + s[len(s)-1:]
		}
	}
	user, dom := s[:at], s[at+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	labels := strings.Split(dom, ".")
	if len(labels) > 0 && len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return user + "@" + strings.Join(labels, ".")
}
