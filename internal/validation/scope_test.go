package validation

import (
	"reflect"
	"testing"
)

func TestValidScopeName_Valid(t *testing.T) {
	valids := []string{
		"a",
		"ab",
		"openid",
		"profile",
		"profile:read",
		"email:read:e2e123",
		"a_b-c.d:scope2",
		// 64 chars (start/end alnum)
		mkLen("a", 62) + "b",
	}
	for _, v := range valids {
		if !ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidScopeName_Invalid(t *testing.T) {
	invalids := []string{
		"",               // empty
		":lead",          // starts with non-alnum
		"trail:",         // ends with non-alnum
		"bad space",      // space
		"UPPER",          // uppercase
		"semicolon;hack", // semicolon
		mkLen("a", 65),   // > 64 chars should be invalid
		mkLen("a", 100),  // way too long
	}
	for _, v := range invalids {
		if ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestNormalizeScopes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"openid", []string{"openid"}},
		{"openid profile email", []string{"openid", "profile", "email"}},
		{"openid  profile\topenid", []string{"openid", "profile"}},
		{" profile openid profile ", []string{"profile", "openid"}},
	}
	for _, c := range cases {
		if got := NormalizeScopes(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("NormalizeScopes(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

// mkLen builds a string of exactly n 'a' characters starting from prefix.
func mkLen(prefix string, total int) string {
	if total <= len(prefix) {
		return prefix[:total]
	}
	out := make([]byte, total)
	copy(out, []byte(prefix))
	for i := len(prefix); i < total; i++ {
		out[i] = 'a'
	}
	return string(out)
}
