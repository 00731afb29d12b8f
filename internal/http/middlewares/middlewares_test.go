package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_OrderAndHeaders(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), tag("outer"), WithNoStore(), tag("inner"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("unexpected middleware order: %v", order)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get("Pragma"); got != "no-cache" {
		t.Fatalf("Pragma = %q, want no-cache", got)
	}
}

func TestRequireAdminKey(t *testing.T) {
	h := Chain(okHandler(), RequireAdminKey("sekret"))

	req := httptest.NewRequest(http.MethodPost, "/admin/rotate-keys", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/rotate-keys", nil)
	req.Header.Set("X-Admin-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/rotate-keys", nil)
	req.Header.Set("X-Admin-API-Key", "sekret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correct key: status %d, want 200", rec.Code)
	}
}

func TestRequireAdminKey_EmptyConfiguredKeyRejectsAll(t *testing.T) {
	h := Chain(okHandler(), RequireAdminKey(""))

	req := httptest.NewRequest(http.MethodPost, "/admin/rotate-keys", nil)
	req.Header.Set("X-Admin-API-Key", "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("empty configured key must reject, got %d", rec.Code)
	}
}
