package auth_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/census-api/auth"
	"github.com/Skryldev/census-api/logger"
)

func TestGate_Middleware(t *testing.T) {
	gate := auth.NewGate(auth.Credentials{Username: "admin", Password: "s3cret"}, "")

	tests := []struct {
		name       string
		setAuth    func(r *http.Request)
		wantStatus int
	}{
		{"valid", func(r *http.Request) { r.SetBasicAuth("admin", "s3cret") }, http.StatusOK},
		{"no header", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("admin", "nope") }, http.StatusUnauthorized},
		{"wrong user", func(r *http.Request) { r.SetBasicAuth("root", "s3cret") }, http.StatusUnauthorized},
		{"prefix of password", func(r *http.Request) { r.SetBasicAuth("admin", "s3cre") }, http.StatusUnauthorized},
		{"bearer scheme", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, http.StatusUnauthorized},
		{"malformed base64", func(r *http.Request) { r.Header.Set("Authorization", "Basic !!!") }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/participants", nil)
			tt.setAuth(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.False(t, called, "downstream must not run")
				assert.JSONEq(t, `{"error":"Unauthorized - Invalid credentials"}`, rec.Body.String())
				assert.Equal(t, `Basic realm="census"`, rec.Header().Get("WWW-Authenticate"))
			} else {
				assert.True(t, called)
			}
		})
	}
}

func TestGate_EmptyConfiguredCredentials(t *testing.T) {
	// An empty pair still only admits an explicit empty Basic header.
	gate := auth.NewGate(auth.Credentials{}, "census")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, gate.Allow(req))

	req.SetBasicAuth("", "")
	assert.True(t, gate.Allow(req))
}

func TestGate_RejectionLogOmitsPath(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	gate := auth.NewGate(auth.Credentials{Username: "admin", Password: "s3cret"}, "")

	r := chi.NewRouter()
	r.Use(logger.Middleware(base))
	r.Route("/participants", func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Get("/details/{email}", func(w http.ResponseWriter, r *http.Request) {})
	})

	req := httptest.NewRequest(http.MethodGet, "/participants/details/john.doe@example.com", nil)
	req.SetBasicAuth("admin", "wrong-password")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, buf.String(), "auth: rejected request")
	assert.NotContains(t, buf.String(), "john.doe")
	assert.NotContains(t, buf.String(), "wrong-password")
}
