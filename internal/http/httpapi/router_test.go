package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"shaggydog/internal/http/handlers"
	"shaggydog/internal/middleware"
)

func TestRouterAuthAndHealth(t *testing.T) {
	app := &handlers.App{Logger: zerolog.Nop()}
	router := NewRouter(app, RouterOptions{JWTSecret: "secret", Logger: zerolog.Nop()})

	tests := []struct {
		name   string
		method string
		path   string
		token  bool
		want   int
	}{
		{name: "health is public", method: http.MethodGet, path: "/v1/healthz", want: http.StatusOK},
		{name: "list requires token", method: http.MethodGet, path: "/v1/images", want: http.StatusUnauthorized},
		{name: "upload requires token", method: http.MethodPost, path: "/v1/images", want: http.StatusUnauthorized},
		{name: "status requires token", method: http.MethodGet, path: "/v1/images/abc/status", want: http.StatusUnauthorized},
		{name: "status with token unknown id", method: http.MethodGet, path: "/v1/images/abc/status", token: true, want: http.StatusNotFound},
		{name: "unknown route", method: http.MethodGet, path: "/v1/nope", want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token {
				token, _ := middleware.NewOwnerToken("secret", "7", time.Hour, time.Now())
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Fatal("missing X-Request-ID")
			}
		})
	}
}
