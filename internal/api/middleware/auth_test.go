package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nezunotify/notifyctl/internal/access"
)

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		keys   []string
		header string
		want   int
	}{
		{name: "accepted", keys: []string{"k1"}, header: "Bearer k1", want: http.StatusOK},
		{name: "missing", keys: []string{"k1"}, want: http.StatusUnauthorized},
		{name: "wrong", keys: []string{"k1"}, header: "Bearer k2", want: http.StatusForbidden},
		{name: "no keys configured", header: "Bearer k1", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.Use(AuthMiddleware(access.NewKeySet(tt.keys)))
			engine.GET("/v1/status", func(c *gin.Context) {
				c.String(http.StatusOK, Principal(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()
			engine.ServeHTTP(recorder, req)

			if recorder.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", recorder.Code, tt.want, recorder.Body.String())
			}
			if tt.want == http.StatusOK && recorder.Body.String() != "k1" {
				t.Fatalf("principal = %q", recorder.Body.String())
			}
		})
	}
}
