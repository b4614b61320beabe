package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHostLimiter(t *testing.T) {
	router := NewRouter(stubSnapshotter{})
	router.Use(NewHostLimiter(0.001, 2).Middleware)

	get := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	tests := []struct {
		name       string
		remoteAddr string
		want       int
	}{
		{"first request", "10.0.0.1:1111", http.StatusOK},
		{"within burst, other port", "10.0.0.1:2222", http.StatusOK},
		{"burst exhausted", "10.0.0.1:3333", http.StatusTooManyRequests},
		{"other host unaffected", "10.0.0.2:1111", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := get(tt.remoteAddr); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRemoteHost(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.0.1:8080", "192.168.0.1"},
		{"[::1]:8080", "::1"},
		{"192.168.0.1", "192.168.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := remoteHost(tt.addr); got != tt.want {
				t.Errorf("remoteHost(%q) = %q, want %q", tt.addr, got, tt.want)
			}
		})
	}
}
