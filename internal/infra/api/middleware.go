package api

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter throttles status requests per remote host.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		hosts: make(map[string]*rate.Limiter),
		limit: rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

func (hl *HostLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := remoteHost(r.RemoteAddr)
		if !hl.allow(host) {
			log.Printf("Status request from %s rejected; %s\n", host, time.Now().Format(time.TimeOnly))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (hl *HostLimiter) allow(host string) bool {
	hl.mu.Lock()
	limiter, ok := hl.hosts[host]
	if !ok {
		limiter = rate.NewLimiter(hl.limit, hl.burst)
		hl.hosts[host] = limiter
	}
	hl.mu.Unlock()
	return limiter.Allow()
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Split(addr, ":")[0]
	}
	return host
}
