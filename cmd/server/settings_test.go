package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"adalbertofjr/chat-relay/cmd/configs"
	"adalbertofjr/chat-relay/relay/ratelimiter"
)

func validConfig() *configs.Config {
	return &configs.Config{
		ServerPort:           "8000",
		RelayMaxClients:      5,
		RelayMessageLimit:    5,
		RelayLockoutDuration: "60s",
		RelaySweepInterval:   "1s",
		RelayTransform:       "reverse",
		RelayStorage:         "memory",
		RelayShutdownTimeout: "10s",
	}
}

func TestNewSettings(t *testing.T) {
	s, err := newSettings(validConfig())
	if err != nil {
		t.Fatalf("newSettings() error = %v", err)
	}
	if s.lockout != time.Minute {
		t.Errorf("lockout = %v, want 1m", s.lockout)
	}
	if s.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s", s.shutdownTimeout)
	}
	if s.relay.MaxClients != 5 || s.relay.MessageLimit != 5 || s.relay.SweepInterval != time.Second {
		t.Errorf("unexpected relay config: %+v", s.relay)
	}
	if got := s.relay.Transform("hello world"); got != "dlrow olleh" {
		t.Errorf("Transform() = %q, want %q", got, "dlrow olleh")
	}
}

func TestNewSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*configs.Config)
	}{
		{"zero clients", func(c *configs.Config) { c.RelayMaxClients = 0 }},
		{"zero limit", func(c *configs.Config) { c.RelayMessageLimit = 0 }},
		{"negative accept rate", func(c *configs.Config) { c.RelayAcceptRate = -1 }},
		{"bad lockout", func(c *configs.Config) { c.RelayLockoutDuration = "sixty" }},
		{"bad sweep interval", func(c *configs.Config) { c.RelaySweepInterval = "1x" }},
		{"bad shutdown timeout", func(c *configs.Config) { c.RelayShutdownTimeout = "" }},
		{"unknown transform", func(c *configs.Config) { c.RelayTransform = "upper" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(config)
			if _, err := newSettings(config); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		storage string
		addr    string
		wantErr bool
	}{
		{"memory", "memory", "", false},
		{"default", "", "", false},
		{"redis", "redis", mr.Addr(), false},
		{"redis unavailable", "redis", "127.0.0.1:1", true},
		{"unknown", "etcd", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.RelayStorage = tt.storage
			config.RelayRedisAddr = tt.addr

			backend, closeBackend, err := newBackend(context.Background(), config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer closeBackend()

			record := &ratelimiter.ClientRecord{ID: "a"}
			if err := backend.Set(record.ID, record); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if _, err := backend.Get(record.ID); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		})
	}
}
