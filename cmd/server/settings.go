package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adalbertofjr/chat-relay/cmd/configs"
	"adalbertofjr/chat-relay/relay"
	"adalbertofjr/chat-relay/relay/ratelimiter"
	"adalbertofjr/chat-relay/relay/text"
)

type settings struct {
	relay           relay.Config
	lockout         time.Duration
	shutdownTimeout time.Duration
}

func newSettings(config *configs.Config) (settings, error) {
	var s settings

	if config.RelayMaxClients < 1 {
		return s, fmt.Errorf("RELAY_MAX_CLIENTS must be at least 1, got %d", config.RelayMaxClients)
	}
	if config.RelayMessageLimit < 1 {
		return s, fmt.Errorf("RELAY_MESSAGE_LIMIT must be at least 1, got %d", config.RelayMessageLimit)
	}
	if config.RelayAcceptRate < 0 {
		return s, fmt.Errorf("RELAY_ACCEPT_RATE must not be negative, got %v", config.RelayAcceptRate)
	}

	lockout, err := configs.ParseDuration("RELAY_LOCKOUT_DURATION", config.RelayLockoutDuration)
	if err != nil {
		return s, err
	}
	sweepInterval, err := configs.ParseDuration("RELAY_SWEEP_INTERVAL", config.RelaySweepInterval)
	if err != nil {
		return s, err
	}
	shutdownTimeout, err := configs.ParseDuration("RELAY_SHUTDOWN_TIMEOUT", config.RelayShutdownTimeout)
	if err != nil {
		return s, err
	}
	transform, err := text.ByName(config.RelayTransform)
	if err != nil {
		return s, err
	}

	s.lockout = lockout
	s.shutdownTimeout = shutdownTimeout
	s.relay = relay.Config{
		MaxClients:        config.RelayMaxClients,
		MessageLimit:      config.RelayMessageLimit,
		SweepInterval:     sweepInterval,
		DisconnectOnBlock: config.RelayDisconnectOnBlock,
		AcceptRate:        config.RelayAcceptRate,
		Transform:         transform,
	}
	return s, nil
}

func newBackend(ctx context.Context, config *configs.Config) (ratelimiter.Backend, func(), error) {
	switch strings.ToLower(config.RelayStorage) {
	case "", "memory":
		return ratelimiter.NewMemoryBackend(), func() {}, nil
	case "redis":
		backend, err := ratelimiter.NewRedisBackend(ctx, config.RelayRedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis storage: %w", err)
		}
		return backend, func() { backend.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q, use memory or redis", config.RelayStorage)
	}
}
