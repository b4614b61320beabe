package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"adalbertofjr/chat-relay/cmd/configs"
	"adalbertofjr/chat-relay/internal/infra/api"
	"adalbertofjr/chat-relay/relay"
	"adalbertofjr/chat-relay/relay/ratelimiter"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "chat-relay [max-clients]",
		Short:        "A TCP chat relay with per-client message limits",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runServe,
	}

	flags := rootCmd.Flags()
	flags.String("host", "", "listen host")
	flags.String("port", "8000", "listen port")
	flags.Int("max-clients", 5, "connections accepted before the server stops accepting")
	flags.Int("limit", 5, "messages allowed before a client is blocked")
	flags.String("lockout", "60s", "how long a client stays blocked")
	flags.String("sweep-interval", "1s", "how often expired blocks are released")
	flags.Bool("disconnect-on-block", false, "close the connection when a client gets blocked")
	flags.String("transform", "reverse", "message transform: reverse, reverse-words or echo")
	flags.Float64("accept-rate", 0, "accepted connections per second, 0 for no limit")
	flags.String("storage", "memory", "client table storage: memory or redis")
	flags.String("redis-addr", "localhost:6379", "redis address for the redis storage")
	flags.String("status-addr", "", "HTTP status listen address, empty to disable")
	flags.Float64("status-rate", 10, "status requests per second allowed per host, 0 for no limit")
	flags.String("shutdown-timeout", "10s", "how long to wait for sessions on shutdown")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if err := cmd.Flags().Set("max-clients", args[0]); err != nil {
			return fmt.Errorf("invalid number of clients %q: %w", args[0], err)
		}
	}

	config, err := configs.LoadConfig(".", cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s, err := newSettings(config)
	if err != nil {
		return err
	}

	ctx := context.Background()
	backend, closeBackend, err := newBackend(ctx, config)
	if err != nil {
		return err
	}
	defer closeBackend()

	limiter := ratelimiter.NewRateLimiter(backend, s.lockout)
	if err := limiter.Reset(); err != nil {
		return fmt.Errorf("failed to reset client table: %w", err)
	}

	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quitCh)

	registry := relay.NewRegistry(limiter, s.relay)

	errCh := make(chan error, 1)
	go func() {
		errCh <- registry.ListenAndServe(ctx, config.ListenAddr())
	}()

	var status *http.Server
	if config.RelayStatusAddr != "" {
		router := api.NewRouter(limiter)
		if config.RelayStatusRate > 0 {
			router.Use(api.NewHostLimiter(config.RelayStatusRate, int(config.RelayStatusRate)).Middleware)
		}
		status = &http.Server{Addr: config.RelayStatusAddr, Handler: router}
		go func() {
			log.Printf("Starting status server on %s\n", config.RelayStatusAddr)
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Status server error: %v\n", err)
			}
		}()
	}

	var serveErr error
	select {
	case sig := <-quitCh:
		log.Printf("Received signal: %v\n", sig)
	case serveErr = <-errCh:
		if serveErr == nil {
			waitForClients(registry, quitCh)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	if status != nil {
		if err := status.Shutdown(shutdownCtx); err != nil {
			log.Printf("Status server shutdown: %v\n", err)
		}
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown did not complete: %v\n", err)
	}
	log.Println("Server stopped")
	return serveErr
}

// waitForClients keeps the process alive while accepted sessions are still running.
func waitForClients(registry *relay.Registry, quitCh <-chan os.Signal) {
	drained := make(chan struct{})
	go func() {
		registry.Wait()
		close(drained)
	}()

	select {
	case sig := <-quitCh:
		log.Printf("Received signal: %v\n", sig)
	case <-drained:
		log.Println("All clients disconnected")
	}
}
