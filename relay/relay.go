// Package relay accepts chat clients and runs one session per connection over
// a shared rate limiter.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/time/rate"

	"adalbertofjr/chat-relay/relay/ratelimiter"
	"adalbertofjr/chat-relay/relay/session"
	"adalbertofjr/chat-relay/relay/text"
)

const maxAcceptBackoff = time.Second

type Config struct {
	// MaxClients is the number of connections accepted before the accept loop ends.
	MaxClients        int
	MessageLimit      int
	SweepInterval     time.Duration
	DisconnectOnBlock bool
	// AcceptRate limits accepted connections per second, 0 disables the throttle.
	AcceptRate float64
	Transform  text.Transform
}

// Registry owns the live sessions and the block sweeper.
type Registry struct {
	config   Config
	limiter  *ratelimiter.RateLimiter
	throttle *rate.Limiter
	newID    func() ratelimiter.ClientID

	ctx     context.Context
	cancel  context.CancelFunc
	workers conc.WaitGroup

	mu       sync.Mutex
	sessions conc.WaitGroup
	conns    map[ratelimiter.ClientID]*session.LineConn
}

// NewRegistry starts the block sweeper right away; it runs until Shutdown.
func NewRegistry(limiter *ratelimiter.RateLimiter, config Config) *Registry {
	if config.Transform == nil {
		config.Transform = text.Reverse
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		config:  config,
		limiter: limiter,
		newID:   func() ratelimiter.ClientID { return ratelimiter.ClientID(uuid.NewString()) },
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[ratelimiter.ClientID]*session.LineConn),
	}
	if config.AcceptRate > 0 {
		r.throttle = rate.NewLimiter(rate.Limit(config.AcceptRate), 1)
	}

	sweeper := ratelimiter.NewBlockSweeper(limiter, config.SweepInterval)
	r.workers.Go(func() {
		sweeper.Run(ctx)
	})
	return r
}

// ListenAndServe binds addr and serves it. A bind or listen failure is returned as is.
func (r *Registry) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}
	log.Printf("Listening on %s\n", ln.Addr())
	return r.Serve(ctx, ln)
}

// Serve accepts up to MaxClients connections from ln, then closes it and
// returns. Sessions keep running after Serve returns. Accept errors are
// logged and do not use up a slot.
func (r *Registry) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnShutdown := context.AfterFunc(r.ctx, cancel)
	defer stopOnShutdown()
	context.AfterFunc(ctx, func() { ln.Close() })

	var backoff time.Duration
	accepted := 0
	for accepted < r.config.MaxClients {
		if r.throttle != nil {
			if err := r.throttle.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("relay: listener closed: %w", err)
			}
			backoff = nextBackoff(backoff)
			log.Printf("Error accepting client: %v; retrying in %v\n", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0
		accepted++
		r.startSession(conn)
	}

	log.Printf("Accepted %d clients, no longer accepting connections\n", accepted)
	return nil
}

func (r *Registry) startSession(conn net.Conn) {
	id := r.newID()
	lineConn := session.NewLineConn(conn)

	if err := r.limiter.Register(id); err != nil {
		log.Printf("Internal error registering client %s: %v\n", id, err)
		lineConn.Close()
		return
	}
	log.Printf("Client %s connected from %s\n", id, conn.RemoteAddr())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		r.limiter.Deregister(id)
		lineConn.Close()
		return
	}
	r.conns[id] = lineConn
	r.sessions.Go(func() {
		defer r.untrack(id)
		r.runSession(id, lineConn)
	})
}

// runSession confines a panicking session to its own connection.
func (r *Registry) runSession(id ratelimiter.ClientID, conn *session.LineConn) {
	var catcher panics.Catcher
	catcher.Try(func() {
		s := session.New(id, conn, r.limiter, r.config.Transform, session.Config{
			MessageLimit:      r.config.MessageLimit,
			Lockout:           r.limiter.Lockout(),
			DisconnectOnBlock: r.config.DisconnectOnBlock,
		})
		if err := s.Run(); err != nil {
			log.Printf("Session %s ended with error: %v\n", id, err)
		}
	})
	if recovered := catcher.Recovered(); recovered != nil {
		log.Printf("Session %s panicked: %v\n", id, recovered.Value)
		if err := r.limiter.Deregister(id); err != nil {
			log.Printf("Error removing client %s: %v\n", id, err)
		}
		conn.Close()
	}
}

func (r *Registry) untrack(id ratelimiter.ClientID) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Active returns the number of sessions still running.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Wait blocks until every started session has terminated. Call it after Serve returned.
func (r *Registry) Wait() {
	r.sessions.Wait()
}

// Shutdown stops accepting, stops the sweeper, closes every live connection
// and waits for sessions to clean up or ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.cancel()
	for _, conn := range r.conns {
		conn.Close()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.sessions.Wait()
		r.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	current *= 2
	if current > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return current
}
