package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"boxborne/internal/room"
)

// Server combines the HTTP router, the room WebSocket hub, and the rate
// limiter's background cleanup goroutine into one start/stop unit.
type Server struct {
	manager     *room.Manager
	hub         *Hub
	router      http.Handler
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer builds an API server wired to manager. Construction starts the
// rate limiter's cleanup goroutine; a room's fan-out drain starts when its
// first socket connects. Construction never blocks or dials out.
func NewServer(manager *room.Manager) *Server {
	s := &Server{
		manager:     manager,
		hub:         NewHub(manager),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}
	s.router = NewRouter(RouterConfig{
		Manager:     manager,
		Hub:         s.hub,
		RateLimiter: s.rateLimiter,
	})
	return s
}

// Router returns the HTTP handler for use with httptest.NewServer.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving addr. It blocks until the listener fails or Stop
// closes it, so callers run it in its own goroutine.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("🌐 API server starting on %s", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully drains in-flight requests (bounded by ctx) and stops the
// rate limiter's cleanup goroutine.
func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
