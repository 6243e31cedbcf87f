// Package api implements the local control API of the voxclient daemon: a
// JSON HTTP surface over the session manager, the keypad engine and the
// VoxNode backend client.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/voxnode/voxclient/internal/api/middleware"
	"github.com/voxnode/voxclient/internal/config"
	"github.com/voxnode/voxclient/internal/dialer"
	"github.com/voxnode/voxclient/internal/session"
	"github.com/voxnode/voxclient/internal/store"
	"github.com/voxnode/voxclient/internal/voxnode"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	sessions *session.Manager
	store    *store.Store
	client   *voxnode.Client

	jwtSecret    []byte
	authLimiter  *mw.IPRateLimiter
	promRegistry *prometheus.Registry

	// The daemon exposes one keypad surface.
	dialMu    sync.Mutex
	dialState *dialer.State
}

// NewServer creates the HTTP handler with all routes mounted. registry may be
// nil to disable the /metrics endpoint.
func NewServer(cfg *config.Config, sessions *session.Manager, st *store.Store, client *voxnode.Client, registry *prometheus.Registry) (*Server, error) {
	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		return nil, fmt.Errorf("api: loading jwt secret: %w", err)
	}

	s := &Server{
		router:       chi.NewRouter(),
		cfg:          cfg,
		sessions:     sessions,
		store:        st,
		client:       client,
		jwtSecret:    secret,
		authLimiter:  mw.NewIPRateLimiter(mw.AuthRateLimitConfig()),
		promRegistry: registry,
		dialState:    dialer.NewState(),
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the server's background workers.
func (s *Server) Close() {
	s.authLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.StructuredLogger)
	r.Use(mw.Recoverer)
	r.Use(mw.SecurityHeaders(false))

	r.Get("/healthz", s.handleHealth)
	if s.promRegistry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Token issuance is the only unauthenticated route; it is rate
		// limited to slow down password guessing.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(s.authLimiter))
			r.Post("/auth/token", s.handleToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth(s.jwtSecret))

			r.Put("/auth/password", s.handleSetPassword)

			r.Post("/session/login", s.handleLogin)
			r.Post("/session/logout", s.handleLogout)
			r.Get("/session", s.handleGetSession)

			r.Get("/providers", s.handleListProviders)
			r.Get("/theme", s.handleTheme)

			r.Put("/avatar", s.handleUploadAvatar)
			r.Get("/avatar", s.handleGetAvatar)

			r.Route("/callerids", func(r chi.Router) {
				r.Get("/", s.handleListCallerIDs)
				r.Post("/", s.handleAddCallerID)
				r.Post("/refresh", s.handleRefreshCallerIDs)
				r.Route("/{id}", func(r chi.Router) {
					r.Post("/choose", s.handleChooseCallerID)
					r.Post("/verify", s.handleVerifyCallerID)
					r.Delete("/", s.handleDeleteCallerID)
				})
			})

			r.Post("/calls/dial", s.handleDial)
			r.Post("/sms", s.handleSendSMS)

			r.Route("/dialer", func(r chi.Router) {
				r.Get("/", s.handleDialerState)
				r.Post("/keys", s.handleDialerKey)
				r.Post("/backspace", s.handleDialerBackspace)
				r.Post("/clear", s.handleDialerClear)
				r.Post("/paste", s.handleDialerPaste)
			})
		})
	})

	slog.Info("api routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
