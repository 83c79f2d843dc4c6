// Package api exposes the security engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/vietddude/walletguard/internal/infra/storage"
	"github.com/vietddude/walletguard/internal/metrics"
	"github.com/vietddude/walletguard/internal/security/engine"
)

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	RateLimit   float64
	Burst       int
	AuthWindow  time.Duration
	CORSOrigins []string
}

// Server serves the engine API, health and metrics.
type Server struct {
	engine *engine.Engine
	events storage.EventRepository
	health *HealthMonitor
	cfg    Config
	now    func() time.Time
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(eng *engine.Engine, events storage.EventRepository, health *HealthMonitor, cfg Config) *Server {
	if cfg.AuthWindow <= 0 {
		cfg.AuthWindow = 5 * time.Minute
	}
	if health == nil {
		health = NewHealthMonitor(eng)
	}
	s := &Server{
		engine: eng,
		events: events,
		health: health,
		cfg:    cfg,
		now:    time.Now,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	m := chi.NewMux()
	m.Use(middleware.Recoverer)
	m.Use(middleware.RealIP)
	m.Use(observe)
	m.Use(corsHandler(s.cfg.CORSOrigins))

	m.Get("/health", s.health.handleHealth)
	m.Get("/health/detailed", s.health.handleDetailed)
	m.Handle("/metrics", promhttp.Handler())

	m.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newIPRateLimiter(s.cfg.RateLimit, s.cfg.Burst).handler)
		}

		// Read-only views.
		r.Get("/stats", s.getStats)
		r.Get("/policy", s.getPolicy)
		r.Get("/events", s.listEvents)
		r.Get("/wallets/{owner}", s.getWallet)
		r.Get("/wallets/{owner}/security-config", s.getSecurityConfig)
		r.Get("/wallets/{owner}/nonce", s.getNonce)
		r.Get("/wallets/{owner}/rate-limit", s.getRateLimit)
		r.Get("/wallets/{owner}/recovery", s.getRecovery)
		r.Get("/wallets/{owner}/guardians", s.getGuardians)
		r.Get("/wallets/{owner}/guardians/{addr}", s.isGuardian)
		r.Get("/wallets/{owner}/queue", s.listQueued)
		r.Get("/wallets/{owner}/events", s.listWalletEvents)
		r.Get("/queue/{hash}", s.getQueued)
		r.Get("/roles/{role}", s.getRoleMembers)
		r.Get("/roles/{role}/{account}", s.hasRole)
		r.Get("/blacklist/{addr}", s.isBlacklisted)
		r.Get("/tokens/{token}", s.isTokenWhitelisted)
		r.Get("/host/{addr}", s.getHostAccount)

		// Signed mutations.
		r.Group(func(r chi.Router) {
			r.Use(handleAuth(s.cfg.AuthWindow, func() time.Time { return s.now() }))

			r.Post("/wallets", s.createWallet)
			r.Post("/wallets/{owner}/deposit", s.deposit)
			r.Put("/wallet/security-level", s.updateSecurityLevel)
			r.Put("/wallet/daily-limit", s.setDailyLimit)
			r.Post("/transfers/native", s.transferNative)
			r.Post("/transfers/tokens", s.transferTokens)
			r.Post("/queue/{hash}/confirm", s.confirmQueued)
			r.Post("/queue/{hash}/cancel", s.cancelQueued)
			r.Post("/guardians", s.addGuardian)
			r.Delete("/guardians/{guardian}", s.removeGuardian)
			r.Post("/recovery/{owner}/initiate", s.initiateRecovery)
			r.Post("/recovery/{owner}/approve", s.approveRecovery)
			r.Post("/recovery/cancel", s.cancelRecovery)
			r.Post("/receive", s.receive)
			r.Post("/tokens/{token}/approve", s.approveToken)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/initialize", s.initialize)
				r.Post("/pause", s.pause)
				r.Post("/unpause", s.unpause)
				r.Post("/emergency-withdraw", s.emergencyWithdraw)
				r.Post("/roles/{role}/renounce", s.renounceRole)
				r.Post("/roles/{role}/{account}", s.grantRole)
				r.Delete("/roles/{role}/{account}", s.revokeRole)
				r.Post("/blacklist/{addr}", s.blacklist)
				r.Delete("/blacklist/{addr}", s.unblacklist)
				r.Post("/tokens/{token}", s.whitelistToken)
				r.Delete("/tokens/{token}", s.delistToken)
				r.Post("/wallets/{owner}/lock", s.lockWallet)
				r.Post("/wallets/{owner}/unlock", s.unlockWallet)
				r.Post("/wallets/{owner}/functions/{fn}/pause", s.pauseFunction)
				r.Post("/wallets/{owner}/functions/{fn}/unpause", s.unpauseFunction)
				r.Post("/host/fund", s.fundAccount)
				r.Post("/host/mint", s.mintToken)
			})
		})
	})

	return m
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", HeaderCaller, HeaderTimestamp, HeaderNonce, HeaderSignature},
	}).Handler
}

// observe records request counts and latency by route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.APILatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
