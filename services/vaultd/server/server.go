package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nativecommon "nhbvault/native/common"
	"nhbvault/native/vault"
	"nhbvault/observability"
	"nhbvault/services/vaultd/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	Quota         nativecommon.Quota
}

// Server hosts the vault's HTTP surface: permissionless claim submission,
// read-only previews, and the authenticated admin endpoints.
type Server struct {
	cfg     Config
	engine  *vault.Engine
	storage *storage.Storage
	logger  *slog.Logger
	auth    *Authenticator
	pauses  *PauseRegistry
	quota   *quotaLedger
	metrics *observability.VaultMetrics
}

// New constructs a Server around the wired engine.
func New(cfg Config, engine *vault.Engine, store *storage.Storage, auth *Authenticator, pauses *PauseRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		storage: store,
		logger:  logger,
		auth:    auth,
		pauses:  pauses,
		quota:   newQuotaLedger(cfg.Quota),
		metrics: observability.Vault(),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/vault", func(r chi.Router) {
		r.Get("/preview", s.handlePreview)
		r.Get("/total-assets", s.handleTotalAssets)
		r.Get("/config", s.handleGetConfig)
		r.Get("/claims", s.handleListClaims)
		r.Post("/claims", s.handleClaim)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Put("/vault/config", s.handleSetConfig)
		r.Post("/admin/pause", s.handlePause)
	})

	return r
}

// Run serves the router until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
