package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Clark-Hu/disc-catalog/internal/catalog"
	"github.com/Clark-Hu/disc-catalog/internal/config"
	"github.com/Clark-Hu/disc-catalog/internal/domain"
)

// Resolver turns a barcode into metadata candidates.
type Resolver interface {
	Resolve(ctx context.Context, barcode string) ([]domain.Candidate, error)
}

// CatalogService manages persisted entries.
type CatalogService interface {
	ConfirmFromExternal(ctx context.Context, externalID int64, barcode string) (domain.CatalogEntry, error)
	CreateManual(ctx context.Context, in catalog.ManualInput) (domain.CatalogEntry, error)
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	Get(ctx context.Context, id string) (domain.CatalogEntry, error)
	GetByBarcode(ctx context.Context, barcode string) (domain.CatalogEntry, error)
	FindByTitle(ctx context.Context, title string) (domain.CatalogEntry, error)
	Update(ctx context.Context, id string, patch catalog.EntryPatch) (domain.CatalogEntry, error)
	Delete(ctx context.Context, id string) error
}

// HealthChecker reports whether backing services are reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	resolver Resolver
	catalog  CatalogService
	health   HealthChecker
	logger   zerolog.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, resolver Resolver, svc CatalogService, health HealthChecker, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(logAccess))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		catalog:  svc,
		health:   health,
		logger:   logger,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/catalog", func(r chi.Router) {
		r.Get("/", s.handleListEntries)
		r.Post("/", s.handleCreateEntry)
		r.Post("/scan", s.handleScan)
		r.Post("/confirm", s.handleConfirm)
		r.Get("/barcode/{barcode}", s.handleGetByBarcode)
		r.Get("/title/{title}", s.handleGetByTitle)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetEntry)
			r.Patch("/", s.handleUpdateEntry)
			r.Delete("/", s.handleDeleteEntry)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
			s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Service dependencies are unreachable", nil)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestIDField tags the request logger with chi's request id.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			logger := zerolog.Ctx(r.Context())
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func logAccess(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("http request")
}
