package webserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tejzpr/formgate/internal/access"
	"github.com/tejzpr/formgate/internal/admin"
	"github.com/tejzpr/formgate/internal/auth"
	"github.com/tejzpr/formgate/internal/events"
	"github.com/tejzpr/formgate/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	DB          *gorm.DB
	Coordinator *access.Coordinator
	Admin       *admin.Service
	Broker      *events.Broker
	JWTSecret   string
	// RequestTimeout bounds every non-streaming request. Zero disables it.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	router chi.Router
}

func New(deps Deps) *Server {
	s := &Server{deps: deps, logger: logging.OrNop(deps.Logger)}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(cors)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.deps.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.deps.RequestTimeout))
		}

		// Guest routes. The access token is the credential.
		r.Get("/forms/token/{token}", s.handleViewForm)
		r.Post("/forms/{formId}/response", s.handleSubmitResponse)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.deps.JWTSecret))

			r.Get("/forms", s.handleListForms)
			r.Post("/forms", s.handleCreateForm)
			r.Get("/forms/{formId}", s.handleGetForm)
			r.Put("/forms/{formId}", s.handleReplaceForm)
			r.Patch("/forms/{formId}", s.handleUpdateForm)
			r.Delete("/forms/{formId}", s.handleDeleteForm)
			r.Post("/forms/{formId}/guests", s.handleAssignGuest)
			r.Get("/forms/{formId}/guests", s.handleListGuests)
			r.Get("/forms/{formId}/responses", s.handleListResponses)
		})
	})

	r.With(auth.Middleware(s.deps.JWTSecret)).Get("/events", s.handleEvents)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.deps.Broker != nil {
		// Event streams never finish on their own.
		srv.RegisterOnShutdown(s.deps.Broker.Close)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := s.deps.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
