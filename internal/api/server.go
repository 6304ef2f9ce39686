// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/metrics"
	"github.com/chris/dayplan/internal/telemetry"
)

// Messenger runs one assistant turn.
type Messenger interface {
	SendMessage(ctx context.Context, utterance, conversationID string) (*agent.Reply, error)
}

type ConversationReader interface {
	ListConversations(ctx context.Context, userID string, limit int) ([]db.Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (*db.Conversation, error)
}

type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (auth.Principal, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr          string
	Agent         Messenger
	Conversations ConversationReader
	Resolver      TokenResolver
	// Metrics and Health are optional.
	Metrics *metrics.Metrics
	Health  Pinger
	Log     *telemetry.Logger
	// TurnTimeout bounds the write side of a request; it should exceed the
	// agent's own turn timeout.
	TurnTimeout time.Duration
}

type Server struct {
	cfg        Config
	router     *chi.Mux
	httpServer *http.Server
	log        *telemetry.Logger
}

func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = telemetry.Nop()
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 2 * time.Minute
	}
	s := &Server{cfg: cfg, log: cfg.Log}
	s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.TurnTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/messages", s.handleSendMessage)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{conversationID}", s.handleGetConversation)
	})

	s.router = r
}

// authenticate resolves the bearer token and stores the principal in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, err := s.cfg.Resolver.ResolveToken(r.Context(), token)
		if errors.Is(err, auth.ErrUnauthenticated) {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if err != nil {
			s.log.Error(r.Context(), "api: resolving token failed", telemetry.Fields{"error": err.Error()})
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "api: listening", telemetry.Fields{"addr": s.cfg.Addr})
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
