package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/docuchat/dchat/chat"
	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
	"github.com/ZanzyTHEbar/docuchat/dchat/config"
)

//go:embed static/index.html
var indexHTML []byte

// Server exposes one chat session over HTTP: the embedded page, a
// streaming chat endpoint, and transcript, settings and metrics APIs.
type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	session *chat.Session
	orch    *chat.Orchestrator
	cache   ports.Cache

	http *http.Server
}

// New wires the handlers onto a fresh mux and prepares the HTTP server.
func New(cfg *config.Config, logger zerolog.Logger, session *chat.Session, orch *chat.Orchestrator, cache ports.Cache) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		session: session,
		orch:    orch,
		cache:   cache,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/healthz", s.handleHealthz)

	s.http = &http.Server{
		Addr:              cfg.DChat.Server.Addr,
		Handler:           s.withAccessLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the configured handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight requests within
// ctx, then waits for any still-running turn to finish committing.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.orch.Wait()
	return err
}

// ApplyHistoryUpdate is the config watcher callback: live edits to the
// history section take effect without a restart, re-truncating immediately.
func (s *Server) ApplyHistoryUpdate(update config.HistoryUpdate) {
	if update.Strategy != "" {
		s.session.SetStrategy(chat.ParseStrategy(update.Strategy))
	}
	if update.MaxMessages > 0 {
		applied := s.session.SetMaxMessages(update.MaxMessages)
		s.logger.Info().Int("max_messages", applied).Msg("history limit updated from config")
	}
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
