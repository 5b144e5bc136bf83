// Package httpapi serves the dashboard's JSON API over net/http.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"marketdash/internal/auth"
	"marketdash/internal/cache"
	"marketdash/internal/config"
	"marketdash/internal/pubsub"
)

const shutdownTimeout = 30 * time.Second

// ServerState is everything the handlers share for the life of the process.
type ServerState struct {
	Users  *auth.UserStore
	Market *cache.Market
	Issuer *auth.Issuer
	Gate   *auth.Gate
	Broker *pubsub.Broker
}

type Server struct {
	cfg    config.ServerConfig
	state  *ServerState
	logger *zap.Logger
	server *http.Server
}

func NewServer(cfg config.ServerConfig, state *ServerState, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		state:  state,
		logger: logger,
	}
}

// Handler builds the full middleware chain around the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/test", s.handleTest)
	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.Handle("GET /api/stocks", s.requireAuth(http.HandlerFunc(s.handleStocks)))
	mux.Handle("GET /api/nifty50", s.requireAuth(http.HandlerFunc(s.handleNifty)))
	mux.Handle("GET /api/sensex", s.requireAuth(http.HandlerFunc(s.handleSensex)))
	if s.state.Broker != nil {
		mux.Handle("GET /api/stream", s.requireAuth(http.HandlerFunc(s.handleStream)))
	}

	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	var h http.Handler = mux
	h = s.cors(h)
	h = s.recoverPanics(h)
	h = s.logRequests(h)
	return h
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.cfg.Port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
