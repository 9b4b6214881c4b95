// Package server wires the translation proxy together: vendor client,
// credential provider, translation layer, middleware chains and routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigaproxy/internal/config"
	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/handlers"
	"gigaproxy/internal/middleware"
	"gigaproxy/internal/translate"
)

const (
	ServiceName        = "GigaChat API Proxy"
	ServiceDescription = "OpenAI-compatible proxy server for the GigaChat API"
)

type Server struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger
	server  *http.Server
}

func New(cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	s := &Server{cfg: cfg, version: version, logger: logger}

	mux, err := s.setupRoutes()
	if err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	return s, nil
}

// Start runs the server until an interrupt or SIGTERM, then shuts down
// gracefully.
func (s *Server) Start() error {
	s.logger.Info("Starting server", "address", s.server.Addr)

	if s.cfg.UsingDevKey {
		s.logger.Warn("No API keys configured, using default development key", "key", config.DevAPIKey)
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() (*http.ServeMux, error) {
	httpClient, err := gigachat.NewHTTPClient(s.cfg.CABundle, s.cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("build vendor HTTP client: %w", err)
	}

	tokens := gigachat.NewTokenManager(s.cfg.MasterCredential, s.cfg.OAuthURL, s.cfg.Scope, httpClient, s.logger, nil)
	client := gigachat.NewClient(s.cfg.BaseURL, tokens, httpClient, s.logger)

	mapper := translate.NewMapper(s.logger)
	assembler := translate.NewAssembler(mapper, s.logger, nil)

	chatHandler := handlers.NewChatHandler(client, mapper, assembler, s.logger, s.cfg.StallTimeout)
	embeddingsHandler := handlers.NewEmbeddingsHandler(client, s.logger)
	modelsHandler := handlers.NewModelsHandler(client, s.logger)
	healthHandler := handlers.NewHealthHandler(ServiceName, s.version, s.logger)
	versionHandler := handlers.NewVersionHandler(ServiceName, s.version, ServiceDescription)
	notFoundHandler := handlers.NewNotFoundHandler(s.logger)

	set := middleware.NewSet(s.cfg, s.logger)
	protected := set.ProtectedChain()
	public := set.PublicChain()

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", protected.Handler(chatHandler))
	mux.Handle("POST /v1/embeddings", protected.Handler(embeddingsHandler))
	mux.Handle("GET /v1/models", protected.Handler(modelsHandler))
	mux.Handle("GET /api/version", public.Handler(versionHandler))
	mux.Handle("GET /health", public.Handler(healthHandler))
	mux.Handle("/", public.Handler(notFoundHandler))

	return mux, nil
}
