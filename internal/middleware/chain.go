// Package middleware provides the explicit interceptor objects composed
// around the HTTP surface: auth, rate limiting, CORS, request logging and
// SSL redirect.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gigaproxy/internal/config"
	"gigaproxy/internal/translate"
)

// Middleware wraps a handler with one cross-cutting concern.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered middleware composition.
type Chain struct {
	middlewares []Middleware
}

func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: middlewares}
}

// Then adds more middleware to the chain.
func (c Chain) Then(middlewares ...Middleware) Chain {
	return Chain{middlewares: append(c.middlewares, middlewares...)}
}

// Handler applies all middleware in the chain to the given handler.
func (c Chain) Handler(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	return handler
}

// Set contains all configured middleware for easy composition.
type Set struct {
	SSLRedirect Middleware
	CORS        Middleware
	Logging     Middleware
	RateLimit   Middleware
	Auth        Middleware
}

func NewSet(cfg *config.Config, logger *slog.Logger) Set {
	return Set{
		SSLRedirect: NewSSLRedirectMiddleware(cfg.ForceSSL, logger),
		CORS:        NewCORSMiddleware(cfg.AllowedOrigins),
		Logging:     NewLoggingMiddleware(logger),
		RateLimit:   NewRateLimitMiddleware(cfg.RateLimit, cfg.RateWindow, logger),
		Auth:        NewAuthMiddleware(cfg.APIKeys, logger),
	}
}

// ProtectedChain is the full chain for API endpoints.
func (s Set) ProtectedChain() Chain {
	return New(
		s.SSLRedirect,
		s.CORS,
		s.Logging,
		s.RateLimit,
		s.Auth,
	)
}

// PublicChain covers health and version endpoints: no auth, no rate limit.
func (s Set) PublicChain() Chain {
	return New(
		s.SSLRedirect,
		s.CORS,
		s.Logging,
	)
}

// writeError emits the uniform error envelope used across the proxy.
func writeError(w http.ResponseWriter, status int, message, errType, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	envelope := translate.ErrorEnvelope(message, errType, code, nil)
	_ = json.NewEncoder(w).Encode(envelope)
}
