package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"gigaproxy/internal/openai"
)

// NotFoundHandler is the catch-all terminal: unknown paths are rejected
// explicitly instead of being forwarded upstream.
type NotFoundHandler struct {
	logger *slog.Logger
}

func NewNotFoundHandler(logger *slog.Logger) *NotFoundHandler {
	return &NotFoundHandler{logger: logger}
}

func (h *NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	h.logger.Info("Request for unsupported path", "path", path, "method", r.Method)

	writeError(w, http.StatusNotFound,
		"Path not found: "+path,
		openai.ErrTypeNotFound, openai.ErrTypeNotFound)
}
