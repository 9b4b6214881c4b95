package handlers

import (
	"log/slog"
	"net/http"

	"gigaproxy/internal/gigachat"
)

// ModelsHandler serves GET /v1/models by passing the vendor's model list
// through verbatim.
type ModelsHandler struct {
	client *gigachat.Client
	logger *slog.Logger
}

func NewModelsHandler(client *gigachat.Client, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{client: client, logger: logger}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := h.client.Models(r.Context())
	if err != nil {
		writeVendorError(w, h.logger, "Failed to fetch models from GigaChat API", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write models response", "error", err)
	}
}
