// Package handlers implements the OpenAI-compatible HTTP surface. Handlers
// validate locally, call the vendor client through the translation layer and
// map failures onto the uniform error taxonomy.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
	"gigaproxy/internal/translate"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorDetail(w http.ResponseWriter, status int, message, errType, code string, param *string) {
	writeJSON(w, status, translate.ErrorEnvelope(message, errType, code, param))
}

func writeError(w http.ResponseWriter, status int, message, errType, code string) {
	writeErrorDetail(w, status, message, errType, code, nil)
}

// writeVendorError maps a vendor/transport failure onto the error taxonomy:
// a vendor API reply becomes 502 api_error, anything else 500 server_error.
func writeVendorError(w http.ResponseWriter, logger *slog.Logger, context string, err error) {
	var apiErr *gigachat.APIError
	if errors.As(err, &apiErr) {
		logger.Error("Vendor API error", "context", context, "status", apiErr.StatusCode, "error", err)
		writeError(w, http.StatusBadGateway, context+": "+err.Error(), openai.ErrTypeAPI, openai.ErrTypeAPI)

		return
	}

	logger.Error("Vendor call failed", "context", context, "error", err)
	writeError(w, http.StatusInternalServerError, context+": "+err.Error(), openai.ErrTypeServer, openai.ErrTypeServer)
}
