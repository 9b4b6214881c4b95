package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
	"gigaproxy/internal/stream"
	"gigaproxy/internal/translate"
)

// ChatHandler serves POST /v1/chat/completions in both streaming and
// non-streaming modes.
type ChatHandler struct {
	client    *gigachat.Client
	mapper    *translate.Mapper
	assembler *translate.Assembler
	reframer  *stream.Reframer
	logger    *slog.Logger
}

func NewChatHandler(client *gigachat.Client, mapper *translate.Mapper, assembler *translate.Assembler, logger *slog.Logger, stallTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		client:    client,
		mapper:    mapper,
		assembler: assembler,
		reframer:  stream.NewReframer(assembler, logger, stallTimeout),
		logger:    logger,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			"Invalid JSON in request body: "+err.Error(),
			openai.ErrTypeInvalidRequest, openai.ErrTypeInvalidRequest)

		return
	}

	if len(req.Messages) == 0 {
		param := "messages"
		writeErrorDetail(w, http.StatusBadRequest,
			"Messages are required",
			openai.ErrTypeInvalidRequest, openai.ErrTypeInvalidRequest, &param)

		return
	}

	vendorReq := h.mapper.VendorChatRequest(&req, req.Stream)

	h.logger.Info("Chat completion request",
		"stream", req.Stream,
		"messages", len(req.Messages),
		"functions", len(vendorReq.Functions),
	)

	if req.Stream {
		h.serveStream(w, r, vendorReq)
		return
	}

	resp, err := h.client.Chat(r.Context(), vendorReq)
	if err != nil {
		writeVendorError(w, h.logger, "Error communicating with GigaChat API", err)
		return
	}

	writeJSON(w, http.StatusOK, h.assembler.ChatCompletion(resp))
}

func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, vendorReq *gigachat.ChatRequest) {
	vendorStream, err := h.client.StreamChat(r.Context(), vendorReq)
	if err != nil {
		writeVendorError(w, h.logger, "Error starting GigaChat stream", err)
		return
	}

	h.reframer.Run(r.Context(), w, vendorStream)
}
