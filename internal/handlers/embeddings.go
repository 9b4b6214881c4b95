package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkoukk/tiktoken-go"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
)

const defaultEmbeddingModel = "Embeddings"

// EmbeddingsHandler serves POST /v1/embeddings.
type EmbeddingsHandler struct {
	client *gigachat.Client
	logger *slog.Logger
}

func NewEmbeddingsHandler(client *gigachat.Client, logger *slog.Logger) *EmbeddingsHandler {
	return &EmbeddingsHandler{client: client, logger: logger}
}

func (h *EmbeddingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req openai.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			"Invalid JSON in request body: "+err.Error(),
			openai.ErrTypeInvalidRequest, openai.ErrTypeInvalidRequest)

		return
	}

	texts := req.InputTexts()
	if len(texts) == 0 {
		param := "input"
		writeErrorDetail(w, http.StatusBadRequest,
			"Input is required",
			openai.ErrTypeInvalidRequest, openai.ErrTypeInvalidRequest, &param)

		return
	}

	model := req.Model
	if model == "" {
		model = defaultEmbeddingModel
	}

	resp, err := h.client.Embeddings(r.Context(), texts, model)
	if err != nil {
		writeVendorError(w, h.logger, "Error calling GigaChat embeddings API", err)
		return
	}

	writeJSON(w, http.StatusOK, h.buildResponse(resp, texts, model))
}

func (h *EmbeddingsHandler) buildResponse(resp *gigachat.EmbeddingResponse, texts []string, model string) *openai.EmbeddingResponse {
	out := &openai.EmbeddingResponse{
		Object: "list",
		Data:   make([]openai.Embedding, 0, len(resp.Data)),
		Model:  model,
	}

	for i, d := range resp.Data {
		index := d.Index
		if index == 0 && i > 0 {
			index = i
		}

		out.Data = append(out.Data, openai.Embedding{
			Object:    "embedding",
			Embedding: d.Embedding,
			Index:     index,
		})
	}

	if resp.Usage != nil && resp.Usage.PromptTokens > 0 {
		out.Usage = openai.EmbeddingUsage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}

		return out
	}

	// The vendor does not always report usage for embeddings; estimate it
	// so clients relying on the field still get a number.
	tokens := h.estimateTokens(texts)
	out.Usage = openai.EmbeddingUsage{PromptTokens: tokens, TotalTokens: tokens}

	return out
}

func (h *EmbeddingsHandler) estimateTokens(texts []string) int {
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		h.logger.Error("Failed to get tiktoken encoding", "error", err)
		return 0
	}

	total := 0
	for _, t := range texts {
		total += len(tke.Encode(t, nil, nil))
	}

	return total
}
