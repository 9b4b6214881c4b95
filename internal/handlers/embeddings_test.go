package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigaproxy/internal/openai"
)

func newEmbeddingsHandler(t *testing.T, vendor http.HandlerFunc) *EmbeddingsHandler {
	t.Helper()

	return NewEmbeddingsHandler(newVendorBackend(t, vendor), testLogger())
}

func TestEmbeddingsHandlerMissingInput(t *testing.T) {
	handler := newEmbeddingsHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("vendor must not be called")
	})

	for _, body := range []string{`{}`, `{"input": ""}`, `{"input": []}`} {
		req := httptest.NewRequest("POST", "/v1/embeddings", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeErrorBody(t, rec.Body)
		assert.Equal(t, openai.ErrTypeInvalidRequest, resp.Error.Type)
		require.NotNil(t, resp.Error.Param)
		assert.Equal(t, "input", *resp.Error.Param)
	}
}

func TestEmbeddingsHandlerSingleString(t *testing.T) {
	handler := newEmbeddingsHandler(t, func(w http.ResponseWriter, r *http.Request) {
		var vendorReq struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&vendorReq))
		assert.Equal(t, "Embeddings", vendorReq.Model)
		assert.Equal(t, []string{"hello world"}, vendorReq.Input)

		fmt.Fprint(w, `{
			"object": "list",
			"data": [{"object": "embedding", "embedding": [0.1, 0.2, 0.3], "index": 0}],
			"model": "Embeddings",
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	})

	req := httptest.NewRequest("POST", "/v1/embeddings", strings.NewReader(`{"input": "hello world"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp openai.EmbeddingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, "Embeddings", resp.Model)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "embedding", resp.Data[0].Object)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, resp.Data[0].Embedding)
	assert.Equal(t, 2, resp.Usage.PromptTokens)
}

func TestEmbeddingsHandlerBatchIndexes(t *testing.T) {
	handler := newEmbeddingsHandler(t, func(w http.ResponseWriter, r *http.Request) {
		// Vendor omits indexes; position decides them.
		fmt.Fprint(w, `{
			"object": "list",
			"data": [
				{"object": "embedding", "embedding": [0.1]},
				{"object": "embedding", "embedding": [0.2]},
				{"object": "embedding", "embedding": [0.3]}
			],
			"model": "Embeddings"
		}`)
	})

	req := httptest.NewRequest("POST", "/v1/embeddings", strings.NewReader(`{"input": ["a", "b", "c"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp openai.EmbeddingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	require.Len(t, resp.Data, 3)
	for i, d := range resp.Data {
		assert.Equal(t, i, d.Index)
	}

	// No vendor usage: the proxy estimates, prompt and total always match.
	assert.Equal(t, resp.Usage.PromptTokens, resp.Usage.TotalTokens)
}

func TestEmbeddingsHandlerCustomModel(t *testing.T) {
	handler := newEmbeddingsHandler(t, func(w http.ResponseWriter, r *http.Request) {
		var vendorReq struct {
			Model string `json:"model"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&vendorReq))
		assert.Equal(t, "EmbeddingsGigaR", vendorReq.Model)

		fmt.Fprint(w, `{"object": "list", "data": [], "model": "EmbeddingsGigaR", "usage": {"prompt_tokens": 1, "total_tokens": 1}}`)
	})

	req := httptest.NewRequest("POST", "/v1/embeddings", strings.NewReader(`{"input": "x", "model": "EmbeddingsGigaR"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp openai.EmbeddingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "EmbeddingsGigaR", resp.Model)
}

func TestEmbeddingsHandlerVendorError(t *testing.T) {
	handler := newEmbeddingsHandler(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "embeddings unavailable", http.StatusBadGateway)
	})

	req := httptest.NewRequest("POST", "/v1/embeddings", strings.NewReader(`{"input": "x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decodeErrorBody(t, rec.Body)
	assert.Equal(t, openai.ErrTypeAPI, resp.Error.Type)
}
