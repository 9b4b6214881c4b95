// Package gigachat is the thin client for the GigaChat REST API: chat,
// streaming chat, embeddings, model listing and OAuth token refresh. It does
// no schema translation; that lives in internal/translate.
package gigachat

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
)

const doneSentinel = "[DONE]"

// APIError is a non-2xx reply from the vendor API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gigachat api returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the GigaChat API using bearer tokens from the TokenManager.
type Client struct {
	baseURL    string
	tokens     *TokenManager
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, tokens *TokenManager, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		logger:     logger,
	}
}

// NewHTTPClient builds the transport used for all vendor calls. The vendor
// chain is signed by a non-default root CA, so an extra bundle can be
// appended; insecure disables verification entirely.
func NewHTTPClient(caBundlePath string, insecure bool) (*http.Client, error) {
	tlsConfig := &tls.Config{}

	if insecure {
		tlsConfig.InsecureSkipVerify = true
	} else if caBundlePath != "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}

		pem, err := os.ReadFile(caBundlePath)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}

		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from CA bundle %s", caBundlePath)
		}

		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}

// Chat performs a non-streaming chat completion.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}

	return &resp, nil
}

// Embeddings computes embeddings for the given texts.
func (c *Client) Embeddings(ctx context.Context, texts []string, model string) (*EmbeddingResponse, error) {
	body, err := c.post(ctx, "/embeddings", &EmbeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}

	var resp EmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal embeddings response: %w", err)
	}

	return &resp, nil
}

// Models returns the vendor model list verbatim, for passthrough.
func (c *Client) Models(ctx context.Context) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create models request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// StreamEvent is one unit delivered by a ChatStream: a chunk or a terminal
// read error, never both.
type StreamEvent struct {
	Chunk *ChatChunk
	Err   error
}

// ChatStream is a live vendor streaming session. Events are delivered on an
// unbuffered channel: the next vendor read does not happen until the
// previous event has been consumed, so a slow client naturally pauses
// consumption of the vendor stream.
type ChatStream struct {
	events chan StreamEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the event channel. It is closed after the vendor sequence
// is exhausted or a terminal error has been delivered.
func (s *ChatStream) Events() <-chan StreamEvent {
	return s.events
}

// Close releases the underlying vendor connection. Safe to call multiple
// times and required on every exit path.
func (s *ChatStream) Close() {
	s.cancel()
	<-s.done
}

// StreamChat starts a streaming chat completion. The returned stream must be
// closed by the caller.
func (c *Client) StreamChat(ctx context.Context, req *ChatRequest) (*ChatStream, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	streamReq := *req
	streamReq.Stream = true

	payload, err := json.Marshal(&streamReq)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := c.readBody(resp)
		resp.Body.Close()
		cancel()

		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	stream := &ChatStream{
		events: make(chan StreamEvent),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.pump(ctx, resp, stream)

	return stream, nil
}

// pump reads SSE lines from the vendor response and forwards decoded chunks
// until [DONE], EOF or cancellation.
func (c *Client) pump(ctx context.Context, resp *http.Response, stream *ChatStream) {
	defer close(stream.done)
	defer close(stream.events)
	defer resp.Body.Close()

	reader, err := decompressReader(resp)
	if err != nil {
		stream.send(ctx, StreamEvent{Err: fmt.Errorf("decompress stream: %w", err)})
		return
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		if data == doneSentinel {
			return
		}

		var chunk ChatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Warn("Skipping malformed stream chunk", "error", err)
			continue
		}

		if !stream.send(ctx, StreamEvent{Chunk: &chunk}) {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		stream.send(ctx, StreamEvent{Err: fmt.Errorf("read stream: %w", err)})
	}
}

func (s *ChatStream) send(ctx context.Context, ev StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	reader, err := decompressReader(resp)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

func decompressReader(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
