// Package openai holds the OpenAI-compatible wire format served to clients.
package openai

import "encoding/json"

// Role constants accepted on incoming messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
	RoleTool      = "tool"
)

// ChatCompletionRequest is the incoming /v1/chat/completions body.
type ChatCompletionRequest struct {
	Model            string          `json:"model,omitempty"`
	Messages         []ChatMessage   `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
}

// ChatMessage is one entry of the incoming messages array. Content is a
// pointer because tool-calling assistant turns carry an explicit null.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool is an OpenAI tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a model-emitted function invocation. Arguments is always a
// JSON-encoded string on the wire.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletion is the non-streaming response envelope.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int              `json:"index"`
	Message      CompletionOutput `json:"message"`
	FinishReason *string          `json:"finish_reason"`
}

// CompletionOutput is the assistant message of a completed choice.
type CompletionOutput struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one streaming chunk envelope.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta carries the incremental fields of a streamed chunk.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   *string    `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// NullContent forces `"content": null` on the wire even though the
	// Content field above is omitempty. Tool-call deltas require it.
	NullContent bool `json:"-"`
}

// MarshalJSON emits an explicit null content when NullContent is set.
func (d Delta) MarshalJSON() ([]byte, error) {
	type alias Delta

	if !d.NullContent {
		return json.Marshal(alias(d))
	}

	out := struct {
		alias
		Content json.RawMessage `json:"content"`
	}{alias: alias(d), Content: json.RawMessage("null")}
	out.alias.Content = nil

	return json.Marshal(out)
}

// ErrorResponse is the uniform error envelope for all endpoints and modes.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    string  `json:"code"`
}

// Error type constants.
const (
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAuthentication = "authentication_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeAPI            = "api_error"
	ErrTypeServer         = "server_error"
	ErrTypeNotFound       = "not_found_error"
)

// EmbeddingRequest is the incoming /v1/embeddings body. Input is either a
// single string or an array of strings.
type EmbeddingRequest struct {
	Input json.RawMessage `json:"input"`
	Model string          `json:"model,omitempty"`
}

// InputTexts normalizes the input field to a string slice. Returns nil if
// the field is absent, empty, or neither a string nor a string array.
func (r *EmbeddingRequest) InputTexts() []string {
	if len(r.Input) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(r.Input, &single); err == nil {
		if single == "" {
			return nil
		}

		return []string{single}
	}

	var many []string
	if err := json.Unmarshal(r.Input, &many); err == nil && len(many) > 0 {
		return many
	}

	return nil
}

// EmbeddingResponse is the outgoing embeddings envelope.
type EmbeddingResponse struct {
	Object string         `json:"object"`
	Data   []Embedding    `json:"data"`
	Model  string         `json:"model"`
	Usage  EmbeddingUsage `json:"usage"`
}

type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
