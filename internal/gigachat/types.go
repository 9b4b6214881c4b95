package gigachat

import "encoding/json"

// Vendor role constants. GigaChat has no separate tool role; tool results
// arrive as function messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Vendor finish reasons. "blacklist" is the content-policy rejection.
const (
	FinishStop         = "stop"
	FinishLength       = "length"
	FinishFunctionCall = "function_call"
	FinishBlacklist    = "blacklist"
)

// Message is a GigaChat conversation message. A message carries at most one
// function call.
type Message struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionCall is a vendor function invocation. Arguments may arrive as a
// JSON object or as a JSON-encoded string depending on the model revision,
// so it is kept raw and decoded once by the translation layer.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Function is a vendor function definition, the flattened analog of an
// OpenAI tool's function field.
type Function struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  FunctionParameters `json:"parameters"`
}

type FunctionParameters struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// ChatRequest is the vendor chat payload.
type ChatRequest struct {
	Model             string     `json:"model"`
	Messages          []Message  `json:"messages"`
	Functions         []Function `json:"functions,omitempty"`
	Temperature       *float64   `json:"temperature,omitempty"`
	TopP              *float64   `json:"top_p,omitempty"`
	MaxTokens         *int       `json:"max_tokens,omitempty"`
	RepetitionPenalty *float64   `json:"repetition_penalty,omitempty"`
	Stream            bool       `json:"stream,omitempty"`
	UpdateInterval    float64    `json:"update_interval,omitempty"`
}

// ChatResponse is the vendor non-streaming response. Optional fields are
// pointers so absence is decided once at the deserialization boundary.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Object  string   `json:"object"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Message      *Message `json:"message,omitempty"`
	Index        int      `json:"index"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChunk is one incremental unit of a vendor stream.
type ChatChunk struct {
	Choices []ChunkChoice `json:"choices"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Object  string        `json:"object"`
	Usage   *Usage        `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Delta        *Delta  `json:"delta,omitempty"`
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

type Delta struct {
	Role         string        `json:"role,omitempty"`
	Content      *string       `json:"content,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// EmbeddingRequest is the vendor embeddings payload.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is the vendor embeddings response.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  *Usage          `json:"usage,omitempty"`
}

type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// tokenResponse is the OAuth refresh response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}
