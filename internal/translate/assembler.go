package translate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
)

// OpenAI finish reasons.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishToolCalls     = "tool_calls"
	FinishContentFilter = "content_filter"
)

// Assembler builds OpenAI-shaped response bodies and SSE frames from vendor
// responses and chunks.
type Assembler struct {
	mapper *Mapper
	logger *slog.Logger
	now    func() time.Time
}

// NewAssembler builds an assembler. The clock is injectable for tests; pass
// nil to use time.Now.
func NewAssembler(mapper *Mapper, logger *slog.Logger, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}

	return &Assembler{mapper: mapper, logger: logger, now: now}
}

// CompletionID generates a fresh response identifier in the OpenAI format.
func CompletionID() string {
	return "chatcmpl-" + shortID()
}

// NormalizeFinishReason maps a vendor finish reason onto the OpenAI
// taxonomy. The vendor's blacklist verdict means the message was blocked by
// content policy; anything unrecognized collapses to stop.
func (a *Assembler) NormalizeFinishReason(reason string) string {
	switch reason {
	case FinishStop, FinishLength, FinishToolCalls, FinishContentFilter:
		return reason
	case gigachat.FinishFunctionCall:
		return FinishToolCalls
	case gigachat.FinishBlacklist:
		return FinishContentFilter
	default:
		a.logger.Warn("Unknown vendor finish reason, normalizing to stop", "finish_reason", reason)
		return FinishStop
	}
}

// ChatCompletion builds the non-streaming OpenAI response envelope from a
// vendor response.
func (a *Assembler) ChatCompletion(resp *gigachat.ChatResponse) *openai.ChatCompletion {
	content := ""
	finishReason := FinishStop

	var toolCalls []openai.ToolCall

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]

		if choice.Message != nil {
			content = choice.Message.Content
			toolCalls = a.mapper.ToolCalls(choice.Message.FunctionCall)
		}

		if choice.FinishReason != "" {
			finishReason = a.NormalizeFinishReason(choice.FinishReason)
		}
	}

	message := openai.CompletionOutput{
		Role:    openai.RoleAssistant,
		Content: &content,
	}

	if len(toolCalls) > 0 {
		// Tool-calling responses carry no literal content.
		message.Content = nil
		message.ToolCalls = toolCalls
		finishReason = FinishToolCalls
	}

	usage := openai.Usage{}
	if resp.Usage != nil {
		usage.PromptTokens = resp.Usage.PromptTokens
		usage.CompletionTokens = resp.Usage.CompletionTokens
		usage.TotalTokens = resp.Usage.TotalTokens
	}

	return &openai.ChatCompletion{
		ID:      CompletionID(),
		Object:  "chat.completion",
		Created: a.now().Unix(),
		Model:   ModelLabel,
		Choices: []openai.Choice{
			{Index: 0, Message: message, FinishReason: &finishReason},
		},
		Usage: usage,
	}
}

// ChunkFields extracts the content, finish reason and tool calls from a
// vendor stream chunk. This is the single decode point for the chunk's
// optional fields. When a function call is present the content is forced to
// nil and the finish reason to tool_calls; the two delta kinds are mutually
// exclusive on the OpenAI wire.
func (a *Assembler) ChunkFields(chunk *gigachat.ChatChunk) (content *string, finishReason *string, toolCalls []openai.ToolCall) {
	empty := ""
	content = &empty

	for _, choice := range chunk.Choices {
		if choice.Delta != nil {
			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				content = choice.Delta.Content
			}

			if choice.Delta.FunctionCall != nil {
				toolCalls = a.mapper.ToolCalls(choice.Delta.FunctionCall)
				reason := FinishToolCalls
				finishReason = &reason
				content = nil
			}
		}

		if choice.FinishReason != nil && toolCalls == nil {
			normalized := a.NormalizeFinishReason(*choice.FinishReason)
			finishReason = &normalized
		}
	}

	return content, finishReason, toolCalls
}

// Chunk builds one streaming chunk envelope. Content is included whenever
// non-nil; tool calls force an explicit null content on the wire.
func (a *Assembler) Chunk(completionID string, created int64, content *string, finishReason *string, toolCalls []openai.ToolCall) *openai.ChatCompletionChunk {
	delta := openai.Delta{Content: content}

	if len(toolCalls) > 0 {
		delta.ToolCalls = toolCalls
		delta.Content = nil
		delta.NullContent = true
	}

	return &openai.ChatCompletionChunk{
		ID:      completionID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   ModelLabel,
		Choices: []openai.ChunkChoice{
			{Index: 0, Delta: delta, FinishReason: finishReason},
		},
	}
}

// RoleChunk builds the synthetic first frame announcing the assistant role.
func (a *Assembler) RoleChunk(completionID string, created int64) *openai.ChatCompletionChunk {
	return &openai.ChatCompletionChunk{
		ID:      completionID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   ModelLabel,
		Choices: []openai.ChunkChoice{
			{Index: 0, Delta: openai.Delta{Role: openai.RoleAssistant}, FinishReason: nil},
		},
	}
}

// ErrorEnvelope builds the uniform error body shared by all endpoints.
func ErrorEnvelope(message, errType, code string, param *string) *openai.ErrorResponse {
	return &openai.ErrorResponse{
		Error: openai.ErrorDetail{
			Message: message,
			Type:    errType,
			Param:   param,
			Code:    code,
		},
	}
}

// ErrorStreamFrame renders an error as a single SSE data frame followed
// immediately by the [DONE] sentinel, so streaming clients see the same
// error shape as non-streaming ones.
func ErrorStreamFrame(message string) []byte {
	envelope := ErrorEnvelope(fmt.Sprintf("Error: %s", message), openai.ErrTypeServer, openai.ErrTypeServer, nil)

	data, err := json.Marshal(envelope)
	if err != nil {
		data = []byte(`{"error":{"message":"internal error","type":"server_error","param":null,"code":"server_error"}}`)
	}

	return []byte(fmt.Sprintf("data: %s\n\ndata: [DONE]\n\n", data))
}
