package translate

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
)

func testAssembler() *Assembler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Unix(1700000000, 0) }

	return NewAssembler(NewMapper(logger), logger, now)
}

func TestCompletionID(t *testing.T) {
	id := CompletionID()

	assert.Regexp(t, `^chatcmpl-[0-9a-f]{10}$`, id)
	assert.NotEqual(t, id, CompletionID())
}

func TestNormalizeFinishReason(t *testing.T) {
	a := testAssembler()

	tests := []struct {
		in       string
		expected string
	}{
		{"stop", FinishStop},
		{"length", FinishLength},
		{"tool_calls", FinishToolCalls},
		{"content_filter", FinishContentFilter},
		{"function_call", FinishToolCalls},
		{"blacklist", FinishContentFilter},
		{"weird_value", FinishStop},
		{"", FinishStop},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, a.NormalizeFinishReason(tt.in), "reason %q", tt.in)
	}
}

func TestChatCompletion(t *testing.T) {
	a := testAssembler()

	resp := &gigachat.ChatResponse{
		Choices: []gigachat.Choice{
			{
				Message:      &gigachat.Message{Role: "assistant", Content: "Hello!"},
				FinishReason: "stop",
			},
		},
		Usage: &gigachat.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	out := a.ChatCompletion(resp)

	assert.Regexp(t, `^chatcmpl-`, out.ID)
	assert.Equal(t, "chat.completion", out.Object)
	assert.Equal(t, int64(1700000000), out.Created)
	assert.Equal(t, ModelLabel, out.Model)

	require.Len(t, out.Choices, 1)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Equal(t, "Hello!", *out.Choices[0].Message.Content)
	assert.Equal(t, openai.RoleAssistant, out.Choices[0].Message.Role)
	require.NotNil(t, out.Choices[0].FinishReason)
	assert.Equal(t, FinishStop, *out.Choices[0].FinishReason)

	assert.Equal(t, 10, out.Usage.PromptTokens)
	assert.Equal(t, 5, out.Usage.CompletionTokens)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestChatCompletionFunctionCall(t *testing.T) {
	a := testAssembler()

	resp := &gigachat.ChatResponse{
		Choices: []gigachat.Choice{
			{
				Message: &gigachat.Message{
					Role: "assistant",
					FunctionCall: &gigachat.FunctionCall{
						Name:      "get_weather",
						Arguments: json.RawMessage(`{"city":"Moscow"}`),
					},
				},
				FinishReason: "function_call",
			},
		},
	}

	out := a.ChatCompletion(resp)

	require.Len(t, out.Choices, 1)
	choice := out.Choices[0]

	// Tool-calling responses carry explicit null content.
	assert.Nil(t, choice.Message.Content)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", choice.Message.ToolCalls[0].Function.Name)
	require.NotNil(t, choice.FinishReason)
	assert.Equal(t, FinishToolCalls, *choice.FinishReason)
}

func TestChatCompletionNoChoicesOrUsage(t *testing.T) {
	a := testAssembler()

	out := a.ChatCompletion(&gigachat.ChatResponse{})

	require.Len(t, out.Choices, 1)
	require.NotNil(t, out.Choices[0].Message.Content)
	assert.Empty(t, *out.Choices[0].Message.Content)
	require.NotNil(t, out.Choices[0].FinishReason)
	assert.Equal(t, FinishStop, *out.Choices[0].FinishReason)
	assert.Zero(t, out.Usage.TotalTokens)
}

func TestChunkFieldsContent(t *testing.T) {
	a := testAssembler()

	text := "hello"
	chunk := &gigachat.ChatChunk{
		Choices: []gigachat.ChunkChoice{
			{Delta: &gigachat.Delta{Content: &text}},
		},
	}

	content, finishReason, toolCalls := a.ChunkFields(chunk)

	require.NotNil(t, content)
	assert.Equal(t, "hello", *content)
	assert.Nil(t, finishReason)
	assert.Nil(t, toolCalls)
}

func TestChunkFieldsEmptyDelta(t *testing.T) {
	a := testAssembler()

	content, finishReason, toolCalls := a.ChunkFields(&gigachat.ChatChunk{})

	// Absent vendor content still yields an empty string delta.
	require.NotNil(t, content)
	assert.Empty(t, *content)
	assert.Nil(t, finishReason)
	assert.Nil(t, toolCalls)
}

func TestChunkFieldsFinishReason(t *testing.T) {
	a := testAssembler()

	reason := "blacklist"
	chunk := &gigachat.ChatChunk{
		Choices: []gigachat.ChunkChoice{
			{FinishReason: &reason},
		},
	}

	_, finishReason, _ := a.ChunkFields(chunk)

	require.NotNil(t, finishReason)
	assert.Equal(t, FinishContentFilter, *finishReason)
}

func TestChunkFieldsFunctionCall(t *testing.T) {
	a := testAssembler()

	stop := "stop"
	chunk := &gigachat.ChatChunk{
		Choices: []gigachat.ChunkChoice{
			{
				Delta: &gigachat.Delta{
					FunctionCall: &gigachat.FunctionCall{
						Name:      "get_weather",
						Arguments: json.RawMessage(`{"city":"Moscow"}`),
					},
				},
				FinishReason: &stop,
			},
		},
	}

	content, finishReason, toolCalls := a.ChunkFields(chunk)

	assert.Nil(t, content)
	require.Len(t, toolCalls, 1)
	require.NotNil(t, finishReason)

	// The function call wins over the vendor-reported finish reason.
	assert.Equal(t, FinishToolCalls, *finishReason)
}

func TestChunkContentAndToolCallsMutuallyExclusive(t *testing.T) {
	a := testAssembler()

	text := "partial"
	chunk := a.Chunk("chatcmpl-test", 1700000000, &text, nil, nil)

	data, err := json.Marshal(chunk)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"content":"partial"`)
	assert.NotContains(t, string(data), "tool_calls")
}

func TestChunkToolCallsExplicitNullContent(t *testing.T) {
	a := testAssembler()

	reason := FinishToolCalls
	toolCalls := []openai.ToolCall{
		{ID: "call_abc", Type: "function", Function: openai.ToolCallFunction{
			Name: "get_weather", Arguments: `{"city":"Moscow"}`,
		}},
	}

	chunk := a.Chunk("chatcmpl-test", 1700000000, nil, &reason, toolCalls)

	data, err := json.Marshal(chunk)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"content":null`)
	assert.Contains(t, string(data), `"tool_calls"`)
	assert.Contains(t, string(data), `"finish_reason":"tool_calls"`)
}

func TestRoleChunk(t *testing.T) {
	a := testAssembler()

	chunk := a.RoleChunk("chatcmpl-test", 1700000000)

	data, err := json.Marshal(chunk)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"role":"assistant"`)
	assert.Contains(t, string(data), `"finish_reason":null`)
	assert.NotContains(t, string(data), `"content"`)
}

func TestErrorEnvelope(t *testing.T) {
	param := "messages"
	env := ErrorEnvelope("Messages are required", openai.ErrTypeInvalidRequest, openai.ErrTypeInvalidRequest, &param)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"error": {
			"message": "Messages are required",
			"type": "invalid_request_error",
			"param": "messages",
			"code": "invalid_request_error"
		}
	}`, string(data))
}

func TestErrorStreamFrame(t *testing.T) {
	frame := string(ErrorStreamFrame("upstream exploded"))

	assert.True(t, strings.HasPrefix(frame, "data: "))
	assert.True(t, strings.HasSuffix(frame, "data: [DONE]\n\n"))
	assert.Contains(t, frame, "Error: upstream exploded")
	assert.Contains(t, frame, openai.ErrTypeServer)
}
