package translate

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
)

func testMapper() *Mapper {
	return NewMapper(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func strPtr(s string) *string { return &s }

func TestVendorMessagesRoles(t *testing.T) {
	m := testMapper()

	tests := []struct {
		name     string
		role     string
		expected string
	}{
		{"system", "system", gigachat.RoleSystem},
		{"user", "user", gigachat.RoleUser},
		{"assistant", "assistant", gigachat.RoleAssistant},
		{"mixed case", "System", gigachat.RoleSystem},
		{"upper case", "USER", gigachat.RoleUser},
		{"unknown falls back to user", "moderator", gigachat.RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.VendorMessages([]openai.ChatMessage{
				{Role: tt.role, Content: strPtr("hello")},
			})

			require.Len(t, out, 1)
			assert.Equal(t, tt.expected, out[0].Role)
			assert.Equal(t, "hello", out[0].Content)
		})
	}
}

func TestVendorMessagesToolResultEnvelope(t *testing.T) {
	m := testMapper()

	for _, role := range []string{"tool", "function"} {
		out := m.VendorMessages([]openai.ChatMessage{
			{Role: role, Content: strPtr("42 degrees"), Name: "get_weather"},
		})

		require.Len(t, out, 1)
		assert.Equal(t, gigachat.RoleFunction, out[0].Role)
		assert.Equal(t, "get_weather", out[0].Name)
		assert.JSONEq(t, `{"result": "42 degrees"}`, out[0].Content)
	}
}

func TestVendorMessagesAssistantToolCalls(t *testing.T) {
	m := testMapper()

	msg := openai.ChatMessage{
		Role:    "assistant",
		Content: nil,
		ToolCalls: []openai.ToolCall{
			{ID: "call_1", Type: "function", Function: openai.ToolCallFunction{
				Name: "get_weather", Arguments: `{"city":"Moscow"}`,
			}},
			{ID: "call_2", Type: "function", Function: openai.ToolCallFunction{
				Name: "get_time", Arguments: `{}`,
			}},
			{ID: "call_3", Type: "function", Function: openai.ToolCallFunction{
				Name: "get_date", Arguments: `{}`,
			}},
		},
	}

	out := m.VendorMessages([]openai.ChatMessage{msg})
	require.Len(t, out, 1)

	// Only the first call survives, content is cleared.
	require.NotNil(t, out[0].FunctionCall)
	assert.Equal(t, "get_weather", out[0].FunctionCall.Name)
	assert.JSONEq(t, `{"city":"Moscow"}`, string(out[0].FunctionCall.Arguments))
	assert.Empty(t, out[0].Content)
}

func TestVendorMessagesUnparsableToolArguments(t *testing.T) {
	m := testMapper()

	msg := openai.ChatMessage{
		Role: "assistant",
		ToolCalls: []openai.ToolCall{
			{ID: "call_1", Type: "function", Function: openai.ToolCallFunction{
				Name: "get_weather", Arguments: `not json at all`,
			}},
		},
	}

	out := m.VendorMessages([]openai.ChatMessage{msg})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].FunctionCall)
	assert.JSONEq(t, `{}`, string(out[0].FunctionCall.Arguments))
}

func TestVendorChatRequestParameters(t *testing.T) {
	m := testMapper()

	temp := 0.5
	topP := 0.9
	maxTokens := 256
	freq := 1.2
	pres := 0.3

	req := &openai.ChatCompletionRequest{
		Model:            "gpt-4",
		Messages:         []openai.ChatMessage{{Role: "user", Content: strPtr("hi")}},
		Temperature:      &temp,
		TopP:             &topP,
		MaxTokens:        &maxTokens,
		FrequencyPenalty: &freq,
		PresencePenalty:  &pres,
		Stop:             json.RawMessage(`["\n"]`),
	}

	out := m.VendorChatRequest(req, false)

	// The requested model name is replaced with the fixed vendor label.
	assert.Equal(t, ModelLabel, out.Model)
	assert.Equal(t, &temp, out.Temperature)
	assert.Equal(t, &topP, out.TopP)
	assert.Equal(t, &maxTokens, out.MaxTokens)
	assert.Equal(t, &freq, out.RepetitionPenalty)
	assert.False(t, out.Stream)
	assert.Zero(t, out.UpdateInterval)
}

func TestVendorChatRequestStreaming(t *testing.T) {
	m := testMapper()

	req := &openai.ChatCompletionRequest{
		Messages: []openai.ChatMessage{{Role: "user", Content: strPtr("hi")}},
	}

	out := m.VendorChatRequest(req, true)

	assert.True(t, out.Stream)
	assert.InDelta(t, 0.1, out.UpdateInterval, 1e-9)
}

func TestVendorFunctions(t *testing.T) {
	m := testMapper()

	tools := []openai.Tool{
		{
			Type: "function",
			Function: openai.ToolFunction{
				Name:        "get_weather",
				Description: "Look up the weather",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"city": map[string]any{"type": "string"},
					},
					"required": []any{"city"},
				},
			},
		},
		{
			// Non-function tool types are skipped.
			Type:     "retrieval",
			Function: openai.ToolFunction{Name: "ignored"},
		},
	}

	out := m.VendorFunctions(tools)
	require.Len(t, out, 1)

	assert.Equal(t, "get_weather", out[0].Name)
	assert.Equal(t, "Look up the weather", out[0].Description)
	assert.Equal(t, "object", out[0].Parameters.Type)
	assert.Contains(t, out[0].Parameters.Properties, "city")
	assert.Equal(t, []string{"city"}, out[0].Parameters.Required)
}

func TestVendorFunctionsDefaults(t *testing.T) {
	m := testMapper()

	out := m.VendorFunctions([]openai.Tool{
		{Type: "function", Function: openai.ToolFunction{Name: "noop"}},
	})

	require.Len(t, out, 1)
	assert.Equal(t, "object", out[0].Parameters.Type)
	assert.NotNil(t, out[0].Parameters.Properties)
	assert.NotNil(t, out[0].Parameters.Required)
	assert.Empty(t, out[0].Parameters.Required)
}

func TestVendorFunctionsEmpty(t *testing.T) {
	m := testMapper()

	assert.Nil(t, m.VendorFunctions(nil))
	assert.Nil(t, m.VendorFunctions([]openai.Tool{{Type: "retrieval"}}))
}

func TestToolCalls(t *testing.T) {
	m := testMapper()

	assert.Nil(t, m.ToolCalls(nil))

	out := m.ToolCalls(&gigachat.FunctionCall{
		Name:      "get_weather",
		Arguments: json.RawMessage(`{"city":"Moscow"}`),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "function", out[0].Type)
	assert.Regexp(t, `^call_[0-9a-f]{10}$`, out[0].ID)
	assert.Equal(t, "get_weather", out[0].Function.Name)
	assert.JSONEq(t, `{"city":"Moscow"}`, out[0].Function.Arguments)
}

func TestToolCallRoundTrip(t *testing.T) {
	m := testMapper()

	calls := m.ToolCalls(&gigachat.FunctionCall{
		Name:      "get_weather",
		Arguments: json.RawMessage(`{"city": "Moscow", "units": "metric"}`),
	})
	require.Len(t, calls, 1)

	// Feed the converted call back in as an assistant message.
	out := m.VendorMessages([]openai.ChatMessage{
		{Role: "assistant", ToolCalls: calls},
	})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].FunctionCall)

	assert.Equal(t, "get_weather", out[0].FunctionCall.Name)
	assert.JSONEq(t, `{"city": "Moscow", "units": "metric"}`, string(out[0].FunctionCall.Arguments))
}

func TestNormalizeArguments(t *testing.T) {
	m := testMapper()

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"object payload", `{"a":1}`, `{"a":1}`},
		{"string-encoded payload", `"{\"a\":1}"`, `{"a":1}`},
		{"empty", ``, `{}`},
		{"garbage", `not json`, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.normalizeArguments(json.RawMessage(tt.raw))

			if tt.expected == "{}" {
				assert.Equal(t, "{}", out)
				return
			}

			assert.JSONEq(t, tt.expected, out)
		})
	}
}

func TestNormalizeArgumentsNonJSONString(t *testing.T) {
	m := testMapper()

	// A string payload whose contents are not JSON passes through as-is.
	out := m.normalizeArguments(json.RawMessage(`"plain text"`))
	assert.Equal(t, "plain text", out)
}
