// Package translate converts between the OpenAI wire schema served to
// clients and the GigaChat native schema, in both directions. All
// transformations are pure and degrade on malformed input rather than fail;
// anomalies are logged.
package translate

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"gigaproxy/internal/gigachat"
	"gigaproxy/internal/openai"
)

// ModelLabel is the fixed model name reported on all responses.
const ModelLabel = "GigaChat"

// streamUpdateInterval throttles vendor delta emission, in seconds.
const streamUpdateInterval = 0.1

type Mapper struct {
	logger *slog.Logger
}

func NewMapper(logger *slog.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// VendorChatRequest builds the full vendor chat payload from an incoming
// OpenAI request. tool_choice is accepted but not forwarded; the vendor
// decides on its own when to call a function.
func (m *Mapper) VendorChatRequest(req *openai.ChatCompletionRequest, stream bool) *gigachat.ChatRequest {
	out := &gigachat.ChatRequest{
		Model:       ModelLabel,
		Messages:    m.VendorMessages(req.Messages),
		Functions:   m.VendorFunctions(req.Tools),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}

	// The vendor has repetition_penalty as its closest analog.
	if req.FrequencyPenalty != nil {
		out.RepetitionPenalty = req.FrequencyPenalty
	}

	if req.PresencePenalty != nil {
		m.logger.Debug("Dropping presence_penalty, no vendor analog")
	}

	if len(req.Stop) > 0 {
		m.logger.Debug("Dropping stop sequences, no vendor analog")
	}

	if stream {
		out.UpdateInterval = streamUpdateInterval
	}

	return out
}

// VendorMessages converts OpenAI messages to vendor messages, one per input.
// It never fails; unrecognized roles fall back to user.
func (m *Mapper) VendorMessages(messages []openai.ChatMessage) []gigachat.Message {
	out := make([]gigachat.Message, 0, len(messages))

	for _, msg := range messages {
		out = append(out, m.vendorMessage(msg))
	}

	return out
}

func (m *Mapper) vendorMessage(msg openai.ChatMessage) gigachat.Message {
	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}

	role := gigachat.RoleUser

	switch strings.ToLower(msg.Role) {
	case openai.RoleSystem:
		role = gigachat.RoleSystem
	case openai.RoleUser:
		role = gigachat.RoleUser
	case openai.RoleAssistant:
		return m.vendorAssistantMessage(msg, content)
	case openai.RoleTool, openai.RoleFunction:
		return m.vendorFunctionResult(msg, content)
	default:
		m.logger.Warn("Unrecognized message role, defaulting to user", "role", msg.Role)
	}

	return gigachat.Message{Role: role, Content: content}
}

func (m *Mapper) vendorAssistantMessage(msg openai.ChatMessage, content string) gigachat.Message {
	out := gigachat.Message{Role: gigachat.RoleAssistant, Content: content}

	if len(msg.ToolCalls) == 0 {
		return out
	}

	// The vendor supports at most one function call per message; only the
	// first tool call survives.
	if len(msg.ToolCalls) > 1 {
		m.logger.Warn("Dropping extra tool calls, vendor supports one function call per message",
			"kept", msg.ToolCalls[0].Function.Name,
			"dropped", len(msg.ToolCalls)-1,
		)
	}

	first := msg.ToolCalls[0]

	var args map[string]any
	if err := json.Unmarshal([]byte(first.Function.Arguments), &args); err != nil {
		m.logger.Warn("Failed to parse tool call arguments, using empty object",
			"tool", first.Function.Name, "error", err)

		args = map[string]any{}
	}

	rawArgs, err := json.Marshal(args)
	if err != nil {
		rawArgs = []byte("{}")
	}

	out.FunctionCall = &gigachat.FunctionCall{
		Name:      first.Function.Name,
		Arguments: rawArgs,
	}

	// A function-calling turn carries no literal content on the vendor side.
	out.Content = ""

	return out
}

// vendorFunctionResult wraps a tool/function result into the vendor's
// required {"result": ...} envelope.
func (m *Mapper) vendorFunctionResult(msg openai.ChatMessage, content string) gigachat.Message {
	envelope, err := json.Marshal(map[string]string{"result": content})
	if err != nil {
		envelope = []byte(`{"result": ""}`)
	}

	return gigachat.Message{
		Role:    gigachat.RoleFunction,
		Content: string(envelope),
		Name:    msg.Name,
	}
}

// VendorFunctions flattens OpenAI tool definitions into vendor functions.
// Non-function tool types are skipped.
func (m *Mapper) VendorFunctions(tools []openai.Tool) []gigachat.Function {
	if len(tools) == 0 {
		return nil
	}

	out := make([]gigachat.Function, 0, len(tools))

	for _, tool := range tools {
		if tool.Type != "function" {
			continue
		}

		params := gigachat.FunctionParameters{
			Type:       "object",
			Properties: map[string]any{},
			Required:   []string{},
		}

		if raw := tool.Function.Parameters; raw != nil {
			if t, ok := raw["type"].(string); ok && t != "" {
				params.Type = t
			}

			if props, ok := raw["properties"].(map[string]any); ok {
				params.Properties = props
			}

			if req, ok := raw["required"].([]any); ok {
				for _, r := range req {
					if s, ok := r.(string); ok {
						params.Required = append(params.Required, s)
					}
				}
			} else if req, ok := raw["required"].([]string); ok {
				params.Required = req
			}
		}

		out = append(out, gigachat.Function{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  params,
		})
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// ToolCalls converts a vendor function call into the OpenAI tool_calls
// shape. Returns nil when the call is absent; otherwise exactly one entry
// with arguments normalized to a canonical JSON string.
func (m *Mapper) ToolCalls(fc *gigachat.FunctionCall) []openai.ToolCall {
	if fc == nil {
		return nil
	}

	return []openai.ToolCall{
		{
			ID:   "call_" + shortID(),
			Type: "function",
			Function: openai.ToolCallFunction{
				Name:      fc.Name,
				Arguments: m.normalizeArguments(fc.Arguments),
			},
		},
	}
}

// normalizeArguments turns vendor arguments (JSON object, JSON-encoded
// string, or garbage) into a JSON string with canonical escaping.
func (m *Mapper) normalizeArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}

	// String payload: the inner value is the arguments JSON. Validate and
	// re-encode it so escaping is canonical.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var parsed any
		if err := json.Unmarshal([]byte(asString), &parsed); err != nil {
			m.logger.Warn("Function call arguments string is not valid JSON, passing through", "error", err)
			return asString
		}

		encoded, err := json.Marshal(parsed)
		if err != nil {
			return asString
		}

		return string(encoded)
	}

	// Structured payload: re-encode the raw value itself.
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		m.logger.Warn("Function call arguments are not valid JSON, using empty object", "error", err)
		return "{}"
	}

	encoded, err := json.Marshal(parsed)
	if err != nil {
		return "{}"
	}

	return string(encoded)
}

// shortID returns 10 hex characters of a UUID, enough for log correlation
// within a single exchange.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
