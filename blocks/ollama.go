package blocks

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/runloom/core/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// OllamaWireMessage mirrors the shape Ollama's /api/chat expects for
// one turn of conversation history (spec.md §4.8 "Ollama").
type OllamaWireMessage struct {
	Role      string               `json:"role"`
	Content   string               `json:"content,omitempty"`
	Images    []string             `json:"images,omitempty"`
	ToolCalls []OllamaWireToolCall `json:"tool_calls,omitempty"`
}

// OllamaWireToolCall is Ollama's OpenAI-style function-call shape.
type OllamaWireToolCall struct {
	Type     string `json:"type"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// V1ToOllama converts a v1-content AI/human message back to Ollama
// wire format before sending it in a multi-turn conversation (spec.md
// §4.8): text and image blocks split into Content/Images, tool calls
// become OpenAI-style {type: function, function: {name, arguments}}.
func V1ToOllama(role string, blocks []schema.ContentBlock, toolCalls []schema.ToolCall) OllamaWireMessage {
	msg := OllamaWireMessage{Role: role}

	var text []byte
	for _, b := range blocks {
		switch b.Type {
		case schema.BlockText, schema.BlockTextPlain:
			text = append(text, b.Text...)
		case schema.BlockImage:
			if b.Base64 != "" {
				msg.Images = append(msg.Images, b.Base64)
			}
		}
	}
	msg.Content = string(text)

	for _, tc := range toolCalls {
		wc := OllamaWireToolCall{Type: "function"}
		wc.Function.Name = tc.Name
		wc.Function.Arguments = tc.Args
		msg.ToolCalls = append(msg.ToolCalls, wc)
	}
	return msg
}

// ollamaFunctionNameKey is the pseudo-key Ollama sometimes echoes
// inside structured tool-call arguments, which the parser below
// strips (spec.md §4.9 "Ollama adapter").
const ollamaFunctionNameKey = "functionName"

// ParseOllamaToolArgs normalizes an Ollama tool call's arguments,
// which arrive either as a structured object or a JSON-encoded
// string: strings are JSON-decoded, the functionName pseudo-key is
// dropped, and any string-valued field that itself parses to an
// object/array is recursively decoded.
func ParseOllamaToolArgs(raw any) map[string]any {
	var obj map[string]any
	switch v := raw.(type) {
	case map[string]any:
		obj = v
	case string:
		var decoded map[string]any
		if err := jsonAPI.UnmarshalFromString(v, &decoded); err == nil {
			obj = decoded
		} else {
			return map[string]any{}
		}
	default:
		return map[string]any{}
	}

	delete(obj, ollamaFunctionNameKey)
	for k, v := range obj {
		if s, ok := v.(string); ok {
			var nested any
			if err := jsonAPI.UnmarshalFromString(s, &nested); err == nil {
				switch nested.(type) {
				case map[string]any, []any:
					obj[k] = nested
				}
			}
		}
	}
	return obj
}
