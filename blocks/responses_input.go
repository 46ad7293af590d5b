package blocks

import (
	"github.com/runloom/core/schema"
)

// functionCallIDsKey is the v0.3 additional_kwargs key mapping tool
// call ids to Responses item ids, accepted on input for back-compat
// (spec.md §9 "Provider back-compat").
const functionCallIDsKey = "__openai_function_call_ids__"

// MessagesToResponsesInput converts a conversation into the Responses
// API's typed input-item array, as wire-level maps the adapter lifts
// into SDK params (spec.md §4.8, §6.2). AI messages expand into
// message / reasoning / function_call items; tool messages become
// function_call_output items. The v0.3 additional_kwargs layout
// (reasoning, tool_outputs, refusal, function-call-id mapping) is
// still accepted and reshaped here.
func MessagesToResponsesInput(messages []schema.Message) []map[string]any {
	var items []map[string]any
	for _, m := range messages {
		switch msg := m.(type) {
		case schema.SystemMessage:
			items = append(items, messageItem("system", inputTextParts(msg.Base())))
		case schema.HumanMessage:
			items = append(items, messageItem("user", userContentParts(msg.Base())))
		case schema.AIMessage:
			items = append(items, aiMessageToResponsesItems(msg)...)
		case schema.ToolMessage:
			items = append(items, map[string]any{
				"type":    "function_call_output",
				"call_id": msg.ToolCallID,
				"output":  msg.Text(),
			})
		case schema.ChatMessage:
			items = append(items, messageItem(string(msg.Role), inputTextParts(msg.Base())))
		}
	}
	return items
}

func messageItem(role string, content []map[string]any) map[string]any {
	return map[string]any{"type": "message", "role": role, "content": content}
}

func inputTextParts(base schema.BaseMessage) []map[string]any {
	if !base.Content.IsBlocks() {
		return []map[string]any{{"type": "input_text", "text": base.Content.Text}}
	}
	var out []map[string]any
	for _, b := range base.Content.Blocks {
		if b.Type == schema.BlockText || b.Type == schema.BlockTextPlain {
			out = append(out, map[string]any{"type": "input_text", "text": b.Text})
		}
	}
	return out
}

func userContentParts(base schema.BaseMessage) []map[string]any {
	if !base.Content.IsBlocks() {
		return []map[string]any{{"type": "input_text", "text": base.Content.Text}}
	}
	var out []map[string]any
	for _, b := range base.Content.Blocks {
		switch b.Type {
		case schema.BlockText, schema.BlockTextPlain:
			out = append(out, map[string]any{"type": "input_text", "text": b.Text})
		case schema.BlockImage:
			part := map[string]any{"type": "input_image"}
			if b.URL != "" {
				part["image_url"] = b.URL
			} else {
				part["image_url"] = "data:" + b.MimeType + ";base64," + b.Base64
			}
			if detail, ok := b.Extras["detail"]; ok {
				part["detail"] = detail
			}
			out = append(out, part)
		case schema.BlockFile:
			part := map[string]any{"type": "input_file"}
			if b.FileID != "" {
				part["file_id"] = b.FileID
			} else {
				part["file_data"] = "data:" + b.MimeType + ";base64," + b.Base64
				if b.Filename != "" {
					part["filename"] = b.Filename
				}
			}
			out = append(out, part)
		default:
			out = append(out, map[string]any{"type": "input_text", "text": b.Text})
		}
	}
	return out
}

// aiMessageToResponsesItems expands one AIMessage into its Responses
// input items, preserving content, tool calls, and the message id so a
// round trip through the wire format is lossless for those fields.
func aiMessageToResponsesItems(msg schema.AIMessage) []map[string]any {
	var items []map[string]any

	callIDs := functionCallIDMap(msg.AdditionalKwargs)

	// v0.3 back-compat: a reasoning item stashed whole in
	// additional_kwargs is re-emitted ahead of the message content.
	if reasoning, ok := msg.AdditionalKwargs["reasoning"].(map[string]any); ok {
		item := map[string]any{"type": "reasoning"}
		for k, v := range reasoning {
			item[k] = v
		}
		items = append(items, item)
	}

	var contentParts []map[string]any
	if msg.Content.IsBlocks() {
		for _, b := range msg.Content.Blocks {
			switch b.Type {
			case schema.BlockText, schema.BlockTextPlain:
				contentParts = append(contentParts, map[string]any{"type": "output_text", "text": b.Text})
			case schema.BlockReasoning:
				items = append(items, map[string]any{
					"type":    "reasoning",
					"summary": []any{map[string]any{"type": "summary_text", "text": b.Text}},
				})
			case schema.BlockToolCall:
				// Emitted below from msg.ToolCalls; skip to avoid doubling.
			case schema.BlockNonStandard:
				var raw map[string]any
				if jsonAPI.Unmarshal(b.Value, &raw) == nil {
					items = append(items, raw)
				}
			}
		}
	} else if msg.Content.Text != "" {
		contentParts = append(contentParts, map[string]any{"type": "output_text", "text": msg.Content.Text})
	}

	// v0.3 back-compat: a refusal from additional_kwargs rides along as
	// a refusal content part.
	if refusal, ok := msg.AdditionalKwargs["refusal"].(string); ok && refusal != "" {
		contentParts = append(contentParts, map[string]any{"type": "refusal", "refusal": refusal})
	}

	if len(contentParts) > 0 {
		item := messageItem("assistant", contentParts)
		if msg.ID != "" && !schema.HasReservedPrefix(msg.ID) {
			item["id"] = msg.ID
		}
		items = append(items, item)
	}

	for _, tc := range msg.ToolCalls {
		item := map[string]any{
			"type":      "function_call",
			"call_id":   tc.ID,
			"name":      tc.Name,
			"arguments": marshalArgs(tc.Args),
		}
		if itemID, ok := callIDs[tc.ID]; ok {
			item["id"] = itemID
		}
		items = append(items, item)
	}
	for _, itc := range msg.InvalidToolCalls {
		item := map[string]any{
			"type":      "function_call",
			"call_id":   itc.ID,
			"name":      itc.Name,
			"arguments": itc.Args,
		}
		if itemID, ok := callIDs[itc.ID]; ok {
			item["id"] = itemID
		}
		items = append(items, item)
	}

	// v0.3 back-compat: tool_outputs stashed in additional_kwargs
	// (built-in tool call items from a previous turn) pass through.
	if outputs, ok := msg.AdditionalKwargs["tool_outputs"].([]any); ok {
		for _, o := range outputs {
			if om, ok := o.(map[string]any); ok {
				items = append(items, om)
			}
		}
	}

	return items
}

func functionCallIDMap(kwargs map[string]any) map[string]string {
	out := map[string]string{}
	raw, ok := kwargs[functionCallIDsKey].(map[string]any)
	if !ok {
		return out
	}
	for callID, itemID := range raw {
		if s, ok := itemID.(string); ok {
			out[callID] = s
		}
	}
	return out
}

func marshalArgs(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	raw, err := jsonAPI.MarshalToString(args)
	if err != nil {
		return "{}"
	}
	return raw
}
