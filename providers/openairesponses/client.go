// Package openairesponses adapts the official OpenAI Go SDK's
// Responses API to the chatmodel.Adapter interface (spec.md §4.9):
// item-array inputs, event-typed SSE streaming, and built-in
// (server-side) tools.
package openairesponses

import (
	"context"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/runloom/core/blocks"
	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/llmerrors"
	"github.com/runloom/core/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Client wraps the official OpenAI Go SDK's Responses service as a
// chatmodel.Adapter.
type Client struct {
	client   *openai.Client
	provider string
	model    string
	options  map[string]any

	tools      []chatmodel.ToolDefinition
	toolChoice chatmodel.ToolChoice

	DebugChunks bool
}

// NewClient builds a Client. provider labels logs and debug files; an
// empty baseURL targets the public API.
func NewClient(provider, apiKey, model, baseURL string, options map[string]any) (*Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{client: &client, provider: provider, model: model, options: options}, nil
}

func (c *Client) ProviderName() string { return c.provider }
func (c *Client) ModelName() string    { return c.model }

func (c *Client) IdentifyingParams() map[string]any {
	params := map[string]any{"provider": c.provider, "model": c.model, "endpoint": "responses"}
	for k, v := range c.options {
		params[k] = v
	}
	return params
}

// WithTools implements chatmodel.ToolBindingAdapter. Both function
// tools and built-in tools are accepted; built-ins are the reason this
// endpoint exists (spec.md §4.9).
func (c *Client) WithTools(tools []chatmodel.ToolDefinition, choice chatmodel.ToolChoice) chatmodel.Adapter {
	clone := *c
	clone.tools = append([]chatmodel.ToolDefinition(nil), tools...)
	clone.toolChoice = choice
	return &clone
}

func (c *Client) buildParams(messages []schema.Message, stop []string) (responses.ResponseNewParams, error) {
	items, err := convertInputItems(blocks.MessagesToResponsesInput(messages))
	if err != nil {
		return responses.ResponseNewParams{}, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	// The Responses API has no stop-sequence parameter; a configured
	// stop list is a caller error rather than something to drop.
	if len(stop) > 0 {
		return responses.ResponseNewParams{}, llmerrors.NewConfigurationError("stop sequences are not supported by the Responses endpoint")
	}

	if err := c.applyOptions(&params); err != nil {
		return responses.ResponseNewParams{}, err
	}
	if err := c.applyTools(&params); err != nil {
		return responses.ResponseNewParams{}, err
	}
	return params, nil
}

func (c *Client) applyOptions(params *responses.ResponseNewParams) error {
	for k, v := range c.options {
		switch k {
		case "temperature":
			if f, ok := toFloat(v); ok {
				params.Temperature = openai.Float(f)
			}
		case "top_p":
			if f, ok := toFloat(v); ok {
				params.TopP = openai.Float(f)
			}
		case "max_tokens", "max_output_tokens":
			if f, ok := toFloat(v); ok {
				params.MaxOutputTokens = openai.Int(int64(f))
			}
		case "reasoning":
			reasoning, ok := v.(map[string]any)
			if !ok {
				return llmerrors.NewConfigurationError("reasoning option must be an object")
			}
			if effort, ok := reasoning["effort"].(string); ok {
				params.Reasoning.Effort = shared.ReasoningEffort(effort)
			}
			if summary, ok := reasoning["summary"].(string); ok {
				params.Reasoning.Summary = shared.ReasoningSummary(summary)
			}
		case "reasoning_effort":
			if s, ok := v.(string); ok {
				params.Reasoning.Effort = shared.ReasoningEffort(s)
			}
		case "truncation":
			if s, ok := v.(string); ok {
				params.Truncation = responses.ResponseNewParamsTruncation(s)
			}
		case "include":
			if list, ok := v.([]any); ok {
				for _, inc := range list {
					if s, ok := inc.(string); ok {
						params.Include = append(params.Include, responses.ResponseIncludable(s))
					}
				}
			}
		case "use_previous_response_id":
			if s, ok := v.(string); ok && s != "" {
				params.PreviousResponseID = openai.String(s)
			}
		case "store":
			if b, ok := v.(bool); ok {
				params.Store = openai.Bool(b)
			}
		case "service_tier":
			if s, ok := v.(string); ok {
				params.ServiceTier = responses.ResponseNewParamsServiceTier(s)
			}
		}
	}
	return nil
}

// applyTools serializes bound tools: function tools flatten to
// {type: function, name, description, parameters} and built-in tools
// serialize as {type: <tool_kind>} with their config (spec.md §4.9
// "Tool serialization").
func (c *Client) applyTools(params *responses.ResponseNewParams) error {
	for _, t := range c.tools {
		switch t.Kind {
		case chatmodel.ToolKindFunction:
			var schemaMap map[string]any
			if len(t.Parameters) > 0 {
				if err := jsonAPI.Unmarshal(t.Parameters, &schemaMap); err != nil {
					return llmerrors.NewConfigurationError("tool %q parameters are not valid JSON: %v", t.Name, err)
				}
			}
			fn := responses.FunctionToolParam{
				Name:       t.Name,
				Parameters: shared.FunctionParameters(schemaMap),
			}
			if t.Description != "" {
				fn.Description = openai.String(t.Description)
			}
			params.Tools = append(params.Tools, responses.ToolUnionParam{OfFunction: &fn})

		case chatmodel.ToolKindBuiltin:
			tool, err := builtinTool(t)
			if err != nil {
				return err
			}
			params.Tools = append(params.Tools, tool)
		}
	}

	switch c.toolChoice.Mode {
	case chatmodel.ToolChoiceAny:
		params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsRequired)}
	case chatmodel.ToolChoiceNone:
		params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: openai.Opt(responses.ToolChoiceOptionsNone)}
	case chatmodel.ToolChoiceName:
		params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
			OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: c.toolChoice.Name},
		}
	}
	return nil
}

// builtinTool lifts a ToolDefinition's raw config into the matching
// SDK param for the provider-executed tool kinds (spec.md §6.2).
func builtinTool(t chatmodel.ToolDefinition) (responses.ToolUnionParam, error) {
	switch t.BuiltinType {
	case "web_search":
		tool := responses.WebSearchToolParam{Type: responses.WebSearchToolTypeWebSearch}
		return responses.ToolUnionParam{OfWebSearch: &tool}, nil
	case "file_search":
		var tool responses.FileSearchToolParam
		if len(t.Parameters) > 0 {
			if err := jsonAPI.Unmarshal(t.Parameters, &tool); err != nil {
				return responses.ToolUnionParam{}, llmerrors.NewConfigurationError("file_search tool config: %v", err)
			}
		}
		return responses.ToolUnionParam{OfFileSearch: &tool}, nil
	case "code_interpreter":
		var tool responses.ToolCodeInterpreterParam
		if len(t.Parameters) > 0 {
			if err := jsonAPI.Unmarshal(t.Parameters, &tool); err != nil {
				return responses.ToolUnionParam{}, llmerrors.NewConfigurationError("code_interpreter tool config: %v", err)
			}
		}
		return responses.ToolUnionParam{OfCodeInterpreter: &tool}, nil
	case "mcp":
		var tool responses.ToolMcpParam
		if len(t.Parameters) > 0 {
			if err := jsonAPI.Unmarshal(t.Parameters, &tool); err != nil {
				return responses.ToolUnionParam{}, llmerrors.NewConfigurationError("mcp tool config: %v", err)
			}
		}
		return responses.ToolUnionParam{OfMcp: &tool}, nil
	case "image_generation":
		var tool responses.ToolImageGenerationParam
		if len(t.Parameters) > 0 {
			if err := jsonAPI.Unmarshal(t.Parameters, &tool); err != nil {
				return responses.ToolUnionParam{}, llmerrors.NewConfigurationError("image_generation tool config: %v", err)
			}
		}
		return responses.ToolUnionParam{OfImageGeneration: &tool}, nil
	case "computer_use":
		var tool responses.ComputerToolParam
		if len(t.Parameters) > 0 {
			if err := jsonAPI.Unmarshal(t.Parameters, &tool); err != nil {
				return responses.ToolUnionParam{}, llmerrors.NewConfigurationError("computer_use tool config: %v", err)
			}
		}
		return responses.ToolUnionParam{OfComputerUsePreview: &tool}, nil
	}
	return responses.ToolUnionParam{}, llmerrors.NewConfigurationError("unknown built-in tool kind %q", t.BuiltinType)
}

// convertInputItems lifts the translator's wire maps into typed SDK
// input items.
func convertInputItems(items []map[string]any) (responses.ResponseInputParam, error) {
	var out responses.ResponseInputParam
	for _, item := range items {
		itemType, _ := item["type"].(string)
		switch itemType {
		case "message":
			role, _ := item["role"].(string)
			msg := responses.EasyInputMessageParam{Role: responses.EasyInputMessageRole(role)}
			if parts, ok := item["content"].([]map[string]any); ok {
				var text string
				for _, p := range parts {
					if t, _ := p["type"].(string); t == "input_text" || t == "output_text" {
						s, _ := p["text"].(string)
						text += s
					}
				}
				if hasNonTextPart(parts) {
					list, err := contentPartList(parts)
					if err != nil {
						return nil, err
					}
					msg.Content = responses.EasyInputMessageContentUnionParam{OfInputItemContentList: list}
				} else {
					msg.Content = responses.EasyInputMessageContentUnionParam{OfString: openai.String(text)}
				}
			}
			out = append(out, responses.ResponseInputItemUnionParam{OfMessage: &msg})

		case "function_call":
			callID, _ := item["call_id"].(string)
			name, _ := item["name"].(string)
			args, _ := item["arguments"].(string)
			fc := responses.ResponseFunctionToolCallParam{CallID: callID, Name: name, Arguments: args}
			if id, ok := item["id"].(string); ok && id != "" {
				fc.ID = openai.String(id)
			}
			out = append(out, responses.ResponseInputItemUnionParam{OfFunctionCall: &fc})

		case "function_call_output":
			callID, _ := item["call_id"].(string)
			output, _ := item["output"].(string)
			fco := responses.ResponseInputItemFunctionCallOutputParam{
				CallID: callID,
				Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{OfString: openai.String(output)},
			}
			out = append(out, responses.ResponseInputItemUnionParam{OfFunctionCallOutput: &fco})

		case "reasoning":
			var reasoning responses.ResponseReasoningItemParam
			raw, _ := jsonAPI.Marshal(item)
			if err := jsonAPI.Unmarshal(raw, &reasoning); err != nil {
				return nil, llmerrors.NewProtocolError("reasoning input item: %v", err)
			}
			out = append(out, responses.ResponseInputItemUnionParam{OfReasoning: &reasoning})

		default:
			// Pass-through items (tool_outputs back-compat, server tool
			// calls from a prior turn) ride on the item reference union.
			var ref responses.ResponseInputItemUnionParam
			raw, _ := jsonAPI.Marshal(item)
			if err := ref.UnmarshalJSON(raw); err != nil {
				return nil, llmerrors.NewProtocolError("unsupported input item %q: %v", itemType, err)
			}
			out = append(out, ref)
		}
	}
	return out, nil
}

func hasNonTextPart(parts []map[string]any) bool {
	for _, p := range parts {
		if t, _ := p["type"].(string); t != "input_text" && t != "output_text" {
			return true
		}
	}
	return false
}

func contentPartList(parts []map[string]any) (responses.ResponseInputMessageContentListParam, error) {
	var list responses.ResponseInputMessageContentListParam
	for _, p := range parts {
		var part responses.ResponseInputContentUnionParam
		raw, _ := jsonAPI.Marshal(p)
		if err := part.UnmarshalJSON(raw); err != nil {
			return nil, llmerrors.NewProtocolError("input content part: %v", err)
		}
		list = append(list, part)
	}
	return list, nil
}

// Generate implements chatmodel.Adapter via the non-streaming
// /responses call.
func (c *Client) Generate(ctx context.Context, messages []schema.Message, stop []string) (schema.ChatResult, error) {
	params, err := c.buildParams(messages, stop)
	if err != nil {
		return schema.ChatResult{}, err
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return schema.ChatResult{}, &llmerrors.TransportError{Err: err}
	}

	msg := c.messageFromResponse(resp)
	return schema.ChatResult{Generations: []schema.ChatGeneration{{Message: msg}}}, nil
}

// messageFromResponse flattens a completed Response's output items
// into wire maps, runs the block translator over them, and assembles
// the final AIMessage.
func (c *Client) messageFromResponse(resp *responses.Response) schema.AIMessage {
	items, toolCalls, invalid := flattenOutputItems(resp.Output)

	v1 := blocks.OpenAIResponsesToV1(items, blocks.ResponsesContext{
		ToolCalls:        toolCalls,
		InvalidToolCalls: invalid,
	})

	msg := schema.AIMessage{
		BaseMessage: schema.BaseMessage{
			Role:    schema.RoleAI,
			Content: schema.BlockContent(v1...),
			ID:      resp.ID,
			ResponseMetadata: map[string]any{
				"model_name":  resp.Model,
				"response_id": resp.ID,
				"status":      string(resp.Status),
			},
		},
		ToolCalls:        toolCalls,
		InvalidToolCalls: invalid,
	}
	if resp.Usage.TotalTokens > 0 {
		msg.UsageMetadata = usageFromResponse(resp.Usage)
	}
	return msg
}

func usageFromResponse(u responses.ResponseUsage) *schema.UsageMetadata {
	usage := schema.NewUsageMetadata(u.InputTokens, u.OutputTokens)
	if u.InputTokensDetails.CachedTokens > 0 {
		usage.InputTokenDetails = &schema.TokenDetails{CacheRead: u.InputTokensDetails.CachedTokens}
	}
	if u.OutputTokensDetails.ReasoningTokens > 0 {
		usage.OutputTokenDetails = &schema.TokenDetails{Reasoning: u.OutputTokensDetails.ReasoningTokens}
	}
	return usage
}

// flattenOutputItems converts SDK output items to the translator's
// wire shape: message items expand to their text/refusal parts,
// function_call items resolve to tool calls, everything else passes
// through as its raw JSON.
func flattenOutputItems(output []responses.ResponseOutputItemUnion) ([]map[string]any, []schema.ToolCall, []schema.InvalidToolCall) {
	var items []map[string]any
	var toolCalls []schema.ToolCall
	var invalid []schema.InvalidToolCall

	for _, item := range output {
		switch item.Type {
		case "message":
			for _, part := range item.Content {
				switch part.Type {
				case "output_text":
					wire := map[string]any{"type": "text", "text": part.Text}
					if raw := part.RawJSON(); raw != "" {
						var full map[string]any
						if jsonAPI.UnmarshalFromString(raw, &full) == nil {
							if anns, ok := full["annotations"]; ok {
								wire["annotations"] = anns
							}
						}
					}
					items = append(items, wire)
				case "refusal":
					items = append(items, map[string]any{"type": "refusal", "refusal": part.Refusal})
				}
			}

		case "function_call":
			var args map[string]any
			if err := jsonAPI.UnmarshalFromString(item.Arguments, &args); err != nil {
				invalid = append(invalid, schema.InvalidToolCall{
					Name:  item.Name,
					Args:  item.Arguments,
					ID:    item.CallID,
					Error: err.Error(),
					Type:  "invalid_tool_call",
				})
			} else {
				toolCalls = append(toolCalls, schema.NewToolCall(item.CallID, item.Name, args))
			}
			items = append(items, map[string]any{
				"type":      "function_call",
				"call_id":   item.CallID,
				"name":      item.Name,
				"arguments": item.Arguments,
				"id":        item.ID,
			})

		default:
			var wire map[string]any
			if jsonAPI.UnmarshalFromString(item.RawJSON(), &wire) == nil {
				items = append(items, wire)
			}
		}
	}
	return items, toolCalls, invalid
}

// Stream implements chatmodel.Adapter over the event-typed Responses
// SSE stream (spec.md §4.9 "Responses SSE is event-typed ... and is
// dispatched per event").
func (c *Client) Stream(ctx context.Context, messages []schema.Message, stop []string) (<-chan schema.AIMessageChunk, error) {
	params, err := c.buildParams(messages, stop)
	if err != nil {
		return nil, err
	}

	out := make(chan schema.AIMessageChunk, 64)
	debugger := chatmodel.NewStreamDebugger(ctx, c.provider, c.DebugChunks)

	go func() {
		defer close(out)
		defer debugger.Close()

		stream := c.client.Responses.NewStreaming(ctx, params)
		// output item id → tool-call-chunk index, so argument deltas join
		// the right call during aggregation.
		callIndexes := map[string]int{}
		nextCallIndex := 0

		emit := func(chunk schema.AIMessageChunk) bool {
			chunk.Role = schema.RoleAI
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			event := stream.Current()
			debugger.WriteString(event.RawJSON())

			switch ev := event.AsAny().(type) {
			case responses.ResponseTextDeltaEvent:
				if !emit(schema.AIMessageChunk{BaseMessage: schema.BaseMessage{Content: schema.TextContent(ev.Delta)}}) {
					return
				}

			case responses.ResponseReasoningSummaryTextDeltaEvent:
				block := schema.NewReasoningBlock(ev.Delta)
				block.Index = "lc_rs_" + strconv.FormatInt(ev.SummaryIndex, 16)
				if !emit(schema.AIMessageChunk{BaseMessage: schema.BaseMessage{Content: schema.BlockContent(block)}}) {
					return
				}

			case responses.ResponseOutputItemAddedEvent:
				if ev.Item.Type != "function_call" {
					continue
				}
				idx := nextCallIndex
				nextCallIndex++
				callIndexes[ev.Item.ID] = idx
				chunk := schema.AIMessageChunk{}
				chunk.ToolCallChunks = []schema.ToolCallChunk{{
					Name:  ev.Item.Name,
					Args:  ev.Item.Arguments,
					ID:    ev.Item.CallID,
					Index: &idx,
					Type:  "tool_call_chunk",
				}}
				if !emit(chunk) {
					return
				}

			case responses.ResponseFunctionCallArgumentsDeltaEvent:
				idx, ok := callIndexes[ev.ItemID]
				if !ok {
					idx = nextCallIndex
					nextCallIndex++
					callIndexes[ev.ItemID] = idx
				}
				chunk := schema.AIMessageChunk{}
				chunk.ToolCallChunks = []schema.ToolCallChunk{{
					Args:  ev.Delta,
					Index: &idx,
					Type:  "tool_call_chunk",
				}}
				if !emit(chunk) {
					return
				}

			case responses.ResponseRefusalDeltaEvent:
				chunk := schema.AIMessageChunk{}
				chunk.AdditionalKwargs = map[string]any{"refusal": ev.Delta}
				if !emit(chunk) {
					return
				}

			case responses.ResponseCompletedEvent:
				final := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
				final.ID = ev.Response.ID
				final.ResponseMetadata = map[string]any{
					"model_name":  ev.Response.Model,
					"response_id": ev.Response.ID,
					"status":      string(ev.Response.Status),
				}
				if ev.Response.Usage.TotalTokens > 0 {
					final.UsageMetadata = usageFromResponse(ev.Response.Usage)
				}
				if !emit(final) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			final := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
			final.AdditionalKwargs = map[string]any{"error": (&llmerrors.TransportError{Err: err}).Error()}
			emit(final)
		}
	}()

	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
