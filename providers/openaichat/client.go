// Package openaichat adapts the official OpenAI Go SDK's Chat
// Completions API to the chatmodel.Adapter interface (spec.md §4.9).
package openaichat

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/runloom/core/blocks"
	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/llmerrors"
	"github.com/runloom/core/schema"
)

// Client wraps the official OpenAI Go SDK as a chatmodel.Adapter.
type Client struct {
	client   *openai.Client
	provider string
	model    string
	options  map[string]any

	tools      []chatmodel.ToolDefinition
	toolChoice chatmodel.ToolChoice

	DebugChunks bool
}

// NewClient builds a Client targeting the given provider label (used
// only for logging/debug-file namespacing), model, and optional custom
// base URL (for OpenAI-compatible gateways).
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
	params := map[string]any{"provider": c.provider, "model": c.model}
	for k, v := range c.options {
		params[k] = v
	}
	return params
}

// WithTools implements chatmodel.ToolBindingAdapter: it returns a new
// Client carrying the bound tool set, leaving the receiver untouched
// (spec.md §5 "bind_tools ... return new adapter values, never
// mutate"). Built-in tools are only valid under the Responses
// endpoint; applyTools rejects them when a request is built.
func (c *Client) WithTools(tools []chatmodel.ToolDefinition, choice chatmodel.ToolChoice) chatmodel.Adapter {
	clone := *c
	clone.tools = append([]chatmodel.ToolDefinition(nil), tools...)
	clone.toolChoice = choice
	return &clone
}

func (c *Client) isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout")
}

// Generate implements chatmodel.Adapter by draining Stream and
// aggregating (the SDK's non-streaming Chat.Completions.New call would
// duplicate the message-conversion logic; streaming is the single
// source of truth here, matching the teacher's stream-first design).
func (c *Client) Generate(ctx context.Context, messages []schema.Message, stop []string) (schema.ChatResult, error) {
	chunks, err := c.Stream(ctx, messages, stop)
	if err != nil {
		return schema.ChatResult{}, err
	}
	var acc schema.AIMessageChunk
	started := false
	for chunk := range chunks {
		if started {
			acc = mergeChunk(acc, chunk)
		} else {
			acc = chunk
			started = true
		}
	}
	acc.ChunkPosition = schema.ChunkPositionLast
	return schema.ChatResult{Generations: []schema.ChatGeneration{{Message: acc.ToMessage()}}}, nil
}

// mergeChunk is a minimal local accumulator kept free of streaming's
// block-sequence semantics: both contents are flattened to their text,
// so reasoning blocks from Stream are dropped from the result.
func mergeChunk(a, b schema.AIMessageChunk) schema.AIMessageChunk {
	a.Content = schema.TextContent(a.Content.String() + b.Content.String())
	a.ToolCallChunks = append(a.ToolCallChunks, b.ToolCallChunks...)
	if b.UsageMetadata != nil {
		a.UsageMetadata = schema.AddUsage(a.UsageMetadata, b.UsageMetadata)
	}
	return a
}

// Stream implements chatmodel.Adapter, translating SDK events into
// schema.AIMessageChunk (spec.md §4.8 "OpenAI Chat Completions → v1",
// §4.9).
func (c *Client) Stream(ctx context.Context, messages []schema.Message, stop []string) (<-chan schema.AIMessageChunk, error) {
	out := make(chan schema.AIMessageChunk, 64)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: c.convertMessages(messages),
	}
	if len(stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: stop}
	}
	if err := c.applyTools(&params); err != nil {
		return nil, err
	}
	c.applyOptions(&params)

	debugger := chatmodel.NewStreamDebugger(ctx, c.provider, c.DebugChunks)

	go func() {
		defer close(out)
		defer debugger.Close()

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)

		for stream.Next() {
			event := stream.Current()
			debugger.WriteString(rawEventJSON(event))

			chunk := schema.AIMessageChunk{}
			chunk.BaseMessage.Role = schema.RoleAI

			var text strings.Builder
			if len(event.Choices) > 0 {
				choice := event.Choices[0]
				if reasoning := extractReasoning(rawEventJSON(event)); reasoning != "" {
					chunk.Content = schema.BlockContent(schema.NewReasoningBlock(reasoning))
				}
				if choice.Delta.Content != "" {
					text.WriteString(choice.Delta.Content)
				}
				if len(choice.Delta.ToolCalls) > 0 {
					chunk.ToolCallChunks = toolCallChunksFrom(choice.Delta.ToolCalls)
				}
			}
			if text.Len() > 0 {
				if chunk.Content.IsBlocks() {
					chunk.Content = schema.BlockContent(append(chunk.Content.Blocks, schema.NewTextBlock(text.String()))...)
				} else {
					chunk.Content = schema.TextContent(text.String())
				}
			}
			if event.Usage.TotalTokens > 0 {
				chunk.UsageMetadata = schema.NewUsageMetadata(event.Usage.PromptTokens, event.Usage.CompletionTokens)
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			transportErr := &llmerrors.TransportError{Err: err}
			final := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
			final.AdditionalKwargs = map[string]any{"error": transportErr.Error(), "transient": c.isTransientError(err)}
			select {
			case out <- final:
			case <-ctx.Done():
			}
			return
		}

		final := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
		select {
		case out <- final:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// applyTools serializes the bound tool set onto params (spec.md §4.9
// "Tool serialization": function tools become {type: function,
// function: {name, description, parameters}}). Built-in tools are only
// valid under the Responses endpoint.
func (c *Client) applyTools(params *openai.ChatCompletionNewParams) error {
	if len(c.tools) == 0 {
		return nil
	}
	for _, t := range c.tools {
		if t.Kind == chatmodel.ToolKindBuiltin {
			return llmerrors.NewConfigurationError("built-in tool %q requires the Responses endpoint", t.BuiltinType)
		}
		var schemaMap map[string]any
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schemaMap); err != nil {
				return llmerrors.NewConfigurationError("tool %q parameters are not valid JSON: %v", t.Name, err)
			}
		}
		fn := shared.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: shared.FunctionParameters(schemaMap),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(fn))
	}

	switch c.toolChoice.Mode {
	case chatmodel.ToolChoiceAny:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}
	case chatmodel.ToolChoiceNone:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	case chatmodel.ToolChoiceName:
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: c.toolChoice.Name},
			},
		}
	}
	return nil
}

// applyOptions maps the recognized sampling controls from the config
// options map onto the request params (spec.md §6.3); unrecognized
// keys are left for IdentifyingParams only.
func (c *Client) applyOptions(params *openai.ChatCompletionNewParams) {
	for k, v := range c.options {
		f, isNum := toFloat(v)
		switch k {
		case "temperature":
			if isNum {
				params.Temperature = openai.Float(f)
			}
		case "top_p":
			if isNum {
				params.TopP = openai.Float(f)
			}
		case "frequency_penalty":
			if isNum {
				params.FrequencyPenalty = openai.Float(f)
			}
		case "presence_penalty":
			if isNum {
				params.PresencePenalty = openai.Float(f)
			}
		case "seed":
			if isNum {
				params.Seed = openai.Int(int64(f))
			}
		case "max_tokens":
			if isNum {
				params.MaxTokens = openai.Int(int64(f))
			}
		case "n":
			if isNum {
				params.N = openai.Int(int64(f))
			}
		case "reasoning_effort":
			if s, ok := v.(string); ok {
				params.ReasoningEffort = shared.ReasoningEffort(s)
			}
		case "service_tier":
			if s, ok := v.(string); ok {
				params.ServiceTier = openai.ChatCompletionNewParamsServiceTier(s)
			}
		}
	}
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

func rawEventJSON(event openai.ChatCompletionChunk) string {
	rv := reflect.ValueOf(event.JSON)
	if rv.Kind() != reflect.Struct {
		return ""
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).Name == "raw" {
			return rv.Field(i).String()
		}
	}
	return ""
}

// extractReasoning recovers provider-specific reasoning/thinking
// fields the SDK's typed struct doesn't surface yet (DeepSeek-style
// reasoning_content), by re-parsing the chunk's raw JSON.
func extractReasoning(raw string) string {
	if raw == "" {
		return ""
	}
	var rawChoice struct {
		Reasoning        string `json:"reasoning"`
		Thinking         string `json:"thinking"`
		ReasoningContent string `json:"reasoning_content"`
		Choices          []struct {
			Delta struct {
				ReasoningContent string `json:"reasoning_content"`
				Reasoning        string `json:"reasoning"`
				Thinking         string `json:"thinking"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(raw), &rawChoice); err != nil {
		return ""
	}
	thought := rawChoice.Reasoning
	if thought == "" {
		thought = rawChoice.Thinking
	}
	if thought == "" {
		thought = rawChoice.ReasoningContent
	}
	if len(rawChoice.Choices) > 0 {
		delta := rawChoice.Choices[0].Delta
		if thought == "" {
			thought = delta.ReasoningContent
		}
		if thought == "" {
			thought = delta.Reasoning
		}
		if thought == "" {
			thought = delta.Thinking
		}
	}
	return thought
}

func toolCallChunksFrom(deltas []openai.ChatCompletionChunkChoiceDeltaToolCall) []schema.ToolCallChunk {
	out := make([]schema.ToolCallChunk, 0, len(deltas))
	for _, tc := range deltas {
		idx := int(tc.Index)
		out = append(out, schema.ToolCallChunk{
			Name:  tc.Function.Name,
			Args:  tc.Function.Arguments,
			ID:    tc.ID,
			Index: &idx,
			Type:  "tool_call_chunk",
		})
	}
	return out
}

// convertMessages implements the input half of spec.md §4.8 "OpenAI
// Chat Completions": v1 messages become the SDK's wire param union.
func (c *Client) convertMessages(messages []schema.Message) []openai.ChatCompletionMessageParamUnion {
	var items []openai.ChatCompletionMessageParamUnion

	for _, m := range messages {
		switch msg := m.(type) {
		case schema.ToolMessage:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Role:       "tool",
					ToolCallID: msg.ToolCallID,
					Content:    openai.ChatCompletionToolMessageParamContentUnion{OfString: openai.String(msg.Text())},
				},
			})

		case schema.AIMessage:
			if len(msg.ToolCalls) > 0 {
				var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
				for _, tc := range msg.ToolCalls {
					args, _ := json.Marshal(tc.Args)
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID:   tc.ID,
							Type: "function",
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Name,
								Arguments: string(args),
							},
						},
					})
				}
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{Role: "assistant", ToolCalls: toolCalls},
				})
			} else {
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Role:    "assistant",
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Text())},
					},
				})
			}

		case schema.HumanMessage:
			base := msg.Base()
			if base.Content.IsBlocks() {
				parts := blocks.V1ToOpenAIChat(base.Content.Blocks)
				var sdkParts []openai.ChatCompletionContentPartUnionParam
				for _, p := range parts {
					sdkParts = append(sdkParts, contentPartFrom(p))
				}
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Role:    "user",
						Content: openai.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: sdkParts},
					},
				})
			} else {
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Role:    "user",
						Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(msg.Text())},
					},
				})
			}

		case schema.SystemMessage:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role:    "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(msg.Text())},
				},
			})
		}
	}

	return items
}

func contentPartFrom(p map[string]any) openai.ChatCompletionContentPartUnionParam {
	switch p["type"] {
	case "text":
		text, _ := p["text"].(string)
		return openai.ChatCompletionContentPartUnionParam{OfText: &openai.ChatCompletionContentPartTextParam{Type: "text", Text: text}}
	case "image_url":
		imageURL, _ := p["image_url"].(map[string]any)
		url, _ := imageURL["url"].(string)
		return openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				Type:     "image_url",
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: url},
			},
		}
	default:
		return openai.ChatCompletionContentPartUnionParam{}
	}
}
