// Package ollama adapts the official Ollama Go client to the
// chatmodel.Adapter interface (spec.md §4.9 "Ollama adapter").
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"

	"github.com/runloom/core/blocks"
	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Client wraps the Ollama API client as a chatmodel.Adapter.
type Client struct {
	client  *api.Client
	model   string
	options map[string]any
	tools   api.Tools
}

// NewClient builds a Client against baseURL (or the environment's
// OLLAMA_HOST if empty), with a transport configured for long-lived
// generation requests (no response timeout).
func NewClient(model, baseURL string, options map[string]any) (*Client, error) {
	var client *api.Client
	var err error

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	httpClient := &http.Client{Transport: transport}

	if baseURL != "" {
		u, parseErr := url.Parse(baseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", parseErr)
		}
		// Credentials embedded in the URL become a basic-auth header;
		// the URL handed to the client is stripped of them.
		if u.User != nil {
			username := u.User.Username()
			password, _ := u.User.Password()
			httpClient.Transport = &basicAuthTransport{
				base:     transport,
				username: username,
				password: password,
			}
			u.User = nil
		}
		client = api.NewClient(u, httpClient)
	} else {
		client, err = api.ClientFromEnvironment()
	}
	if err != nil {
		return nil, err
	}

	return &Client{client: client, model: model, options: options}, nil
}

type basicAuthTransport struct {
	base     http.RoundTripper
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(clone)
}

func (c *Client) ProviderName() string { return "ollama" }
func (c *Client) ModelName() string    { return c.model }

func (c *Client) IdentifyingParams() map[string]any {
	params := map[string]any{"provider": "ollama", "model": c.model}
	for k, v := range c.options {
		params[k] = v
	}
	return params
}

// WithTools implements chatmodel.ToolBindingAdapter. Ollama has no
// tool_choice knob, so the choice is accepted and ignored; built-in
// tools are not supported at all and are skipped.
func (c *Client) WithTools(tools []chatmodel.ToolDefinition, _ chatmodel.ToolChoice) chatmodel.Adapter {
	clone := *c
	clone.tools = nil
	for _, t := range tools {
		if t.Kind != chatmodel.ToolKindFunction {
			continue
		}
		tool := api.Tool{Type: "function"}
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		if len(t.Parameters) > 0 {
			_ = jsonAPI.Unmarshal(t.Parameters, &tool.Function.Parameters)
		}
		clone.tools = append(clone.tools, tool)
	}
	return &clone
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "overloaded")
}

func (c *Client) Generate(ctx context.Context, messages []schema.Message, stop []string) (schema.ChatResult, error) {
	chunks, err := c.Stream(ctx, messages, stop)
	if err != nil {
		return schema.ChatResult{}, err
	}
	var acc schema.AIMessageChunk
	started := false
	for chunk := range chunks {
		if started {
			acc.Content = schema.TextContent(acc.Content.String() + chunk.Content.String())
			acc.ToolCallChunks = append(acc.ToolCallChunks, chunk.ToolCallChunks...)
			if chunk.UsageMetadata != nil {
				acc.UsageMetadata = schema.AddUsage(acc.UsageMetadata, chunk.UsageMetadata)
			}
		} else {
			acc = chunk
			started = true
		}
	}
	acc.ChunkPosition = schema.ChunkPositionLast
	return schema.ChatResult{Generations: []schema.ChatGeneration{{Message: acc.ToMessage()}}}, nil
}

// Stream implements chatmodel.Adapter against Ollama's streaming
// /api/chat endpoint (spec.md §4.9).
func (c *Client) Stream(ctx context.Context, messages []schema.Message, stop []string) (<-chan schema.AIMessageChunk, error) {
	apiMessages := c.convertMessages(messages)

	out := make(chan schema.AIMessageChunk, 64)
	startResult := make(chan error)

	go func() {
		defer close(out)

		streamVal := true
		opts := map[string]any{}
		for k, v := range c.options {
			opts[k] = v
		}
		if len(stop) > 0 {
			opts["stop"] = stop
		}
		req := &api.ChatRequest{Model: c.model, Messages: apiMessages, Options: opts, Stream: &streamVal, Tools: c.tools}

		started := false
		var toolIndex int

		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			// Spurious load-complete sentinel: a done line with
			// done_reason "load" and no content precedes the real
			// stream on cold models and must be discarded.
			if resp.Done && resp.DoneReason == "load" && resp.Message.Content == "" {
				return nil
			}
			if !started {
				started = true
				select {
				case startResult <- nil:
				default:
				}
			}

			chunk := schema.AIMessageChunk{}
			chunk.Role = schema.RoleAI

			var blocksOut []schema.ContentBlock
			if resp.Message.Thinking != "" {
				blocksOut = append(blocksOut, schema.NewReasoningBlock(resp.Message.Thinking))
			}
			if resp.Message.Content != "" {
				blocksOut = append(blocksOut, schema.NewTextBlock(resp.Message.Content))
			}
			if len(blocksOut) > 0 {
				chunk.Content = schema.BlockContent(blocksOut...)
			}

			if len(resp.Message.ToolCalls) > 0 {
				for _, tc := range resp.Message.ToolCalls {
					rawArgs, _ := jsonAPI.Marshal(tc.Function.Arguments)
					argsB, _ := jsonAPI.Marshal(blocks.ParseOllamaToolArgs(string(rawArgs)))
					idx := toolIndex
					toolIndex++
					chunk.ToolCallChunks = append(chunk.ToolCallChunks, schema.ToolCallChunk{
						Name:  tc.Function.Name,
						Args:  string(argsB),
						ID:    tc.ID,
						Index: &idx,
						Type:  "tool_call_chunk",
					})
				}
			}

			if resp.Done {
				chunk.UsageMetadata = schema.NewUsageMetadata(int64(resp.PromptEvalCount), int64(resp.EvalCount))
				chunk.ChunkPosition = schema.ChunkPositionLast
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			if !started {
				select {
				case startResult <- err:
				default:
					final := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
					final.AdditionalKwargs = map[string]any{"error": err.Error()}
					out <- final
				}
			}
		} else if !started {
			select {
			case startResult <- nil:
			default:
			}
		}
	}()

	select {
	case err := <-startResult:
		if err != nil {
			return nil, err
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) convertMessages(messages []schema.Message) []api.Message {
	var out []api.Message
	for _, m := range messages {
		base := m.Base()
		var msgBlocks []schema.ContentBlock
		if base.Content.IsBlocks() {
			msgBlocks = base.Content.Blocks
		} else {
			msgBlocks = []schema.ContentBlock{schema.NewTextBlock(base.Content.Text)}
		}

		var toolCalls []schema.ToolCall
		if ai, ok := m.(schema.AIMessage); ok {
			toolCalls = ai.ToolCalls
		}

		wire := blocks.V1ToOllama(string(base.Role), msgBlocks, toolCalls)

		apiMsg := api.Message{Role: wire.Role, Content: wire.Content}
		for _, img := range wire.Images {
			if raw, err := base64.StdEncoding.DecodeString(img); err == nil {
				apiMsg.Images = append(apiMsg.Images, api.ImageData(raw))
			}
		}
		for _, wtc := range wire.ToolCalls {
			var apiArgs api.ToolCallFunctionArguments
			argBytes, _ := jsonAPI.Marshal(wtc.Function.Arguments)
			_ = jsonAPI.Unmarshal(argBytes, &apiArgs)
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{Name: wtc.Function.Name, Arguments: apiArgs},
			})
		}
		if tm, ok := m.(schema.ToolMessage); ok {
			apiMsg.Role = "tool"
			apiMsg.ToolCallID = tm.ToolCallID
		}
		out = append(out, apiMsg)
	}
	return out
}
