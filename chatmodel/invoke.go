package chatmodel

import (
	"context"
	"errors"

	"github.com/runloom/core/callbacks"
	"github.com/runloom/core/llmerrors"
	"github.com/runloom/core/schema"
	"github.com/runloom/core/streaming"
)

// Invoke is the single-conversation entry point spec.md §8's scenarios
// drive directly (scenario 1 "Simple chat invoke"): it wraps Generate
// for a single message list and unwraps the sole resulting AIMessage.
func (m *Model) Invoke(ctx context.Context, messages []schema.Message, cfg callbacks.ConfigureOptions, stop []string) (schema.AIMessage, error) {
	result, err := m.Generate(ctx, [][]schema.Message{messages}, cfg, stop)
	if err != nil {
		return schema.AIMessage{}, err
	}
	if len(result.Generations) == 0 || len(result.Generations[0]) == 0 {
		return schema.AIMessage{}, llmerrors.NewContractError("no generations returned")
	}
	return result.Generations[0][0].Message, nil
}

// Stream implements spec.md §4.6's top-level `stream` entry point: it
// always drives the provider's streaming transport (bypassing the
// cache, which only the batch `generate` path consults), firing
// on_chat_model_start/on_llm_new_token/on_llm_end on a single run
// manager. If streaming is disabled by policy, it falls back to a
// single-chunk emission built from a non-streaming Generate call (step
// 1 "if streaming disabled, fall back to a single-chunk emission from
// _generate").
func (m *Model) Stream(ctx context.Context, messages []schema.Message, cfg callbacks.ConfigureOptions, stop []string) (<-chan schema.AIMessageChunk, error) {
	cfg.InheritableMetadata = mergeMaps(cfg.InheritableMetadata, m.langsmithMetadata())
	cm := callbacks.Configure(ctx, cfg)

	serialized := map[string]any{"params": sanitizeIdentifyingParams(m.identifyingParamsWithStop(stop))}
	runManagers := cm.OnChatModelStart(serialized, [][]schema.Message{messages}, nil)
	rm := runManagers[0]

	if !m.streamingAllowed() {
		result, err := m.Adapter.Generate(ctx, messages, stop)
		if err != nil {
			rm.OnError(err)
			return nil, err
		}
		if len(result.Generations) == 0 {
			err := llmerrors.NewContractError("no generations returned")
			rm.OnError(err)
			return nil, err
		}
		final := chunkFromMessage(result.Generations[0].Message)
		final.ChunkPosition = schema.ChunkPositionLast
		rm.OnNewToken(final.Text(), &final)
		rm.OnEnd(schema.LLMResult{Generations: [][]schema.ChatGeneration{{{Message: final.ToMessage()}}}})

		out := make(chan schema.AIMessageChunk, 1)
		out <- final
		close(out)
		return out, nil
	}

	if m.RateLimiter != nil {
		estimated := estimateTokens(messages)
		if err := m.RateLimiter.Acquire(ctx, estimated); err != nil {
			rm.OnError(err)
			return nil, err
		}
	}

	chunks, err := m.Adapter.Stream(ctx, messages, stop)
	if errors.Is(err, llmerrors.ErrNotImplemented) {
		result, genErr := m.Adapter.Generate(ctx, messages, stop)
		if genErr == nil && len(result.Generations) == 0 {
			genErr = llmerrors.NewContractError("no generations returned")
		}
		if genErr != nil {
			rm.OnError(genErr)
			return nil, genErr
		}
		final := chunkFromMessage(result.Generations[0].Message)
		final.ChunkPosition = schema.ChunkPositionLast
		single := make(chan schema.AIMessageChunk, 1)
		single <- final
		close(single)
		chunks, err = single, nil
	}
	if err != nil {
		rm.OnError(err)
		return nil, err
	}

	out := make(chan schema.AIMessageChunk, 64)
	go func() {
		defer close(out)
		var acc schema.AIMessageChunk
		started := false
		tracker := streaming.NewBlockIndexTracker()
		for chunk := range chunks {
			if m.OutputVersion == "v1" && chunk.Content.IsBlocks() {
				chunk.Content = schema.BlockContent(tracker.Apply(chunk.Content.Blocks)...)
			}
			if started {
				acc = streaming.Add(acc, chunk)
			} else {
				acc = chunk
				started = true
			}
			rm.OnNewToken(chunk.Text(), &chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if !started || acc.ChunkPosition != schema.ChunkPositionLast {
			sentinel := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
			if started {
				acc = streaming.Add(acc, sentinel)
			} else {
				acc = sentinel
			}
			rm.OnNewToken("", nil)
			select {
			case out <- sentinel:
			case <-ctx.Done():
				return
			}
		}
		final := streaming.Finalize(acc)
		rm.OnEnd(schema.LLMResult{Generations: [][]schema.ChatGeneration{{{Message: final.ToMessage()}}}})
	}()

	return out, nil
}

func (m *Model) streamingAllowed() bool {
	if m.DisableStreaming == StreamingDisabled {
		return false
	}
	if m.DisableStreaming == StreamingDisabledForToolCalling && m.ToolsBound {
		return false
	}
	return true
}

func chunkFromMessage(msg schema.AIMessage) schema.AIMessageChunk {
	return schema.AIMessageChunk{
		BaseMessage:      msg.BaseMessage,
		ToolCalls:        msg.ToolCalls,
		InvalidToolCalls: msg.InvalidToolCalls,
		UsageMetadata:    msg.UsageMetadata,
	}
}
