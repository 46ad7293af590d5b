package streaming

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/runloom/core/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Finalize promotes a chunk whose stream has ended (ChunkPosition ==
// Last) into its resolved form (spec.md §4.5 "Finalize"): every
// ToolCallChunk whose Args string parses as a JSON object becomes a
// ToolCall; one that doesn't parse becomes an InvalidToolCall carrying
// the original string and the parse error. Content blocks of type
// tool_call_chunk / server_tool_call_chunk are rewritten in place to
// tool_call / server_tool_call, preserving Extras.
func Finalize(chunk schema.AIMessageChunk) schema.AIMessageChunk {
	if chunk.ChunkPosition != schema.ChunkPositionLast {
		return chunk
	}

	resolved, invalid := resolveToolCallChunks(chunk.ToolCallChunks)
	chunk.ToolCalls = append(append([]schema.ToolCall(nil), chunk.ToolCalls...), resolved...)
	chunk.InvalidToolCalls = append(append([]schema.InvalidToolCall(nil), chunk.InvalidToolCalls...), invalid...)

	if chunk.Content.IsBlocks() {
		chunk.Content = schema.BlockContent(promoteBlocks(chunk.Content.Blocks)...)
	}

	return chunk
}

func resolveToolCallChunks(chunks []schema.ToolCallChunk) ([]schema.ToolCall, []schema.InvalidToolCall) {
	var calls []schema.ToolCall
	var invalid []schema.InvalidToolCall
	for _, c := range chunks {
		args, err := parseArgs(c.Args)
		if err != nil {
			invalid = append(invalid, schema.InvalidToolCall{
				Name:  c.Name,
				Args:  c.Args,
				ID:    c.ID,
				Error: err.Error(),
				Type:  "invalid_tool_call",
			})
			continue
		}
		calls = append(calls, schema.NewToolCall(c.ID, c.Name, args))
	}
	return calls, invalid
}

func parseArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := jsonAPI.UnmarshalFromString(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func promoteBlocks(blocks []schema.ContentBlock) []schema.ContentBlock {
	out := make([]schema.ContentBlock, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case schema.BlockToolCallChunk:
			out[i] = promoteToolCallChunkBlock(b)
		case schema.BlockServerToolCallChunk:
			out[i] = promoteServerToolCallChunkBlock(b)
		default:
			out[i] = b
		}
	}
	return out
}

func promoteToolCallChunkBlock(b schema.ContentBlock) schema.ContentBlock {
	args, err := parseArgs(b.ArgsPartial)
	if err != nil {
		b.Type = schema.BlockInvalidToolCall
		b.Error = err.Error()
		return b
	}
	b.Type = schema.BlockToolCall
	b.Args = args
	b.ArgsPartial = ""
	return b
}

func promoteServerToolCallChunkBlock(b schema.ContentBlock) schema.ContentBlock {
	args, err := parseArgs(b.ArgsPartial)
	if err != nil {
		b.Type = schema.BlockInvalidToolCall
		b.Error = err.Error()
		return b
	}
	b.Type = schema.BlockServerToolCall
	b.Args = args
	b.ArgsPartial = ""
	return b
}
