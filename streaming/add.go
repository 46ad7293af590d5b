// Package streaming implements the aggregation arithmetic that turns a
// sequence of schema.AIMessageChunk values into one another and,
// eventually, into a finalized schema.AIMessage (spec.md §4.5, §4.7).
package streaming

import (
	"strings"

	"github.com/runloom/core/schema"
)

// reservedPrefix reports whether id carries one of the library's
// internally-generated prefixes, so Add's id-selection rule can prefer
// a provider-native id over either of them (spec.md §4.5 step 5).
func reservedPrefix(id string) bool {
	return strings.HasPrefix(id, schema.AutoIDPrefix) || strings.HasPrefix(id, schema.RunIDPrefix)
}

// chooseID implements the id-selection rule from spec.md §4.5 step 5:
// prefer the first id that carries neither reserved prefix; otherwise
// prefer one with the run-id prefix; otherwise the first non-empty id.
func chooseID(a, b string) string {
	candidates := []string{a, b}
	for _, id := range candidates {
		if id != "" && !reservedPrefix(id) {
			return id
		}
	}
	for _, id := range candidates {
		if strings.HasPrefix(id, schema.RunIDPrefix) {
			return id
		}
	}
	for _, id := range candidates {
		if id != "" {
			return id
		}
	}
	return ""
}

// Add combines two AIMessageChunks into one per the ordered merge
// rules of spec.md §4.5. a is the accumulator so far (may be the zero
// value on the first call) and b is the newly-arrived chunk; the
// result becomes the new accumulator.
func Add(a, b schema.AIMessageChunk) schema.AIMessageChunk {
	out := schema.AIMessageChunk{}

	out.Content = mergeContent(a.Content, b.Content)
	out.ToolCallChunks = mergeToolCallChunks(a.ToolCallChunks, b.ToolCallChunks)
	out.ToolCalls = append(append([]schema.ToolCall(nil), a.ToolCalls...), b.ToolCalls...)
	out.InvalidToolCalls = append(append([]schema.InvalidToolCall(nil), a.InvalidToolCalls...), b.InvalidToolCalls...)

	out.AdditionalKwargs = deepMergeMap(a.AdditionalKwargs, b.AdditionalKwargs)
	out.ResponseMetadata = deepMergeMap(a.ResponseMetadata, b.ResponseMetadata)

	out.UsageMetadata = schema.AddUsage(a.UsageMetadata, b.UsageMetadata)

	out.ID = chooseID(a.ID, b.ID)
	out.Name = firstNonEmpty(a.Name, b.Name)
	out.Role = firstRole(a.Role, b.Role)

	if a.ChunkPosition == schema.ChunkPositionLast || b.ChunkPosition == schema.ChunkPositionLast {
		out.ChunkPosition = schema.ChunkPositionLast
	}

	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstRole(a, b schema.MessageRole) schema.MessageRole {
	if a != "" {
		return a
	}
	return b
}

// mergeContent implements spec.md §4.5 step 1: string+string
// concatenates; block-sequence+block-sequence merges block-wise by
// index; any other combination coerces to a block sequence (a bare
// string becomes a single text block appended).
func mergeContent(a, b schema.MessageContent) schema.MessageContent {
	aEmpty := a.String() == "" && !a.IsBlocks() && len(a.Blocks) == 0
	bEmpty := b.String() == "" && !b.IsBlocks() && len(b.Blocks) == 0
	if aEmpty && !b.IsBlocks() {
		return b
	}
	if bEmpty && !a.IsBlocks() {
		return a
	}

	if !a.IsBlocks() && !b.IsBlocks() {
		return schema.TextContent(a.Text + b.Text)
	}

	blocksA := asBlocks(a)
	blocksB := asBlocks(b)
	return schema.BlockContent(mergeBlockSlices(blocksA, blocksB)...)
}

func asBlocks(c schema.MessageContent) []schema.ContentBlock {
	if c.IsBlocks() {
		return c.Blocks
	}
	if c.Text == "" {
		return nil
	}
	return []schema.ContentBlock{schema.NewTextBlock(c.Text)}
}

// mergeBlockSlices merges two block sequences by matching Index: a
// block in b whose Index matches one already present in the result is
// field-merged into it; an unmatched block in b is appended in order.
func mergeBlockSlices(a, b []schema.ContentBlock) []schema.ContentBlock {
	out := append([]schema.ContentBlock(nil), a...)
	byIndex := make(map[string]int, len(out))
	for i, blk := range out {
		if blk.Index != "" {
			byIndex[blk.Index] = i
		}
	}
	for _, blk := range b {
		if blk.Index != "" {
			if i, ok := byIndex[blk.Index]; ok {
				out[i] = mergeBlock(out[i], blk)
				continue
			}
			byIndex[blk.Index] = len(out)
		}
		out = append(out, blk)
	}
	return out
}

// mergeBlock recursively merges block fields: strings concatenate,
// Args/Extras deep-merge, everything else is last-writer-wins unless
// the new value is the zero value (spec.md §4.5 step 1).
func mergeBlock(a, b schema.ContentBlock) schema.ContentBlock {
	out := a
	if b.Type != "" {
		out.Type = b.Type
	}
	out.Text = a.Text + b.Text
	out.Annotations = append(append([]schema.Citation(nil), a.Annotations...), b.Annotations...)
	out.ToolCallID = firstNonEmpty(a.ToolCallID, b.ToolCallID)
	out.ToolName = firstNonEmpty(a.ToolName, b.ToolName)
	out.ArgsPartial = a.ArgsPartial + b.ArgsPartial
	out.Args = deepMergeMap(a.Args, b.Args)
	out.Extras = deepMergeMap(a.Extras, b.Extras)
	if b.Error != "" {
		out.Error = b.Error
	}
	if b.ChunkIndex != nil {
		out.ChunkIndex = b.ChunkIndex
	}
	if b.ResultStatus != "" {
		out.ResultStatus = b.ResultStatus
	}
	if b.Result != nil {
		out.Result = b.Result
	}
	if b.URL != "" {
		out.URL = b.URL
	}
	if b.Base64 != "" {
		out.Base64 += b.Base64
	}
	if b.MimeType != "" {
		out.MimeType = b.MimeType
	}
	if b.FileID != "" {
		out.FileID = b.FileID
	}
	if b.Filename != "" {
		out.Filename = b.Filename
	}
	if len(b.Value) != 0 {
		out.Value = b.Value
	}
	return out
}

// deepMergeMap merges two maps: nested maps deep-merge recursively,
// slices extend, everything else is last-writer-wins (spec.md §4.5
// step 3). A nil left operand returns a copy of the right.
func deepMergeMap(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, exists := out[k]
		if !exists {
			out[k] = bv
			continue
		}
		out[k] = mergeValue(av, bv)
	}
	return out
}

func mergeValue(av, bv any) any {
	switch bt := bv.(type) {
	case map[string]any:
		if at, ok := av.(map[string]any); ok {
			return deepMergeMap(at, bt)
		}
		return bt
	case []any:
		if at, ok := av.([]any); ok {
			return append(append([]any(nil), at...), bt...)
		}
		return bt
	case string:
		if at, ok := av.(string); ok {
			return at + bt
		}
		return bt
	default:
		return bv
	}
}

// mergeToolCallChunks implements spec.md §3.3/§4.5 step 2: chunks are
// grouped by Index (chunks with no index are each their own group,
// appended in arrival order); within a group, Name/ID use first
// non-empty and Args string-concatenates.
func mergeToolCallChunks(a, b []schema.ToolCallChunk) []schema.ToolCallChunk {
	out := append([]schema.ToolCallChunk(nil), a...)
	byIndex := make(map[int]int)
	for i, c := range out {
		if c.Index != nil {
			byIndex[*c.Index] = i
		}
	}
	for _, c := range b {
		if c.Index != nil {
			if i, ok := byIndex[*c.Index]; ok {
				out[i] = mergeChunkPair(out[i], c)
				continue
			}
			byIndex[*c.Index] = len(out)
		}
		out = append(out, c)
	}
	return out
}

func mergeChunkPair(a, b schema.ToolCallChunk) schema.ToolCallChunk {
	var argsBuilder strings.Builder
	argsBuilder.WriteString(a.Args)
	argsBuilder.WriteString(b.Args)
	return schema.ToolCallChunk{
		Name:  firstNonEmpty(a.Name, b.Name),
		Args:  argsBuilder.String(),
		ID:    firstNonEmpty(a.ID, b.ID),
		Index: firstNonNilInt(a.Index, b.Index),
		Type:  firstNonEmpty(a.Type, b.Type),
	}
}

func firstNonNilInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}
