package schema

import jsoniter "github.com/json-iterator/go"

// BlockType identifies the closed variant set of the v1 content-block
// vocabulary (spec.md §3.2).
type BlockType string

const (
	BlockText                BlockType = "text"
	BlockReasoning           BlockType = "reasoning"
	BlockToolCall            BlockType = "tool_call"
	BlockToolCallChunk       BlockType = "tool_call_chunk"
	BlockInvalidToolCall     BlockType = "invalid_tool_call"
	BlockImage               BlockType = "image"
	BlockAudio               BlockType = "audio"
	BlockVideo               BlockType = "video"
	BlockFile                BlockType = "file"
	BlockTextPlain           BlockType = "text-plain"
	BlockServerToolCall      BlockType = "server_tool_call"
	BlockServerToolCallChunk BlockType = "server_tool_call_chunk"
	BlockServerToolResult    BlockType = "server_tool_result"
	BlockNonStandard         BlockType = "non_standard"
)

// ContentBlock is one typed piece of message content in the canonical v1
// vocabulary. Every field beyond Type/Index/Extras is only meaningful for
// a subset of Type values; unused fields are left at their zero value.
//
// Extras preserves provider fields that don't map onto a named field so
// that round-tripping through v1 never silently drops information
// (spec.md §3.2 invariant).
type ContentBlock struct {
	Type  BlockType `json:"type"`
	Index string    `json:"index,omitempty"`

	// text / reasoning / text-plain
	Text        string     `json:"text,omitempty"`
	Annotations []Citation `json:"annotations,omitempty"`

	// tool_call / tool_call_chunk / invalid_tool_call / server_tool_call(_chunk)
	ToolCallID string `json:"id,omitempty"`
	ToolName   string `json:"name,omitempty"`
	// Args holds resolved structured arguments for tool_call /
	// server_tool_call; ArgsPartial holds the raw partial JSON string for
	// tool_call_chunk / invalid_tool_call.
	Args        map[string]any `json:"args,omitempty"`
	ArgsPartial string         `json:"args_partial,omitempty"`
	ChunkIndex  *int           `json:"chunk_index,omitempty"`
	Error       string         `json:"error,omitempty"`

	// server_tool_result
	ResultStatus string `json:"status,omitempty"` // "success" | "error"
	Result       any    `json:"result,omitempty"`

	// image / audio / video / file
	URL      string `json:"url,omitempty"`
	Base64   string `json:"base64,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	Filename string `json:"filename,omitempty"`

	// non_standard
	Value jsoniter.RawMessage `json:"value,omitempty"`

	// Extras preserves unrecognized provider fields keyed by name.
	Extras map[string]any `json:"extras,omitempty"`
}

// Citation is a normalized annotation attached to a text block, produced
// by the OpenAI Responses translator (spec.md §4.8).
type Citation struct {
	Type       string         `json:"type"` // "citation" | "non_standard_annotation"
	URL        string         `json:"url,omitempty"`
	Title      string         `json:"title,omitempty"`
	StartIndex *int           `json:"start_index,omitempty"`
	EndIndex   *int           `json:"end_index,omitempty"`
	Extras     map[string]any `json:"extras,omitempty"`
}

// NewTextBlock builds a plain text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewReasoningBlock builds an opaque chain-of-thought block.
func NewReasoningBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockReasoning, Text: text}
}

// NewNonStandardBlock wraps an unrecognized provider block so no
// information is discarded (spec.md §3.2 invariant: non_standard is the
// only permitted fallback).
func NewNonStandardBlock(original any) ContentBlock {
	raw, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(original)
	return ContentBlock{Type: BlockNonStandard, Value: raw}
}

// IsDataURI reports whether s looks like a "data:" URI, used by
// translators deciding whether to decompose a URL into base64+mime.
func IsDataURI(s string) bool {
	return len(s) > 5 && s[:5] == "data:"
}
