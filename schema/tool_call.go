package schema

// ToolCall is a fully-resolved tool invocation request produced by a
// model (spec.md §3.3).
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type"` // always "tool_call"
}

// NewToolCall constructs a resolved ToolCall.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	return ToolCall{ID: id, Name: name, Args: args, Type: "tool_call"}
}

// ToolCallChunk is a partial, streamable delta of a tool call identified
// by Index. Chunks sharing the same Index are concatenated during
// streaming aggregation (spec.md §3.3, §4.5).
type ToolCallChunk struct {
	Name  string `json:"name,omitempty"`
	Args  string `json:"args,omitempty"` // partial JSON
	ID    string `json:"id,omitempty"`
	Index *int   `json:"index,omitempty"`
	Type  string `json:"type"` // always "tool_call_chunk"
}

// InvalidToolCall carries a tool call whose argument string failed to
// parse as JSON. The original string is preserved, never discarded.
type InvalidToolCall struct {
	Name  string `json:"name,omitempty"`
	Args  string `json:"args,omitempty"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
	Type  string `json:"type"` // always "invalid_tool_call"
}
