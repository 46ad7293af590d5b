package chatmodel

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/runloom/core/llmerrors"
)

// ToolKind distinguishes a caller-defined function tool from a
// provider-executed built-in tool (spec.md §4.9 "Tool serialization").
type ToolKind string

const (
	ToolKindFunction ToolKind = "function"
	ToolKindBuiltin  ToolKind = "builtin"
)

// ToolDefinition is the provider-agnostic shape bind_tools hands to an
// adapter (spec.md §4.9, §4.10 step 2). Function tools carry a JSON
// Schema in Parameters; built-in tools (web search, file search, code
// interpreter, MCP, image generation, computer use) carry only
// BuiltinType and are only valid under providers/openairesponses.
type ToolDefinition struct {
	Kind        ToolKind
	Name        string
	Description string
	Parameters  jsoniter.RawMessage

	// BuiltinType names the server-side tool kind for ToolKindBuiltin
	// ("web_search", "file_search", "code_interpreter", "mcp",
	// "image_generation", "computer_use").
	BuiltinType string
}

// ToolChoiceMode selects how strongly a model must invoke a bound tool.
type ToolChoiceMode string

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceAny  ToolChoiceMode = "any"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceName ToolChoiceMode = "tool"
)

// ToolChoice mirrors the ToolChoice::any()/ToolChoice::auto() helpers
// spec.md §4.10 step 2 calls out explicitly.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // meaningful only when Mode == ToolChoiceName
}

func AnyTool() ToolChoice              { return ToolChoice{Mode: ToolChoiceAny} }
func AutoTool() ToolChoice             { return ToolChoice{Mode: ToolChoiceAuto} }
func NoTool() ToolChoice               { return ToolChoice{Mode: ToolChoiceNone} }
func NamedTool(name string) ToolChoice { return ToolChoice{Mode: ToolChoiceName, Name: name} }

// ToolBindingAdapter is the capability an Adapter optionally implements
// to accept bound tools (spec.md §4.9 "bind_tools"). WithTools must
// return a new Adapter value rather than mutating the receiver (spec.md
// §5 "Provider adapters ... bind_tools / with_structured_output return
// new adapter values, never mutate").
type ToolBindingAdapter interface {
	Adapter
	WithTools(tools []ToolDefinition, choice ToolChoice) Adapter
}

// BindTools implements spec.md §4.10 step 2 at the Model level: it
// wraps the underlying Adapter via ToolBindingAdapter.WithTools and
// marks ToolsBound so DisableStreaming==StreamingDisabledForToolCalling
// takes effect. Returns llmerrors.ErrNotImplemented if the adapter has
// no tool-binding support.
func (m *Model) BindTools(tools []ToolDefinition, choice ToolChoice) (*Model, error) {
	binder, ok := m.Adapter.(ToolBindingAdapter)
	if !ok {
		return nil, llmerrors.NotImplemented(m.Adapter.ProviderName() + " adapter does not implement bind_tools")
	}
	clone := *m
	clone.Adapter = binder.WithTools(tools, choice)
	clone.ToolsBound = true
	return &clone, nil
}
