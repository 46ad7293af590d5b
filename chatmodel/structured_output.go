package chatmodel

import (
	"context"

	"github.com/runloom/core/runnable"
	"github.com/runloom/core/schema"
	"github.com/runloom/core/structout"
)

// StructuredOutputEnvelope is what with_structured_output's runnable
// produces when IncludeRaw is set (spec.md §4.10 step 4): the raw
// AIMessage, the validated value (nil on parse failure), and any
// parsing error captured rather than raised.
type StructuredOutputEnvelope struct {
	Raw          schema.AIMessage
	Parsed       map[string]any
	ParsingError error
}

// parserRunnable adapts a *structout.Parser into a
// runnable.Runnable[schema.AIMessage, map[string]any] so it can be
// piped after a ChatRunnable (spec.md §4.10 step 3).
type parserRunnable struct {
	parser *structout.Parser
}

func (p parserRunnable) Invoke(_ context.Context, input schema.AIMessage, _ runnable.Config) (map[string]any, error) {
	return p.parser.ExtractAndValidate(input)
}

func (p parserRunnable) Batch(ctx context.Context, inputs []schema.AIMessage, cfg runnable.Config, returnExceptions bool) ([]runnable.Result[map[string]any], error) {
	return runnable.DefaultBatch[schema.AIMessage, map[string]any](ctx, p, inputs, cfg, returnExceptions)
}

func (p parserRunnable) Stream(ctx context.Context, input schema.AIMessage, cfg runnable.Config) (<-chan runnable.StreamItem[map[string]any], error) {
	return runnable.DefaultStream[schema.AIMessage, map[string]any](ctx, p, input, cfg)
}

// envelopeRunnable wraps a ChatRunnable + parserRunnable pair so
// parsing errors populate ParsingError instead of propagating, per
// spec.md §4.10 step 4 "parser errors are captured into parsing_error
// rather than raised" / §9 "parse failures must not short-circuit".
type envelopeRunnable struct {
	model  ChatRunnable
	parser *structout.Parser
}

func (e envelopeRunnable) Invoke(ctx context.Context, input []schema.Message, cfg runnable.Config) (StructuredOutputEnvelope, error) {
	raw, err := e.model.Invoke(ctx, input, cfg)
	if err != nil {
		return StructuredOutputEnvelope{}, err
	}
	parsed := e.parser.WithIncludeRaw(raw)
	return StructuredOutputEnvelope{Raw: parsed.Raw, Parsed: parsed.Value, ParsingError: parsed.ParsingError}, nil
}

func (e envelopeRunnable) Batch(ctx context.Context, inputs [][]schema.Message, cfg runnable.Config, returnExceptions bool) ([]runnable.Result[StructuredOutputEnvelope], error) {
	return runnable.DefaultBatch[[]schema.Message, StructuredOutputEnvelope](ctx, e, inputs, cfg, returnExceptions)
}

func (e envelopeRunnable) Stream(ctx context.Context, input []schema.Message, cfg runnable.Config) (<-chan runnable.StreamItem[StructuredOutputEnvelope], error) {
	return runnable.DefaultStream[[]schema.Message, StructuredOutputEnvelope](ctx, e, input, cfg)
}

// WithStructuredOutput implements spec.md §4.10: it extracts the tool
// name from schemaJSON (step 1), binds the single resulting tool with
// ToolChoiceAny (step 2), and pipes the model's output into a
// JSON-schema-validating parser (step 3). With includeRaw=false, the
// returned runnable's Output is the validated map directly and a parse
// failure propagates as an error; with includeRaw=true, the Output is
// a StructuredOutputEnvelope and parse failures are captured instead.
func (m *Model) WithStructuredOutput(schemaJSON []byte, includeRaw bool) (any, error) {
	toolName, err := structout.ToolNameFromSchema(schemaJSON)
	if err != nil {
		return nil, err
	}
	bound, err := m.BindTools([]ToolDefinition{{
		Kind:       ToolKindFunction,
		Name:       toolName,
		Parameters: schemaJSON,
	}}, AnyTool())
	if err != nil {
		return nil, err
	}
	parser, err := structout.NewParser(toolName, schemaJSON)
	if err != nil {
		return nil, err
	}

	chatRunnable := bound.AsRunnable()
	if includeRaw {
		return envelopeRunnable{model: chatRunnable, parser: parser}, nil
	}
	return runnable.Pipe[[]schema.Message, schema.AIMessage, map[string]any](chatRunnable, parserRunnable{parser: parser}), nil
}
