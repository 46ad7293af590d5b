// Package structout implements with_structured_output's JSON-tool
// parsing and schema validation stage (spec.md §4.10), grounded on the
// compile-and-cache jsonschema usage pattern from the plugin config
// validator in the example pack.
package structout

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/runloom/core/llmerrors"
	"github.com/runloom/core/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Parser validates and extracts a structured-output tool call's
// arguments against a compiled JSON schema.
type Parser struct {
	ToolName string

	mu     sync.Mutex
	schema *jsonschema.Schema
}

// NewParser compiles schemaJSON under the given tool name (spec.md
// §4.10 step 1: "Extract the tool name from the schema").
func NewParser(toolName string, schemaJSON []byte) (*Parser, error) {
	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(schemaJSON))
	if err != nil {
		return nil, llmerrors.NewConfigurationError("compile structured output schema %q: %v", toolName, err)
	}
	return &Parser{ToolName: toolName, schema: compiled}, nil
}

// ToolNameFromSchema extracts a tool name per spec.md §4.10 step 1:
// the JSON schema's "title", or an OpenAI-tool-shaped schema's
// function.name.
func ToolNameFromSchema(schemaJSON []byte) (string, error) {
	var decoded map[string]any
	if err := jsonAPI.Unmarshal(schemaJSON, &decoded); err != nil {
		return "", fmt.Errorf("decode schema: %w", err)
	}
	if title, ok := decoded["title"].(string); ok && title != "" {
		return title, nil
	}
	if fn, ok := decoded["function"].(map[string]any); ok {
		if name, ok := fn["name"].(string); ok && name != "" {
			return name, nil
		}
	}
	return "", llmerrors.NewConfigurationError("structured output schema has no title or function.name")
}

// Parsed is the envelope structured output produces when IncludeRaw
// is requested (spec.md §4.10 step 4): parsing errors are captured
// here rather than raised.
type Parsed struct {
	Raw          schema.AIMessage
	Value        map[string]any
	ParsingError error
}

// ExtractAndValidate finds the first tool call named p.ToolName in
// message, validates its args against the compiled schema, and
// returns them (spec.md §4.10 steps 2-3).
func (p *Parser) ExtractAndValidate(message schema.AIMessage) (map[string]any, error) {
	for _, tc := range message.ToolCalls {
		if tc.Name != p.ToolName {
			continue
		}
		if err := p.validate(tc.Args); err != nil {
			return nil, err
		}
		return tc.Args, nil
	}
	return nil, llmerrors.NewContractError("no tool call named %q in model output", p.ToolName)
}

func (p *Parser) validate(args map[string]any) error {
	p.mu.Lock()
	s := p.schema
	p.mu.Unlock()
	if err := s.Validate(toInterface(args)); err != nil {
		return fmt.Errorf("structured output failed schema validation: %w", err)
	}
	return nil
}

// toInterface round-trips through JSON so jsonschema.Validate sees
// plain Go values (map[string]interface{}, []interface{}, float64,
// ...) regardless of how args was originally decoded.
func toInterface(args map[string]any) any {
	raw, err := jsonAPI.Marshal(args)
	if err != nil {
		return args
	}
	var decoded any
	if err := jsonAPI.Unmarshal(raw, &decoded); err != nil {
		return args
	}
	return decoded
}

// WithIncludeRaw wraps ExtractAndValidate's result into the
// {raw, parsed, parsing_error} envelope (spec.md §4.10 step 4).
func (p *Parser) WithIncludeRaw(message schema.AIMessage) Parsed {
	value, err := p.ExtractAndValidate(message)
	return Parsed{Raw: message, Value: value, ParsingError: err}
}
