package structout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

const weatherSchema = `{
  "title": "get_weather",
  "type": "object",
  "properties": {"city": {"type": "string"}},
  "required": ["city"]
}`

func TestToolNameFromSchemaReadsTitle(t *testing.T) {
	name, err := ToolNameFromSchema([]byte(weatherSchema))
	require.NoError(t, err)
	assert.Equal(t, "get_weather", name)
}

func TestExtractAndValidateSucceedsForMatchingToolCall(t *testing.T) {
	p, err := NewParser("get_weather", []byte(weatherSchema))
	require.NoError(t, err)

	msg := schema.NewAIMessage("")
	msg.ToolCalls = []schema.ToolCall{schema.NewToolCall("1", "get_weather", map[string]any{"city": "Berlin"})}

	args, err := p.ExtractAndValidate(msg)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", args["city"])
}

func TestExtractAndValidateFailsOnSchemaViolation(t *testing.T) {
	p, err := NewParser("get_weather", []byte(weatherSchema))
	require.NoError(t, err)

	msg := schema.NewAIMessage("")
	msg.ToolCalls = []schema.ToolCall{schema.NewToolCall("1", "get_weather", map[string]any{})}

	_, err = p.ExtractAndValidate(msg)
	assert.Error(t, err)
}

func TestWithIncludeRawCapturesParsingErrorInsteadOfRaising(t *testing.T) {
	p, err := NewParser("get_weather", []byte(weatherSchema))
	require.NoError(t, err)

	msg := schema.NewAIMessage("")
	parsed := p.WithIncludeRaw(msg)
	assert.Error(t, parsed.ParsingError)
	assert.Equal(t, msg, parsed.Raw)
}
