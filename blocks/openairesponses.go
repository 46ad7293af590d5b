package blocks

import (
	"fmt"

	"github.com/runloom/core/schema"
)

// ResponsesContext supplies the contextual inputs the Responses
// translator needs to resolve function_call items against the
// message's own tool calls (spec.md §4.8 "OpenAI Responses API → v1").
type ResponsesContext struct {
	ToolCalls        []schema.ToolCall
	InvalidToolCalls []schema.InvalidToolCall
	IsChunk          bool
}

type hexCounter struct {
	prefix string
	n      int
}

func (c *hexCounter) next() string {
	idx := fmt.Sprintf("%s%x", c.prefix, c.n)
	c.n++
	return idx
}

// OpenAIResponsesToV1 converts one Responses API output array into v1
// blocks (spec.md §4.8). Each item's "type" selects the conversion;
// unrecognized items become non_standard blocks.
func OpenAIResponsesToV1(items []map[string]any, ctx ResponsesContext) []schema.ContentBlock {
	var out []schema.ContentBlock
	reasoningIdx := &hexCounter{prefix: "lc_rs_"}
	serverCounters := map[string]*hexCounter{
		"web_search_call":         {prefix: "lc_wsc_"},
		"web_search_result":       {prefix: "lc_wsr_"},
		"file_search_call":        {prefix: "lc_fsc_"},
		"file_search_result":      {prefix: "lc_fsr_"},
		"code_interpreter_call":   {prefix: "lc_cic_"},
		"code_interpreter_result": {prefix: "lc_cir_"},
		"mcp_call":                {prefix: "lc_mcp_"},
		"mcp_result":              {prefix: "lc_mcpr_"},
		"mcp_list_tools":          {prefix: "lc_mlt_"},
		"mcp_list_tools_result":   {prefix: "lc_mltr_"},
	}

	for _, item := range items {
		itemType, _ := item["type"].(string)
		switch itemType {
		case "text":
			out = append(out, responsesTextToV1(item))

		case "reasoning":
			out = append(out, responsesReasoningToV1(item, reasoningIdx)...)

		case "image_generation_call":
			if b, ok := responsesImageGenerationToV1(item); ok {
				out = append(out, b)
			}

		case "function_call":
			out = append(out, responsesFunctionCallToV1(item, ctx))

		case "web_search_call", "file_search_call", "code_interpreter_call", "mcp_call", "mcp_list_tools":
			call, result := responsesServerToolToV1(item, itemType, serverCounters)
			out = append(out, call, result)

		default:
			out = append(out, schema.NewNonStandardBlock(item))
		}
	}
	return out
}

func responsesTextToV1(item map[string]any) schema.ContentBlock {
	text, _ := item["text"].(string)
	block := schema.NewTextBlock(text)
	rawAnnotations, _ := item["annotations"].([]any)
	for _, a := range rawAnnotations {
		am, ok := a.(map[string]any)
		if !ok {
			continue
		}
		block.Annotations = append(block.Annotations, annotationToCitation(am))
	}
	return block
}

func annotationToCitation(am map[string]any) schema.Citation {
	annType, _ := am["type"].(string)
	switch annType {
	case "url_citation":
		url, _ := am["url"].(string)
		title, _ := am["title"].(string)
		c := schema.Citation{Type: "citation", URL: url, Title: title}
		if si, ok := am["start_index"].(float64); ok {
			v := int(si)
			c.StartIndex = &v
		}
		if ei, ok := am["end_index"].(float64); ok {
			v := int(ei)
			c.EndIndex = &v
		}
		return c
	case "file_citation":
		title, _ := am["title"].(string)
		extras := map[string]any{}
		for k, v := range am {
			if k != "type" && k != "title" {
				extras[k] = v
			}
		}
		return schema.Citation{Type: "citation", Title: title, Extras: extras}
	default:
		return schema.Citation{Type: "non_standard_annotation", Extras: am}
	}
}

func responsesReasoningToV1(item map[string]any, idx *hexCounter) []schema.ContentBlock {
	summary, _ := item["summary"].([]any)
	if len(summary) == 0 {
		return nil
	}
	out := make([]schema.ContentBlock, 0, len(summary))
	for i, s := range summary {
		sm, _ := s.(map[string]any)
		text, _ := sm["text"].(string)
		block := schema.NewReasoningBlock(text)
		block.Index = idx.next()
		if i == 0 {
			extras := map[string]any{}
			for k, v := range item {
				if k != "summary" && k != "type" {
					extras[k] = v
				}
			}
			if len(extras) > 0 {
				block.Extras = extras
			}
		}
		out = append(out, block)
	}
	return out
}

func responsesImageGenerationToV1(item map[string]any) (schema.ContentBlock, bool) {
	result, ok := item["result"].(string)
	if !ok || result == "" {
		return schema.ContentBlock{}, false
	}
	block := schema.ContentBlock{Type: schema.BlockImage, Base64: result}
	extras := map[string]any{}
	for _, key := range []string{"status", "size", "quality", "background", "output_format"} {
		if v, ok := item[key]; ok {
			extras[key] = v
		}
	}
	if len(extras) > 0 {
		block.Extras = extras
	}
	return block, true
}

func responsesFunctionCallToV1(item map[string]any, ctx ResponsesContext) schema.ContentBlock {
	callID, _ := item["call_id"].(string)
	name, _ := item["name"].(string)
	itemID, _ := item["id"].(string)

	for _, tc := range ctx.ToolCalls {
		if tc.ID == callID {
			block := schema.ContentBlock{Type: schema.BlockToolCall, ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Args}
			block.Extras = map[string]any{"item_id": itemID}
			return block
		}
	}
	for _, itc := range ctx.InvalidToolCalls {
		if itc.ID == callID {
			block := schema.ContentBlock{Type: schema.BlockInvalidToolCall, ToolCallID: itc.ID, ToolName: itc.Name, ArgsPartial: itc.Args, Error: itc.Error}
			block.Extras = map[string]any{"item_id": itemID}
			return block
		}
	}

	args, _ := item["arguments"].(string)
	block := schema.ContentBlock{
		Type:        schema.BlockToolCallChunk,
		ToolCallID:  callID,
		ToolName:    name,
		ArgsPartial: args,
		Extras:      map[string]any{"item_id": itemID},
	}
	return block
}

var serverToolResultStatus = map[string]string{
	"completed": "success",
	"failed":    "error",
}

func responsesServerToolToV1(item map[string]any, itemType string, counters map[string]*hexCounter) (call, result schema.ContentBlock) {
	status, _ := item["status"].(string)
	resultStatus, known := serverToolResultStatus[status]
	extras := map[string]any{}
	if !known {
		extras["status"] = status
		resultStatus = ""
	}

	call = schema.ContentBlock{
		Type:     schema.BlockServerToolCall,
		ToolName: itemType,
		Index:    counters[itemType].next(),
	}

	resultKey := itemType
	switch itemType {
	case "web_search_call":
		resultKey = "web_search_result"
	case "file_search_call":
		resultKey = "file_search_result"
	case "code_interpreter_call":
		resultKey = "code_interpreter_result"
	case "mcp_call":
		resultKey = "mcp_result"
	case "mcp_list_tools":
		resultKey = "mcp_list_tools_result"
	}
	result = schema.ContentBlock{
		Type:         schema.BlockServerToolResult,
		ToolName:     itemType,
		ResultStatus: resultStatus,
		Index:        counters[resultKey].next(),
		Extras:       extras,
	}
	return call, result
}
