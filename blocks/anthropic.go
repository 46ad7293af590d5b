package blocks

import (
	"github.com/runloom/core/schema"
)

// AnthropicToV1 converts an Anthropic-format content list into v1
// blocks (spec.md §4.8). Anthropic is input-only here: no reverse
// translator exists because no Anthropic adapter is bundled; the
// translator lets callers normalize Anthropic-shaped history into the
// standard vocabulary before replaying it through another provider.
func AnthropicToV1(parts []map[string]any) []schema.ContentBlock {
	var out []schema.ContentBlock
	for _, part := range parts {
		partType, _ := part["type"].(string)
		switch partType {
		case "text":
			text, _ := part["text"].(string)
			block := schema.NewTextBlock(text)
			if citations, ok := part["citations"].([]any); ok && len(citations) > 0 {
				for _, c := range citations {
					cm, ok := c.(map[string]any)
					if !ok {
						continue
					}
					block.Annotations = append(block.Annotations, anthropicCitation(cm))
				}
			}
			out = append(out, block)

		case "thinking":
			text, _ := part["thinking"].(string)
			block := schema.NewReasoningBlock(text)
			if sig, ok := part["signature"].(string); ok && sig != "" {
				block.Extras = map[string]any{"signature": sig}
			}
			out = append(out, block)

		case "tool_use":
			id, _ := part["id"].(string)
			name, _ := part["name"].(string)
			args, _ := part["input"].(map[string]any)
			out = append(out, schema.ContentBlock{
				Type:       schema.BlockToolCall,
				ToolCallID: id,
				ToolName:   name,
				Args:       args,
			})

		case "server_tool_use":
			id, _ := part["id"].(string)
			name, _ := part["name"].(string)
			args, _ := part["input"].(map[string]any)
			out = append(out, schema.ContentBlock{
				Type:       schema.BlockServerToolCall,
				ToolCallID: id,
				ToolName:   name,
				Args:       args,
			})

		case "web_search_tool_result", "code_execution_tool_result":
			id, _ := part["tool_use_id"].(string)
			out = append(out, schema.ContentBlock{
				Type:         schema.BlockServerToolResult,
				ToolCallID:   id,
				ResultStatus: "success",
				Result:       part["content"],
			})

		case "image":
			out = append(out, anthropicMediaToV1(part, schema.BlockImage))

		case "document":
			out = append(out, anthropicMediaToV1(part, schema.BlockFile))

		default:
			out = append(out, schema.NewNonStandardBlock(part))
		}
	}
	return out
}

func anthropicCitation(cm map[string]any) schema.Citation {
	citedText, _ := cm["cited_text"].(string)
	url, _ := cm["url"].(string)
	title, _ := cm["title"].(string)
	if url == "" && citedText == "" {
		return schema.Citation{Type: "non_standard_annotation", Extras: cm}
	}
	extras := map[string]any{}
	for k, v := range cm {
		if k != "url" && k != "title" && k != "type" {
			extras[k] = v
		}
	}
	c := schema.Citation{Type: "citation", URL: url, Title: title}
	if len(extras) > 0 {
		c.Extras = extras
	}
	return c
}

func anthropicMediaToV1(part map[string]any, kind schema.BlockType) schema.ContentBlock {
	source, _ := part["source"].(map[string]any)
	sourceType, _ := source["type"].(string)
	block := schema.ContentBlock{Type: kind}
	switch sourceType {
	case "base64":
		block.Base64, _ = source["data"].(string)
		block.MimeType, _ = source["media_type"].(string)
	case "url":
		block.URL, _ = source["url"].(string)
	case "file":
		block.FileID, _ = source["file_id"].(string)
	default:
		return schema.NewNonStandardBlock(part)
	}
	return block
}
