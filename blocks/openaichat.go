// Package blocks implements the per-provider translators between wire
// formats and the v1 content-block vocabulary (spec.md §3.2, §4.8).
package blocks

import (
	"strings"

	"github.com/runloom/core/schema"
)

// OpenAIChatToV1 converts one OpenAI Chat Completions response message's
// raw content parts into v1 blocks (spec.md §4.8 "OpenAI Chat
// Completions → v1"). additionalKwargs supplies out-of-band fields
// like a leading reasoning_content.
func OpenAIChatToV1(parts []map[string]any, additionalKwargs map[string]any) []schema.ContentBlock {
	var out []schema.ContentBlock

	if rc, ok := additionalKwargs["reasoning_content"].(string); ok && rc != "" && !hasReasoningBlock(parts) {
		out = append(out, schema.NewReasoningBlock(rc))
	}

	for _, part := range parts {
		out = append(out, openAIChatPartToV1(part))
	}
	return out
}

func hasReasoningBlock(parts []map[string]any) bool {
	for _, p := range parts {
		if t, _ := p["type"].(string); t == "reasoning" {
			return true
		}
	}
	return false
}

func openAIChatPartToV1(part map[string]any) schema.ContentBlock {
	partType, _ := part["type"].(string)
	switch partType {
	case "text":
		text, _ := part["text"].(string)
		return schema.NewTextBlock(text)

	case "image_url":
		return openAIImagePartToV1(part)

	case "input_audio":
		return openAIAudioPartToV1(part)

	case "file":
		return openAIFilePartToV1(part)

	default:
		return schema.NewNonStandardBlock(part)
	}
}

func openAIImagePartToV1(part map[string]any) schema.ContentBlock {
	imageURL, _ := part["image_url"].(map[string]any)
	url, _ := imageURL["url"].(string)

	block := schema.ContentBlock{Type: schema.BlockImage}
	extras := map[string]any{}
	if detail, ok := imageURL["detail"]; ok {
		extras["detail"] = detail
	}
	for k, v := range imageURL {
		if k != "url" && k != "detail" {
			extras[k] = v
		}
	}
	if len(extras) > 0 {
		block.Extras = extras
	}

	if schema.IsDataURI(url) {
		mime, b64 := splitDataURI(url)
		block.MimeType = mime
		block.Base64 = b64
		return block
	}
	block.URL = url
	return block
}

func openAIAudioPartToV1(part map[string]any) schema.ContentBlock {
	audio, _ := part["input_audio"].(map[string]any)
	data, _ := audio["data"].(string)
	format, _ := audio["format"].(string)
	return schema.ContentBlock{
		Type:     schema.BlockAudio,
		Base64:   data,
		MimeType: "audio/" + format,
	}
}

func openAIFilePartToV1(part map[string]any) schema.ContentBlock {
	file, _ := part["file"].(map[string]any)
	if fileID, ok := file["file_id"].(string); ok && fileID != "" {
		return schema.ContentBlock{Type: schema.BlockFile, FileID: fileID}
	}
	fileData, _ := file["file_data"].(string)
	filename, _ := file["filename"].(string)
	block := schema.ContentBlock{Type: schema.BlockFile, Filename: filename}
	if schema.IsDataURI(fileData) {
		mime, b64 := splitDataURI(fileData)
		block.MimeType = mime
		block.Base64 = b64
	}
	return block
}

// splitDataURI splits "data:<mime>;base64,<data>" into its mime type
// and base64 payload.
func splitDataURI(uri string) (mime, b64 string) {
	rest := strings.TrimPrefix(uri, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", rest
	}
	return rest[:semi], rest[semi+len(";base64,"):]
}

// V1ToOpenAIChat converts v1 input blocks back to OpenAI Chat
// Completions wire parts (spec.md §4.8 "input normalization"):
// image/audio/file blocks are re-encoded as image_url/input_audio/file
// parts; non_standard blocks are unwrapped to their original JSON object
// (and dropped if it is not one); everything else passes through as
// text.
func V1ToOpenAIChat(blocks []schema.ContentBlock) []map[string]any {
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case schema.BlockText, schema.BlockTextPlain:
			out = append(out, map[string]any{"type": "text", "text": b.Text})
		case schema.BlockImage:
			out = append(out, map[string]any{"type": "image_url", "image_url": map[string]any{"url": imageURLFor(b)}})
		case schema.BlockAudio:
			format := strings.TrimPrefix(b.MimeType, "audio/")
			out = append(out, map[string]any{"type": "input_audio", "input_audio": map[string]any{"data": b.Base64, "format": format}})
		case schema.BlockFile:
			out = append(out, map[string]any{"type": "file", "file": fileObjectFor(b)})
		case schema.BlockNonStandard:
			var raw map[string]any
			if jsonAPI.Unmarshal(b.Value, &raw) == nil {
				out = append(out, raw)
			}
		default:
			out = append(out, map[string]any{"type": "text", "text": b.Text})
		}
	}
	return out
}

func imageURLFor(b schema.ContentBlock) string {
	if b.URL != "" {
		return b.URL
	}
	return "data:" + b.MimeType + ";base64," + b.Base64
}

func fileObjectFor(b schema.ContentBlock) map[string]any {
	if b.FileID != "" {
		return map[string]any{"file_id": b.FileID}
	}
	return map[string]any{
		"file_data": "data:" + b.MimeType + ";base64," + b.Base64,
		"filename":  b.Filename,
	}
}
