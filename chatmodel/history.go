package chatmodel

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/runloom/core/schema"
)

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

var historyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// wireMessage is the on-disk envelope for a schema.Message: the
// interface itself carries no type discriminant, so persistence goes
// through this tagged struct instead (grounded on the teacher's
// ChatHistory.Save/Load JSON shape, adapted to the v1 message model).
type wireMessage struct {
	Role             schema.MessageRole       `json:"role"`
	Text             string                   `json:"text,omitempty"`
	Blocks           []schema.ContentBlock    `json:"blocks,omitempty"`
	ID               string                   `json:"id,omitempty"`
	Name             string                   `json:"name,omitempty"`
	ToolCallID       string                   `json:"tool_call_id,omitempty"`
	Status           string                   `json:"status,omitempty"`
	ToolCalls        []schema.ToolCall        `json:"tool_calls,omitempty"`
	InvalidToolCalls []schema.InvalidToolCall `json:"invalid_tool_calls,omitempty"`
	UsageMetadata    *schema.UsageMetadata    `json:"usage_metadata,omitempty"`
	AdditionalKwargs map[string]any           `json:"additional_kwargs,omitempty"`
	ResponseMetadata map[string]any           `json:"response_metadata,omitempty"`
}

func toWire(m schema.Message) wireMessage {
	base := m.Base()
	w := wireMessage{
		Role:             base.Role,
		ID:               base.ID,
		Name:             base.Name,
		AdditionalKwargs: base.AdditionalKwargs,
		ResponseMetadata: base.ResponseMetadata,
	}
	if base.Content.IsBlocks() {
		w.Blocks = base.Content.Blocks
	} else {
		w.Text = base.Content.Text
	}
	switch v := m.(type) {
	case schema.AIMessage:
		w.ToolCalls = v.ToolCalls
		w.InvalidToolCalls = v.InvalidToolCalls
		w.UsageMetadata = v.UsageMetadata
	case schema.ToolMessage:
		w.ToolCallID = v.ToolCallID
		w.Status = v.Status
	}
	return w
}

func (w wireMessage) content() schema.MessageContent {
	if w.Blocks != nil {
		return schema.BlockContent(w.Blocks...)
	}
	return schema.TextContent(w.Text)
}

func (w wireMessage) base() schema.BaseMessage {
	return schema.BaseMessage{
		Role:             w.Role,
		Content:          w.content(),
		ID:               w.ID,
		Name:             w.Name,
		AdditionalKwargs: w.AdditionalKwargs,
		ResponseMetadata: w.ResponseMetadata,
	}
}

func (w wireMessage) toMessage() schema.Message {
	switch w.Role {
	case schema.RoleSystem:
		return schema.SystemMessage{BaseMessage: w.base()}
	case schema.RoleHuman:
		return schema.HumanMessage{BaseMessage: w.base()}
	case schema.RoleAI:
		return schema.AIMessage{
			BaseMessage:      w.base(),
			ToolCalls:        w.ToolCalls,
			InvalidToolCalls: w.InvalidToolCalls,
			UsageMetadata:    w.UsageMetadata,
		}
	case schema.RoleTool:
		return schema.ToolMessage{BaseMessage: w.base(), ToolCallID: w.ToolCallID, Status: w.Status}
	case schema.RoleFunction:
		return schema.FunctionMessage{BaseMessage: w.base()}
	case schema.RoleChat:
		return schema.ChatMessage{BaseMessage: w.base()}
	default:
		return schema.ChatMessage{BaseMessage: w.base()}
	}
}

// wireHistory is the on-disk shape for an entire ChatHistory.
type wireHistory struct {
	Summary  string        `json:"summary,omitempty"`
	Messages []wireMessage `json:"messages"`
}

// ChatHistory is a mutex-guarded, append-only-by-convention message log
// for one conversation, with bounded-size truncation and disk
// persistence (spec.md §7, grounded on the teacher's pkg/llm/history.go
// ChatHistory).
type ChatHistory struct {
	mu       sync.RWMutex
	Summary  string
	Messages []schema.Message
}

// NewChatHistory returns an empty history.
func NewChatHistory() *ChatHistory {
	return &ChatHistory{}
}

// Add appends a message to the history.
func (h *ChatHistory) Add(m schema.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Messages = append(h.Messages, m)
}

// GetMessages returns a defensive copy of the message slice.
func (h *ChatHistory) GetMessages() []schema.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]schema.Message, len(h.Messages))
	copy(out, h.Messages)
	return out
}

// GetSummary returns the rolling conversation summary, if any.
func (h *ChatHistory) GetSummary() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Summary
}

// SetSummary replaces the rolling conversation summary.
func (h *ChatHistory) SetSummary(summary string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Summary = summary
}

// EnsureSystemMessage makes sure the history starts with a system
// message carrying text, inserting one at index 0 if the first message
// isn't already a SystemMessage.
func (h *ChatHistory) EnsureSystemMessage(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Messages) > 0 {
		if _, ok := h.Messages[0].(schema.SystemMessage); ok {
			return
		}
	}
	sys := schema.NewSystemMessage(text)
	h.Messages = append([]schema.Message{sys}, h.Messages...)
}

// TruncateHistory keeps only the most recent `keep` messages, always
// preserving a leading system message if one exists (spec.md §7,
// grounded on the teacher's TruncateHistory). It returns the image file
// ids referenced only by discarded messages so callers can garbage
// collect them; this history itself never touches the filesystem.
func (h *ChatHistory) TruncateHistory(keep int) (discardedImageFiles []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if keep <= 0 || len(h.Messages) <= keep {
		return nil
	}

	var sys *schema.SystemMessage
	rest := h.Messages
	if s, ok := h.Messages[0].(schema.SystemMessage); ok {
		sys = &s
		rest = h.Messages[1:]
	}

	effectiveKeep := keep
	if sys != nil {
		effectiveKeep = keep - 1
	}
	cut := len(rest) - effectiveKeep
	if cut < 0 {
		cut = 0
	}
	if cut > len(rest) {
		cut = len(rest)
	}

	discarded := rest[:cut]
	kept := rest[cut:]

	keptIDs := map[string]bool{}
	for _, m := range kept {
		for _, id := range imageFileIDsOf(m) {
			keptIDs[id] = true
		}
	}
	for _, m := range discarded {
		for _, id := range imageFileIDsOf(m) {
			if !keptIDs[id] {
				discardedImageFiles = append(discardedImageFiles, id)
			}
		}
	}

	if sys != nil {
		h.Messages = append([]schema.Message{*sys}, kept...)
	} else {
		h.Messages = kept
	}
	return discardedImageFiles
}

func imageFileIDsOf(m schema.Message) []string {
	base := m.Base()
	if !base.Content.IsBlocks() {
		return nil
	}
	var ids []string
	for _, b := range base.Content.Blocks {
		if b.Type == schema.BlockImage && b.FileID != "" {
			ids = append(ids, b.FileID)
		}
	}
	return ids
}

// GCImageFiles removes image files under dir named by the given file
// ids, logging failures instead of raising (spec.md §7, grounded on the
// teacher's os.Remove-with-logging cleanup in TruncateHistory).
func GCImageFiles(dir string, fileIDs []string) {
	for _, id := range fileIDs {
		path := dir + string(os.PathSeparator) + id
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "chatmodel: failed to remove stale image file %s: %v\n", path, err)
		}
	}
}

// ProcessImages extracts inline base64 image blocks in msg's content
// into files under dir, replacing Base64 with a FileID so the
// in-memory history stays small (spec.md §7, grounded on the teacher's
// ProcessImages). Non-image content is left untouched.
func ProcessImages(dir string, msg schema.Message) (schema.Message, error) {
	base := msg.Base()
	if !base.Content.IsBlocks() {
		return msg, nil
	}

	changed := false
	blocks := make([]schema.ContentBlock, len(base.Content.Blocks))
	copy(blocks, base.Content.Blocks)

	for i, b := range blocks {
		if b.Type != schema.BlockImage || b.Base64 == "" {
			continue
		}
		raw, err := decodeBase64(b.Base64)
		if err != nil {
			return msg, err
		}
		mimeType, ext := imageMimeAndExt(b, raw)
		fileID := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), schema.NewAutoID(), ext)
		if err := os.WriteFile(dir+string(os.PathSeparator)+fileID, raw, 0o600); err != nil {
			return msg, err
		}
		blocks[i].FileID = fileID
		blocks[i].Base64 = ""
		blocks[i].MimeType = mimeType
		changed = true
	}
	if !changed {
		return msg, nil
	}

	base.Content = schema.BlockContent(blocks...)
	return rebuild(msg, base), nil
}

// imageMimeAndExt resolves the mime type and filename extension for an
// image block being extracted to disk. A mime type the translator
// already stamped on the block wins; otherwise the decoded bytes are
// sniffed. Image blocks carry a closed set of mime types, so an
// explicit extension table avoids mime.ExtensionsByType's
// platform-dependent ordering; anything unrecognized is stored as .bin
// with whatever the sniffer reported.
func imageMimeAndExt(b schema.ContentBlock, raw []byte) (string, string) {
	mimeType := b.MimeType
	if mimeType == "" && len(raw) > 0 {
		mimeType = http.DetectContentType(raw)
	}
	switch mimeType {
	case "image/png":
		return mimeType, ".png"
	case "image/jpeg":
		return mimeType, ".jpg"
	case "image/gif":
		return mimeType, ".gif"
	case "image/webp":
		return mimeType, ".webp"
	case "image/bmp":
		return mimeType, ".bmp"
	}
	return mimeType, ".bin"
}

func rebuild(m schema.Message, base schema.BaseMessage) schema.Message {
	switch v := m.(type) {
	case schema.SystemMessage:
		v.BaseMessage = base
		return v
	case schema.HumanMessage:
		v.BaseMessage = base
		return v
	case schema.AIMessage:
		v.BaseMessage = base
		return v
	case schema.ToolMessage:
		v.BaseMessage = base
		return v
	case schema.FunctionMessage:
		v.BaseMessage = base
		return v
	case schema.ChatMessage:
		v.BaseMessage = base
		return v
	default:
		return m
	}
}

// Save persists the history as JSON.
func (h *ChatHistory) Save(path string) error {
	h.mu.RLock()
	wire := wireHistory{Summary: h.Summary, Messages: make([]wireMessage, len(h.Messages))}
	for i, m := range h.Messages {
		wire.Messages[i] = toWire(m)
	}
	h.mu.RUnlock()

	data, err := historyJSON.MarshalIndent(wire, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load reads a previously-saved history from path.
func Load(path string) (*ChatHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wire wireHistory
	if err := historyJSON.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	h := &ChatHistory{Summary: wire.Summary, Messages: make([]schema.Message, len(wire.Messages))}
	for i, w := range wire.Messages {
		h.Messages[i] = w.toMessage()
	}
	return h, nil
}
