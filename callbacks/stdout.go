package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/runloom/core/schema"
)

// CustomHandler implements slog.Handler with a compact
// "[time] [level] [debug-id] message attr=val ..." line, the format
// every package in this module logs through.
type CustomHandler struct {
	w     io.Writer
	opts  slog.HandlerOptions
	attrs []slog.Attr
}

// DebugIDContextKey is the context key CustomHandler checks to prefix
// a log line with the active run/session id.
type debugIDContextKey struct{}

var DebugIDContextKey = debugIDContextKey{}

func NewCustomHandler(w io.Writer, opts slog.HandlerOptions) *CustomHandler {
	return &CustomHandler{w: w, opts: opts}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := bytes.NewBuffer(nil)

	debugID := ""
	if ctx != nil {
		if id, ok := ctx.Value(DebugIDContextKey).(string); ok && id != "" {
			debugID = id
		}
	}

	fmt.Fprintf(buf, "[%s] [%s]", r.Time.Format("2006-01-02 15:04:05"), r.Level)
	if debugID != "" {
		fmt.Fprintf(buf, " [%s]", debugID)
	}
	fmt.Fprintf(buf, " %s", r.Message)

	for _, a := range h.attrs {
		h.appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(buf, a)
		return true
	})
	buf.WriteString("\n")

	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *CustomHandler) appendAttr(buf *bytes.Buffer, a slog.Attr) {
	buf.WriteString(" ")
	buf.WriteString(a.Key)
	buf.WriteString("=")

	val := a.Value.Resolve()
	switch val.Kind() {
	case slog.KindString:
		fmt.Fprintf(buf, "%q", val.String())
	case slog.KindTime:
		buf.WriteString(val.Time().Format(time.RFC3339))
	default:
		fmt.Fprintf(buf, "%v", val.Any())
	}
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{w: h.w, opts: h.opts, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *CustomHandler) WithGroup(_ string) slog.Handler {
	return h
}

// SetupSlog installs CustomHandler as the global slog logger at the
// given level name ("debug", "warn"/"warning", "error", else "info").
func SetupSlog(levelStr string) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(NewCustomHandler(os.Stderr, slog.HandlerOptions{Level: level})))
}

// StdOutHandler is the Handler Configure auto-attaches when Verbose is
// set (spec.md §4.1 step 4): it logs chat-model, chain, and tool
// starts, ends, and errors through the package slog logger, and writes
// streamed tokens straight to os.Stdout.
type StdOutHandler struct {
	NopHandler
}

// NewStdOutHandler builds a StdOutHandler. It is always run_inline
// since log output ordering matters for readability.
func NewStdOutHandler() *StdOutHandler { return &StdOutHandler{} }

func (*StdOutHandler) Name() string    { return "StdOutHandler" }
func (*StdOutHandler) RunInline() bool { return true }

func (*StdOutHandler) OnChatModelStart(_ map[string]any, messages [][]schema.Message, runID uuid.UUID, _ *uuid.UUID, _ []string, _ map[string]any) {
	total := 0
	for _, list := range messages {
		total += len(list)
	}
	slog.Info("chat model start", "run_id", runID, "messages", total)
}

func (*StdOutHandler) OnLLMNewToken(token string, runID uuid.UUID, _ *uuid.UUID, _ *schema.AIMessageChunk) {
	fmt.Fprint(os.Stdout, token)
	_ = runID
}

func (*StdOutHandler) OnLLMEnd(result schema.LLMResult, runID uuid.UUID, _ *uuid.UUID) {
	slog.Info("chat model end", "run_id", runID, "generations", len(result.Generations))
}

func (*StdOutHandler) OnLLMError(err error, runID uuid.UUID, _ *uuid.UUID) {
	slog.Error("chat model error", "run_id", runID, "error", err)
}

func (*StdOutHandler) OnChainStart(_ map[string]any, _ any, runID uuid.UUID, _ *uuid.UUID, _ []string, _ map[string]any, name string) {
	slog.Info("chain start", "run_id", runID, "name", name)
}

func (*StdOutHandler) OnChainEnd(_ any, runID uuid.UUID, _ *uuid.UUID) {
	slog.Info("chain end", "run_id", runID)
}

func (*StdOutHandler) OnChainError(err error, runID uuid.UUID, _ *uuid.UUID) {
	slog.Error("chain error", "run_id", runID, "error", err)
}

func (*StdOutHandler) OnToolStart(_ map[string]any, inputStr string, runID uuid.UUID, _ *uuid.UUID, _ []string, _ map[string]any, _ map[string]any) {
	slog.Info("tool start", "run_id", runID, "input", inputStr)
}

func (*StdOutHandler) OnToolEnd(_ any, runID uuid.UUID, _ *uuid.UUID) {
	slog.Info("tool end", "run_id", runID)
}

func (*StdOutHandler) OnToolError(err error, runID uuid.UUID, _ *uuid.UUID) {
	slog.Error("tool error", "run_id", runID, "error", err)
}

// newDebugHandler builds the ambient DebugHandler Configure
// auto-attaches when Debug is set: it logs chat-model starts (with the
// serialized params, tags, and metadata), LLM ends, and LLM errors at
// slog.LevelDebug, and ignores every other event.
func newDebugHandler() Handler { return &debugHandler{} }

type debugHandler struct{ NopHandler }

func (*debugHandler) Name() string    { return "DebugHandler" }
func (*debugHandler) RunInline() bool { return true }

func (*debugHandler) OnChatModelStart(serialized map[string]any, messages [][]schema.Message, runID uuid.UUID, _ *uuid.UUID, tags []string, metadata map[string]any) {
	slog.Debug("chat model start", "run_id", runID, "serialized", serialized, "tags", tags, "metadata", metadata, "message_lists", len(messages))
}

func (*debugHandler) OnLLMEnd(result schema.LLMResult, runID uuid.UUID, _ *uuid.UUID) {
	slog.Debug("chat model end", "run_id", runID, "llm_output", result.LLMOutput)
}

func (*debugHandler) OnLLMError(err error, runID uuid.UUID, _ *uuid.UUID) {
	slog.Debug("chat model error", "run_id", runID, "error", err)
}
