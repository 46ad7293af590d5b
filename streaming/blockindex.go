package streaming

import (
	"strconv"

	"github.com/runloom/core/schema"
)

// BlockIndexTracker assigns stable per-block indices across a v1
// content stream even when a provider reorders or omits its own index
// field (spec.md §4.7). It is stateful per-message; callers create one
// per streamed response.
type BlockIndexTracker struct {
	blockIndex     int64
	blockIndexType string
}

// NewBlockIndexTracker returns a tracker with the cursor at its
// starting position (block_index = -1, block_index_type = "").
func NewBlockIndexTracker() *BlockIndexTracker {
	return &BlockIndexTracker{blockIndex: -1}
}

// Apply walks blocks in order, advancing the cursor whenever a block's
// type differs from the type the cursor is currently on, and fills in
// Index on any block that doesn't already carry one.
func (t *BlockIndexTracker) Apply(blocks []schema.ContentBlock) []schema.ContentBlock {
	out := make([]schema.ContentBlock, len(blocks))
	for i, b := range blocks {
		if string(b.Type) != t.blockIndexType {
			t.blockIndex++
			t.blockIndexType = string(b.Type)
		}
		if b.Index == "" {
			b.Index = indexString(t.blockIndex)
		}
		out[i] = b
	}
	return out
}

func indexString(i int64) string {
	if i < 0 {
		return "0"
	}
	return strconv.FormatInt(i, 10)
}
