package schema

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// Reserved message-id prefixes. The streaming aggregator uses these to
// prefer a provider-supplied id over a library-generated one once a
// stream finalizes (see streaming.PickID).
const (
	RunIDPrefix  = "lc_run-"
	AutoIDPrefix = "lc_auto_"
)

var autoIDCounter uint32

// NewAutoID returns a library-generated message id carrying AutoIDPrefix.
func NewAutoID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
	_, _ = rand.Read(b[4:9])
	c := atomic.AddUint32(&autoIDCounter, 1) % 0xFFFFFF
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return AutoIDPrefix + hex.EncodeToString(b[:])
}

// NewRunScopedID returns a message id derived from a run id, carrying
// RunIDPrefix.
func NewRunScopedID(runID string) string {
	return RunIDPrefix + runID
}

// HasReservedPrefix reports whether id carries one of the library's
// reserved prefixes, meaning it is not a genuine provider-native id.
func HasReservedPrefix(id string) bool {
	return len(id) >= len(AutoIDPrefix) && id[:len(AutoIDPrefix)] == AutoIDPrefix ||
		len(id) >= len(RunIDPrefix) && id[:len(RunIDPrefix)] == RunIDPrefix
}
