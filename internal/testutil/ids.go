package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/taskq/internal/slugid"
)

// SequentialIDs generates valid task ids in a fixed order, so a test run
// produces the same ids every time.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu sync.Mutex
	n  uint64
}

// Next returns the next id. The first call yields the id for sequence 1.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	g.n++
	n := g.n
	g.mu.Unlock()

	var u uuid.UUID
	binary.BigEndian.PutUint64(u[8:], n)
	u[6] = 0x40             // version 4
	u[8] = 0x80 | u[8]&0x3f // RFC 4122 variant
	return slugid.Encode(u)
}

// Reset restarts the sequence.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
