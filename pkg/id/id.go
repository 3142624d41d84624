package id

import (
	"encoding/binary"
	"sync"
	"time"
)

// ID is a 128-bit sortable identifier: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

// String returns the lowercase hex form.
func (i ID) String() string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(i)*2)
	for n, v := range i {
		out[n*2] = hexdigits[v>>4]
		out[n*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// nowMs is swappable for tests.
var nowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. If the clock goes backwards, the previous timestamp
// is reused and the sequence keeps the ordering.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := nowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.sequence++
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	var id ID
	binary.BigEndian.PutUint64(id[0:8], uint64(ms))
	binary.BigEndian.PutUint64(id[8:16], g.sequence)
	return id
}
