// Package idgen mints time-based, strictly increasing int64 identifiers.
package idgen

import (
	"sync"
	"time"
)

// Kind tags the entity type an id is minted for. Sequences are independent per kind.
type Kind string

const (
	KindOrder         Kind = "order"
	KindExternalOrder Kind = "external_order"
	KindTrade         Kind = "trade"
	KindExternalTrade Kind = "external_trade"
	KindPosition      Kind = "position"
	KindAsset         Kind = "asset"
)

// seqPerMilli is how many ids fit in one millisecond before the generator
// borrows from the next one.
const seqPerMilli = 1000

// Generator is constructed once at process start and shared by every
// component that mints ids.
type Generator struct {
	mu   sync.Mutex
	last map[Kind]int64
	now  func() time.Time
}

// New creates a generator backed by the wall clock
func New() *Generator {
	return NewWithClock(time.Now)
}

// NewWithClock creates a generator with an injected clock (tests)
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{
		last: make(map[Kind]int64),
		now:  now,
	}
}

// Next returns the next id for kind: unix millis * 1000 + sequence.
// Ids never go backwards even if the clock does.
func (g *Generator) Next(kind Kind) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli() * seqPerMilli
	if last := g.last[kind]; id <= last {
		id = last + 1
	}
	g.last[kind] = id
	return id
}

// Observe moves the sequence for kind past id. Used when loading persisted
// entities so freshly minted ids never collide with them.
func (g *Generator) Observe(kind Kind, id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id > g.last[kind] {
		g.last[kind] = id
	}
}

// Time extracts the mint time from an id produced by Next.
func Time(id int64) time.Time {
	return time.UnixMilli(id / seqPerMilli)
}
