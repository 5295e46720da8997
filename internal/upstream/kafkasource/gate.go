package kafkasource

import (
	"sync"
	"sync/atomic"

	"github.com/mbiondo/partition-sink/internal/partition"
)

// gate tracks per-partition delivery pause state and pending seeks. A
// partitionReader goroutine consults it before delivering a fetched
// message to the sink; Source.Pause/Resume/Seek only flip flags here, so
// repeated pause/resume calls for a partition are idempotent.
type gate struct {
	mu      sync.Mutex
	paused  map[partition.ID]bool
	seekTo  map[partition.ID]partition.Offset
	backoff atomic.Int64 // milliseconds, set by RequestBackoff
}

func newGate() *gate {
	return &gate{
		paused: make(map[partition.ID]bool),
		seekTo: make(map[partition.ID]partition.Offset),
	}
}

func (g *gate) pause(p partition.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused[p] = true
}

func (g *gate) resume(p partition.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused[p] = false
}

func (g *gate) isPaused(p partition.ID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused[p]
}

func (g *gate) seek(p partition.ID, offset partition.Offset) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seekTo[p] = offset
}

// takeSeek returns and clears any pending seek for p.
func (g *gate) takeSeek(p partition.ID) (partition.Offset, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	offset, ok := g.seekTo[p]
	if ok {
		delete(g.seekTo, p)
	}
	return offset, ok
}

func (g *gate) requestBackoff(ms int) {
	g.backoff.Store(int64(ms))
}

// takeBackoff returns and clears the pending backoff, in milliseconds.
func (g *gate) takeBackoff() int64 {
	return g.backoff.Swap(0)
}

func (g *gate) forget(p partition.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.paused, p)
	delete(g.seekTo, p)
}
