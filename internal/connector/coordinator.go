// Package connector implements the Coordinator: the component that owns
// the set of assigned partitions, routes incoming record batches to each
// one's state machine, and handles assignment churn and shutdown. It is
// the upstream.Sink a Client (e.g. kafkasource.Source) drives, owning a
// map of per-partition state machines and serially driving them.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/recordwriter"
	"github.com/mbiondo/partition-sink/internal/storage"
)

// client is the upstream control surface the Coordinator and its
// partition machines need. Declared locally (rather than importing
// upstream.Client) to keep connector's only dependency on the client
// interface explicit and minimal.
type client interface {
	Pause(p partition.ID)
	Resume(p partition.ID)
	Seek(p partition.ID, offset partition.Offset)
	RequestBackoff(ms int)
}

// Coordinator owns the assignment set, the shared storage adapter, and
// the map of per-partition state machines. The upstream client may call
// its methods (write, close, onAssigned, onRevoked) from several
// goroutines; mu serializes them, and the Coordinator starts no
// goroutines of its own.
type Coordinator struct {
	mu       sync.Mutex
	settings partition.Settings
	storage  storage.Storage
	provider recordwriter.Provider
	client   client

	machines map[partition.ID]*partition.Machine
}

// New builds a Coordinator with no partitions assigned yet. OnAssigned
// must be called before any Write for a given partition has anywhere to
// go.
func New(settings partition.Settings, s storage.Storage, provider recordwriter.Provider, c client) *Coordinator {
	return &Coordinator{
		settings: settings,
		storage:  s,
		provider: provider,
		client:   c,
		machines: make(map[partition.ID]*partition.Machine),
	}
}

// OnAssigned creates a fresh Machine, starting at RECOVERY_STARTED, for
// every newly assigned partition not already tracked.
func (c *Coordinator) OnAssigned(_ context.Context, assigned []partition.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range assigned {
		if _, ok := c.machines[p]; ok {
			continue
		}
		c.machines[p] = partition.New(p, c.settings, c.storage, c.provider, c.client)
	}
}

// OnRevoked best-effort rotates and commits any open temp artifact for
// each revoked partition, closes its WAL, and drops its state. Errors are
// logged, not raised — revocation must always be able to proceed.
func (c *Coordinator) OnRevoked(ctx context.Context, revoked []partition.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range revoked {
		m, ok := c.machines[p]
		if !ok {
			continue
		}
		if err := m.Revoke(ctx); err != nil {
			log.Printf("connector: error revoking partition %s: %v", p, err)
		}
		delete(c.machines, p)
	}
}

// Write buckets records by partition into their buffers, then drives
// every currently assigned partition's state machine forward once. A
// partition whose last failure is still within the backoff window is
// skipped this round.
func (c *Coordinator) Write(ctx context.Context, records []partition.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	byPartition := make(map[partition.ID][]partition.Record)
	for _, r := range records {
		byPartition[r.Partition] = append(byPartition[r.Partition], r)
	}
	for p, recs := range byPartition {
		m, ok := c.machines[p]
		if !ok {
			log.Printf("connector: dropping %d record(s) for unassigned partition %s", len(recs), p)
			continue
		}
		m.Enqueue(recs)
	}

	for p, m := range c.machines {
		if ft := m.FailureTime(); ft != nil {
			if time.Since(*ft) < time.Duration(c.settings.RetryBackoffMs)*time.Millisecond {
				continue
			}
			m.ClearFailure()
		}
		if err := m.Execute(ctx); err != nil {
			return fmt.Errorf("partition %s: %w", p, err)
		}
	}
	return nil
}

// Close best-effort tears down every assigned partition, then closes the
// shared storage adapter, aggregating every failure into one combined
// error.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for p, m := range c.machines {
		if err := m.Revoke(ctx); err != nil {
			errs = append(errs, fmt.Errorf("partition %s: %w", p, err))
		}
	}
	c.machines = make(map[partition.ID]*partition.Machine)

	if err := c.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage close: %w", err))
	}

	return errors.Join(errs...)
}

// CommittedOffsets returns highWater+1 per partition — the next offset
// the upstream should consume from — for every partition whose highWater
// is set (by a commit, a committed file found on recovery, or the first
// record written to a fresh temp artifact).
func (c *Coordinator) CommittedOffsets() map[partition.ID]partition.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[partition.ID]partition.Offset, len(c.machines))
	for p, m := range c.machines {
		if hw, ok := m.HighWater(); ok {
			out[p] = hw + 1
		}
	}
	return out
}
