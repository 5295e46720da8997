// Package upstream specifies the control surface the connector needs
// from the upstream message-bus client, and the callback surface the
// client drives the connector through. Polling, offset-commit, and
// rebalance-protocol internals belong to the concrete client (see
// kafkasource) — this package only names the narrow contract the core
// depends on.
package upstream

import (
	"context"

	"github.com/mbiondo/partition-sink/internal/partition"
)

// Client is the control surface the partition state machine and
// coordinator need from the upstream log client.
type Client interface {
	// Assignment returns the set of partitions currently assigned to
	// this task.
	Assignment() []partition.ID
	// Pause stops delivery for p. Idempotent.
	Pause(p partition.ID)
	// Resume restarts delivery for p. Idempotent.
	Resume(p partition.ID)
	// Seek sets the next delivery position for p.
	Seek(p partition.ID, offset partition.Offset)
	// RequestBackoff advisory-delays the next poll by ms.
	RequestBackoff(ms int)
}

// Sink is the callback surface a Client drives the connector through.
// connector.Coordinator implements this; a Client implementation (e.g.
// kafkasource.Source) calls these methods from its rebalance and poll
// loops.
type Sink interface {
	OnAssigned(ctx context.Context, assigned []partition.ID)
	OnRevoked(ctx context.Context, revoked []partition.ID)
	Write(ctx context.Context, records []partition.Record) error
	Close(ctx context.Context) error
	CommittedOffsets() map[partition.ID]partition.Offset
}
