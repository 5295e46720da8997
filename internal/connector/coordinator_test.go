package connector

import (
	"context"
	"testing"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/recordwriter/lineformat"
	"github.com/mbiondo/partition-sink/internal/storage/localfs"
)

type fakeClient struct {
	paused map[partition.ID]bool
}

func newFakeClient() *fakeClient { return &fakeClient{paused: make(map[partition.ID]bool)} }

func (f *fakeClient) Pause(p partition.ID)                       { f.paused[p] = true }
func (f *fakeClient) Resume(p partition.ID)                      { f.paused[p] = false }
func (f *fakeClient) Seek(p partition.ID, offset partition.Offset) {}
func (f *fakeClient) RequestBackoff(ms int)                      {}

func newTestCoordinator(t *testing.T, root string, flushSize int) *Coordinator {
	t.Helper()
	settings := partition.Settings{Root: root, TopicsDir: "topics", FlushSize: flushSize, RetryBackoffMs: 50}
	return New(settings, localfs.New(root, "topics"), lineformat.NewProvider(""), newFakeClient())
}

func TestCoordinatorWriteRoutesByPartition(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := newTestCoordinator(t, root, 2)

	orders := partition.ID{Topic: "orders", PartitionID: 0}
	payments := partition.ID{Topic: "payments", PartitionID: 0}
	c.OnAssigned(ctx, []partition.ID{orders, payments})

	// Drive recovery for both partitions first (each Execute completes
	// its recovery sub-machine when nothing is buffered yet).
	if err := c.Write(ctx, nil); err != nil {
		t.Fatalf("Write (recovery pass): %v", err)
	}

	records := []partition.Record{
		{Partition: orders, Offset: 0, Value: []byte("o0")},
		{Partition: orders, Offset: 1, Value: []byte("o1")},
		{Partition: payments, Offset: 5, Value: []byte("p5")},
	}
	if err := c.Write(ctx, records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	offsets := c.CommittedOffsets()
	if offsets[orders] != 2 {
		t.Errorf("orders committed offset = %d, want 2 (flushSize=2 rotated)", offsets[orders])
	}
	// payments has only 1 buffered record with flushSize=2, so nothing has
	// rotated to a committed file yet. highWater still becomes defined the
	// moment that first record lands in the fresh temp artifact (offset-1),
	// so CommittedOffsets() already reports the next offset to request.
	if offsets[payments] != 5 {
		t.Errorf("payments committed offset = %d, want 5 (highWater set from first buffered record, pre-rotation)", offsets[payments])
	}
}

func TestCoordinatorWriteDropsRecordsForUnassignedPartition(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := newTestCoordinator(t, root, 2)

	unassigned := partition.ID{Topic: "orders", PartitionID: 9}
	err := c.Write(ctx, []partition.Record{{Partition: unassigned, Offset: 0, Value: []byte("x")}})
	if err != nil {
		t.Fatalf("Write should not error on an unassigned partition, it should drop and log: %v", err)
	}
}

func TestCoordinatorCloseDropsAllPartitions(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := newTestCoordinator(t, root, 2)

	p := partition.ID{Topic: "orders", PartitionID: 0}
	c.OnAssigned(ctx, []partition.ID{p})
	if err := c.Write(ctx, nil); err != nil {
		t.Fatalf("Write (recovery pass): %v", err)
	}

	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(c.machines) != 0 {
		t.Errorf("Close should have dropped every tracked partition, got %d remaining", len(c.machines))
	}
}

func TestCoordinatorOnRevokedDropsPartition(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	c := newTestCoordinator(t, root, 2)

	p := partition.ID{Topic: "orders", PartitionID: 0}
	c.OnAssigned(ctx, []partition.ID{p})
	if err := c.Write(ctx, nil); err != nil {
		t.Fatalf("Write (recovery pass): %v", err)
	}

	c.OnRevoked(ctx, []partition.ID{p})
	if _, ok := c.machines[p]; ok {
		t.Errorf("OnRevoked should have removed the partition's Machine")
	}
}
