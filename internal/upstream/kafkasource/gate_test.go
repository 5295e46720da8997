package kafkasource

import (
	"testing"

	"github.com/mbiondo/partition-sink/internal/partition"
)

func TestGatePauseResumeDefaultsToNotPaused(t *testing.T) {
	g := newGate()
	p := partition.ID{Topic: "orders", PartitionID: 0}

	if g.isPaused(p) {
		t.Fatalf("a partition with no Pause call should not be paused")
	}
	g.pause(p)
	if !g.isPaused(p) {
		t.Fatalf("expected isPaused to be true after pause")
	}
	g.resume(p)
	if g.isPaused(p) {
		t.Fatalf("expected isPaused to be false after resume")
	}
}

func TestGateTakeSeekClearsThePendingSeek(t *testing.T) {
	g := newGate()
	p := partition.ID{Topic: "orders", PartitionID: 0}

	if _, ok := g.takeSeek(p); ok {
		t.Fatalf("expected no pending seek before seek() is called")
	}
	g.seek(p, 42)
	offset, ok := g.takeSeek(p)
	if !ok || offset != 42 {
		t.Fatalf("takeSeek = (%d, %v), want (42, true)", offset, ok)
	}
	if _, ok := g.takeSeek(p); ok {
		t.Fatalf("a second takeSeek should find nothing, the first one should have cleared it")
	}
}

func TestGateTakeBackoffClearsThePendingValue(t *testing.T) {
	g := newGate()
	if ms := g.takeBackoff(); ms != 0 {
		t.Fatalf("takeBackoff with nothing requested = %d, want 0", ms)
	}
	g.requestBackoff(250)
	if ms := g.takeBackoff(); ms != 250 {
		t.Fatalf("takeBackoff = %d, want 250", ms)
	}
	if ms := g.takeBackoff(); ms != 0 {
		t.Fatalf("takeBackoff after being taken = %d, want 0", ms)
	}
}

func TestGateForgetDropsPauseAndSeekState(t *testing.T) {
	g := newGate()
	p := partition.ID{Topic: "orders", PartitionID: 0}
	g.pause(p)
	g.seek(p, 7)

	g.forget(p)

	if g.isPaused(p) {
		t.Errorf("forget should drop pause state, isPaused still true")
	}
	if _, ok := g.takeSeek(p); ok {
		t.Errorf("forget should drop pending seek state")
	}
}
