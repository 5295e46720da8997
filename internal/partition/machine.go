package partition

import (
	"context"
	"time"

	"github.com/mbiondo/partition-sink/internal/recordwriter"
	"github.com/mbiondo/partition-sink/internal/sinkerr"
	"github.com/mbiondo/partition-sink/internal/storage"
)

// noHighWater marks "no commit has happened yet" — highWater is only
// meaningful once a record has been appended to a fresh temp artifact or
// a committed file has been found on recovery.
const noHighWater Offset = -1

// Machine is the per-partition runtime record: the recovery and write
// sub-machine state plus every field both sub-machines touch, co-located
// on one struct rather than split across parallel maps owned by the
// coordinator.
type Machine struct {
	ID       ID
	settings Settings
	storage  storage.Storage
	provider recordwriter.Provider
	client   upstreamClient
	clock    func() time.Time

	state State

	buffer []Record

	writer        recordwriter.Writer
	tempName      string
	pendingFinal  string
	wal           storage.WAL
	highWater     Offset
	recordsInTemp int
	recovered     bool
	failureTime   *time.Time
}

// upstreamClient is the narrow slice of upstream.Client the machine
// needs; declared locally to avoid an import cycle (upstream doesn't
// depend on partition's concrete Machine, only on the ID/Offset types it
// already imports).
type upstreamClient interface {
	Pause(p ID)
	Resume(p ID)
	Seek(p ID, offset Offset)
	RequestBackoff(ms int)
}

// New creates a Machine for a newly assigned partition, ready to begin
// recovery on its first Execute call.
func New(id ID, settings Settings, s storage.Storage, provider recordwriter.Provider, client upstreamClient) *Machine {
	return &Machine{
		ID:        id,
		settings:  settings,
		storage:   s,
		provider:  provider,
		client:    client,
		clock:     time.Now,
		state:     RecoveryStarted,
		highWater: noHighWater,
	}
}

// Enqueue appends records to the partition's buffer. The coordinator
// calls this once per batch before driving Execute.
func (m *Machine) Enqueue(records []Record) {
	m.buffer = append(m.buffer, records...)
}

// HighWater returns the partition's high-water mark: the last committed
// end offset, or, before any commit, the offset just before the first
// record written to a fresh temp artifact. It returns false while neither
// has set it.
func (m *Machine) HighWater() (Offset, bool) {
	if m.highWater == noHighWater {
		return 0, false
	}
	return m.highWater, true
}

// BufferLen reports how many records are currently queued, for tests and
// diagnostics.
func (m *Machine) BufferLen() int { return len(m.buffer) }

// State returns the machine's current state, for tests and diagnostics.
func (m *Machine) State() State { return m.state }

// FailureTime returns the wall-clock time of the last drain failure, or
// nil if the partition is healthy.
func (m *Machine) FailureTime() *time.Time { return m.failureTime }

// ClearFailure clears the recorded failure, called by the coordinator
// once the backoff window has elapsed.
func (m *Machine) ClearFailure() { m.failureTime = nil }

// Execute advances the state machine until the partition's buffer is
// drained, a rotation completes with nothing left to write, or a failure
// interrupts the drain. On failure it records failureTime, requests a
// backoff, and leaves state at the failing step so the next Execute call
// resumes there — each step is independently retryable.
//
// A non-retryable error (IllegalWorkerStateError, a fenced WAL) is
// returned to the caller instead of being absorbed into the backoff path.
func (m *Machine) Execute(ctx context.Context) error {
	for {
		done, err := m.step(ctx)
		if err != nil {
			if !sinkerr.Retryable(err) {
				return err
			}
			now := m.clock()
			m.failureTime = &now
			m.client.RequestBackoff(m.settings.RetryBackoffMs)
			return nil
		}
		if done {
			return nil
		}
	}
}

// step runs exactly one state transition and reports whether the drain
// should pause here (done) until the next Execute call.
func (m *Machine) step(ctx context.Context) (done bool, err error) {
	switch m.state {

	case RecoveryStarted:
		m.client.Pause(m.ID)
		m.state = RecoveryPartitionPaused
		return false, nil

	case RecoveryPartitionPaused:
		w, err := m.storage.OpenWAL(ctx, m.ID)
		if err != nil {
			return false, err
		}
		m.wal = w
		m.state = WALCreated
		return false, nil

	case WALCreated:
		if err := m.wal.Apply(ctx); err != nil {
			return false, err
		}
		m.state = WALApplied
		return false, nil

	case WALApplied:
		if err := m.wal.Truncate(ctx); err != nil {
			return false, err
		}
		m.state = WALTruncated
		return false, nil

	case WALTruncated:
		if err := m.resetOffsetFromCommitted(ctx); err != nil {
			return false, err
		}
		m.state = OffsetReset
		return false, nil

	case OffsetReset:
		m.client.Resume(m.ID)
		m.recovered = true
		m.state = WriteStarted
		return false, nil

	case WriteStarted:
		m.client.Pause(m.ID)
		m.state = WritePartitionPaused
		return false, nil

	case WritePartitionPaused:
		return m.stepDrain(ctx)

	case ShouldRotate:
		if err := m.writer.Close(); err != nil {
			return false, sinkerr.NewRecordWriterError("close", err)
		}
		m.writer = nil
		m.state = TempFileClosed
		return false, nil

	case TempFileClosed:
		start := m.highWater + 1
		end := m.highWater + Offset(m.recordsInTemp)
		final := storage.CommittedPath(m.settings.Root, m.settings.TopicsDir, m.ID, start, end, m.provider.Ext())
		if err := m.wal.Append(ctx, m.tempName, final); err != nil {
			return false, err
		}
		m.pendingFinal = final
		m.state = WALAppended
		return false, nil

	case WALAppended:
		if err := storage.CommitIfAbsent(ctx, m.storage, m.tempName, m.pendingFinal); err != nil {
			return false, err
		}
		m.highWater += Offset(m.recordsInTemp)
		m.recordsInTemp = 0
		m.tempName = ""
		m.pendingFinal = ""
		m.state = FileCommitted
		return false, nil

	case FileCommitted:
		m.state = WritePartitionPaused
		return false, nil

	default:
		return false, &sinkerr.IllegalWorkerStateError{Reason: "unknown state " + m.state.String()}
	}
}

// resetOffsetFromCommitted scans the partition's committed-file directory
// for the maximum endOffset, sets highWater from it (leaving it unset if
// no committed files exist), and seeks the upstream to highWater+1.
func (m *Machine) resetOffsetFromCommitted(ctx context.Context) error {
	dir := storage.PartitionDir(m.settings.Root, m.settings.TopicsDir, m.ID)
	entries, err := m.storage.ListStatus(ctx, dir, storage.CommittedFilter)
	if err != nil {
		return err
	}

	m.highWater = noHighWater
	for _, e := range entries {
		_, end, ok := storage.ParseCommitted(e.Name)
		if !ok {
			continue
		}
		if end > m.highWater {
			m.highWater = end
		}
	}

	if m.highWater != noHighWater {
		m.client.Seek(m.ID, m.highWater+1)
	}
	return nil
}
