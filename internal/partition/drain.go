package partition

import (
	"context"

	"github.com/mbiondo/partition-sink/internal/storage"
)

// stepDrain implements the WRITE_PARTITION_PAUSED loop body: peek one
// record, open a writer/temp artifact if none is open, write it, pop it,
// and decide whether flushSize has been reached. Records already
// reflected in a committed file (offset <= highWater) are dropped without
// being written, giving dedup-on-replay after an upstream rebalance.
func (m *Machine) stepDrain(ctx context.Context) (done bool, err error) {
	if len(m.buffer) == 0 {
		m.client.Resume(m.ID)
		m.state = WriteStarted
		return true, nil
	}

	rec := m.buffer[0]

	if m.highWater != noHighWater && rec.Offset <= m.highWater {
		m.buffer = m.buffer[1:]
		return false, nil
	}

	if m.writer == nil {
		m.tempName = storage.TempPath(m.settings.Root, m.settings.TopicsDir, m.ID)
		w, err := m.provider.NewWriter(ctx, m.storage, m.tempName, rec)
		if err != nil {
			return false, err
		}
		m.writer = w
		if m.highWater == noHighWater {
			m.highWater = rec.Offset - 1
		}
	}

	if err := m.writer.Write(m.clock(), rec); err != nil {
		return false, err
	}
	m.buffer = m.buffer[1:]
	m.recordsInTemp++

	if m.recordsInTemp >= m.settings.FlushSize {
		m.state = ShouldRotate
	}
	return false, nil
}
