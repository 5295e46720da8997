package partition

import (
	"context"
	"errors"

	"github.com/mbiondo/partition-sink/internal/storage"
)

// Revoke runs the best-effort teardown for partition revocation (and,
// via the coordinator, connector Close): if a
// writer is open, try to rotate-and-commit whatever was buffered so far
// before releasing the WAL lease. Every failure is collected rather than
// stopping teardown partway — revocation must always be able to proceed
// so the partition can be reassigned elsewhere; the caller decides
// whether to log or aggregate what Revoke returns.
func (m *Machine) Revoke(ctx context.Context) error {
	var errs []error
	if m.writer != nil {
		if err := m.rotateBestEffort(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if m.wal != nil {
		if err := m.wal.Close(); err != nil {
			errs = append(errs, err)
		}
		m.wal = nil
	}
	return errors.Join(errs...)
}

// rotateBestEffort runs the SHOULD_ROTATE..FILE_COMMITTED sequence once,
// outside of Execute's retry loop, to preserve whatever is in the open
// temp artifact.
func (m *Machine) rotateBestEffort(ctx context.Context) error {
	if err := m.writer.Close(); err != nil {
		return err
	}
	m.writer = nil

	start := m.highWater + 1
	end := m.highWater + Offset(m.recordsInTemp)
	final := storage.CommittedPath(m.settings.Root, m.settings.TopicsDir, m.ID, start, end, m.providerExt())

	if err := m.wal.Append(ctx, m.tempName, final); err != nil {
		return err
	}
	if err := storage.CommitIfAbsent(ctx, m.storage, m.tempName, final); err != nil {
		return err
	}

	m.highWater += Offset(m.recordsInTemp)
	m.recordsInTemp = 0
	m.tempName = ""
	return nil
}

func (m *Machine) providerExt() string {
	if m.provider == nil {
		return ""
	}
	return m.provider.Ext()
}
