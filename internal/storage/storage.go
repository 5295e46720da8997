// Package storage defines the narrow interface the connector needs from
// a distributed file store, and the pure file-naming conventions shared
// by every backend that implements it.
package storage

import (
	"context"
	"io"

	"github.com/mbiondo/partition-sink/internal/partition"
)

// FileInfo is the subset of directory-entry metadata the connector needs
// from a listing: just enough to parse committed-file offset ranges.
type FileInfo struct {
	Name  string // base name, not the full path
	Size  int64
	IsDir bool
}

// Filter decides whether a directory entry should be included in a
// ListStatus result. CommittedFilter (naming.go) is the one the recovery
// sub-machine uses to find prior committed files.
type Filter func(FileInfo) bool

// WriteCloser is an open handle a RecordWriter serializes records into.
// Backends that buffer in memory return one backed by an *os.File or
// equivalent; Storage.Create is the only way to obtain one.
type WriteCloser interface {
	io.Writer
	io.Closer
}

// Storage is the adapter surface the connector needs from the distributed
// file store: existence, listing, directory creation, atomic rename
// ("commit"), deletion, and opening a partition's WAL. Every operation
// performs network I/O and blocks the calling goroutine.
//
// Commit must be atomic with respect to crashes: after a crash, either
// tempName exists and finalName does not, or finalName exists (tempName
// may or may not still exist; if both exist, tempName is garbage and may
// be deleted). Commit itself is a plain rename; the idempotent
// rename-if-absent behavior comes from CommitIfAbsent.
type Storage interface {
	Exists(ctx context.Context, path string) (bool, error)
	Mkdirs(ctx context.Context, path string) error
	ListStatus(ctx context.Context, dir string, filter Filter) ([]FileInfo, error)
	Create(ctx context.Context, path string) (WriteCloser, error)
	// Commit atomically renames tempName to finalName. It does not check
	// whether finalName already exists; CommitIfAbsent, which every
	// caller in this module uses, adds that check.
	Commit(ctx context.Context, tempName, finalName string) error
	Delete(ctx context.Context, path string) error
	// OpenWAL opens (or creates) the write-ahead log for a partition,
	// fencing any other writer for the same partition. Returns a
	// *sinkerr.WALError with Fenced=true if exclusivity cannot be
	// acquired.
	OpenWAL(ctx context.Context, p partition.ID) (WAL, error)
	Close() error
}

// WAL is the per-partition append-only log of (tempName -> finalName)
// rename intents. See package wal for the concrete file-backed
// implementation; Storage.OpenWAL is the only constructor callers use,
// so the interface lives here to avoid storage <-> wal import cycles.
type WAL interface {
	// Append durably records a rename intent before returning.
	Append(ctx context.Context, tempName, finalName string) error
	// Apply replays entries in order, committing each one that hasn't
	// already landed. Idempotent: calling Apply twice in a row is a
	// no-op the second time.
	Apply(ctx context.Context) error
	// Truncate empties the log. Must be durable before return, and
	// must only be called after a successful Apply.
	Truncate(ctx context.Context) error
	// Close releases the exclusive writer lease.
	Close() error
	// LogFile returns the WAL's path, for diagnostics only.
	LogFile() string
}

// CommitIfAbsent renames tempName to finalName unless finalName already
// exists, in which case it deletes tempName (if present) and returns nil.
// This is the rename-if-missing, no-op-if-target-exists semantics every
// WAL replay and every direct commit must use.
func CommitIfAbsent(ctx context.Context, s Storage, tempName, finalName string) error {
	exists, err := s.Exists(ctx, finalName)
	if err != nil {
		return err
	}
	if exists {
		if tempExists, err := s.Exists(ctx, tempName); err == nil && tempExists {
			return s.Delete(ctx, tempName)
		}
		return nil
	}
	return s.Commit(ctx, tempName, finalName)
}
