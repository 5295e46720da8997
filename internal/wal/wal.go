// Package wal implements the per-partition write-ahead log: an
// append-only file of (tempName, finalName) rename intents, replayed on
// recovery before a partition may resume writing. The wire format is a
// deliberately simple one entry per line, using bufio.Writer over a file
// opened in append mode: write, flush, fsync.
package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mbiondo/partition-sink/internal/sinkerr"
	"github.com/mbiondo/partition-sink/internal/storage"
)

// entry is one WAL record: the intent to promote tempName to finalName.
type entry struct {
	TempName  string `json:"temp"`
	FinalName string `json:"final"`
}

// FileWAL is the file-backed storage.WAL implementation. Opening it
// fences any other writer for the same partition by taking an exclusive
// lock file next to the log (see lockFile below) — a local-filesystem
// stand-in for the lease/rename-based locking a distributed store would
// need for the same purpose.
type FileWAL struct {
	mu       sync.Mutex
	path     string
	lockPath string
	lockFile *os.File
	file     *os.File
	writer   *bufio.Writer
	store    storage.Storage
}

// Open opens (creating if necessary) the WAL at path, against store for
// replaying commits, acquiring the exclusive writer lease. Returns a
// fencing *sinkerr.WALError if another writer already holds the lease.
func Open(store storage.Storage, path string) (*FileWAL, error) {
	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, sinkerr.NewFencingError("open", fmt.Errorf("lease %s held", lockPath))
		}
		return nil, sinkerr.NewWALError("open", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = lockFile.Close()
		_ = os.Remove(lockPath)
		return nil, sinkerr.NewWALError("open", err)
	}

	return &FileWAL{
		path:     path,
		lockPath: lockPath,
		lockFile: lockFile,
		file:     f,
		writer:   bufio.NewWriter(f),
		store:    store,
	}, nil
}

// Append durably records a rename intent before returning: marshal,
// write, flush, fsync — the entry must be durable before the caller
// proceeds to the actual storage commit.
func (w *FileWAL) Append(_ context.Context, tempName, finalName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry{TempName: tempName, FinalName: finalName})
	if err != nil {
		return sinkerr.NewWALError("append", err)
	}
	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return sinkerr.NewWALError("append", err)
	}
	if err := w.writer.Flush(); err != nil {
		return sinkerr.NewWALError("append", err)
	}
	if err := w.file.Sync(); err != nil {
		return sinkerr.NewWALError("append", err)
	}
	return nil
}

// Apply replays every entry in order, committing (rename-if-absent) each
// one. Idempotent: an entry whose finalName already exists just drops its
// leftover tempName instead of erroring.
func (w *FileWAL) Apply(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return sinkerr.NewWALError("apply", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return sinkerr.NewWALError("apply", err)
	}

	scanner := newLineScanner(w.file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return sinkerr.NewWALError("apply", fmt.Errorf("corrupt entry: %w", err))
		}
		if err := storage.CommitIfAbsent(ctx, w.store, e.TempName, e.FinalName); err != nil {
			return sinkerr.NewWALError("apply", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return sinkerr.NewWALError("apply", err)
	}

	// Seek back to end so subsequent Appends continue appending.
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return sinkerr.NewWALError("apply", err)
	}
	return nil
}

// Truncate empties the log. Must only be called after a successful
// Apply: truncating first and crashing before Apply would lose rename
// intents for temp files that were never promoted.
func (w *FileWAL) Truncate(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return sinkerr.NewWALError("truncate", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return sinkerr.NewWALError("truncate", err)
	}
	if err := w.file.Sync(); err != nil {
		return sinkerr.NewWALError("truncate", err)
	}
	w.writer = bufio.NewWriter(w.file)
	return nil
}

// Close releases the exclusive writer lease.
func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if err := w.writer.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.lockFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := os.Remove(w.lockPath); err != nil && !os.IsNotExist(err) && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return sinkerr.NewWALError("close", firstErr)
	}
	return nil
}

// LogFile returns the WAL's path, for diagnostics only.
func (w *FileWAL) LogFile() string { return w.path }
