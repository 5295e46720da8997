// Package recordwriter defines the RecordWriter/Provider abstraction:
// codec-level serialization of records to an open temp artifact. The
// on-disk format is opaque to the partition state machine and chosen once
// at connector startup via recordWriterProviderClass.
package recordwriter

import (
	"context"
	"time"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/storage"
)

// Writer serializes records to an open temp artifact. Write must be
// all-or-nothing per record: a mid-record codec failure must not leave a
// partially-written record the next recovery can't detect, so
// implementations should buffer a whole encoded record before writing it
// rather than streaming field-by-field.
type Writer interface {
	Write(ts time.Time, rec partition.Record) error
	Close() error
}

// Provider constructs a Writer for a fresh temp artifact. NewWriter
// receives the first record only to let formats that need a schema or
// header derive it from the record shape (the default lineformat
// provider ignores it).
type Provider interface {
	NewWriter(ctx context.Context, s storage.Storage, tempPath string, first partition.Record) (Writer, error)
	// Ext is the file extension CommittedPath uses for files this
	// provider writes, e.g. "json" or "avro".
	Ext() string
}
