// Package lineformat is the default RecordWriterProvider: one JSON object
// per line, written with a line-oriented open/write-a-line/flush writer.
package lineformat

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/recordwriter"
	"github.com/mbiondo/partition-sink/internal/registry"
	"github.com/mbiondo/partition-sink/internal/sinkerr"
	"github.com/mbiondo/partition-sink/internal/storage"
)

func init() {
	registry.RegisterRecordWriterProvider("line-json", NewProviderFromConfig)
}

// Config is the line-json provider's component configuration.
type Config struct {
	Ext string `yaml:"ext,omitempty"`
}

// NewProviderFromConfig builds a *Provider from a generic component
// config map.
func NewProviderFromConfig(raw map[string]any) (any, error) {
	var cfg Config
	if err := registry.DecodeComponentConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Ext == "" {
		cfg.Ext = "jsonl"
	}
	return &Provider{ext: cfg.Ext}, nil
}

// Provider builds line-delimited-JSON Writers.
type Provider struct {
	ext string
}

// NewProvider returns a Provider writing files with the given extension.
func NewProvider(ext string) *Provider {
	if ext == "" {
		ext = "jsonl"
	}
	return &Provider{ext: ext}
}

func (p *Provider) Ext() string { return p.ext }

// NewWriter opens tempPath for writing and returns a line-delimited-JSON
// Writer over it. The first record is unused; this format carries no
// shared header or schema.
func (p *Provider) NewWriter(ctx context.Context, s storage.Storage, tempPath string, _ partition.Record) (recordwriter.Writer, error) {
	wc, err := s.Create(ctx, tempPath)
	if err != nil {
		return nil, err
	}
	return &lineWriter{wc: wc, buf: bufio.NewWriter(wc)}, nil
}

// line is the JSON shape one lineWriter.Write call appends.
type line struct {
	Timestamp time.Time         `json:"timestamp"`
	Offset    partition.Offset  `json:"offset"`
	Key       string            `json:"key,omitempty"`
	Value     string            `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
}

type lineWriter struct {
	wc  storage.WriteCloser
	buf *bufio.Writer
}

// Write encodes rec as a single JSON line and appends it. The whole line
// is built in memory before any bytes reach buf, so a marshal failure
// never leaves a partial record on disk.
func (w *lineWriter) Write(ts time.Time, rec partition.Record) error {
	l := line{
		Timestamp: ts,
		Offset:    rec.Offset,
		Value:     base64.StdEncoding.EncodeToString(rec.Value),
		Headers:   rec.Headers,
	}
	if len(rec.Key) > 0 {
		l.Key = base64.StdEncoding.EncodeToString(rec.Key)
	}

	data, err := json.Marshal(l)
	if err != nil {
		return sinkerr.NewRecordWriterError("write", err)
	}
	data = append(data, '\n')

	if _, err := w.buf.Write(data); err != nil {
		return sinkerr.NewRecordWriterError("write", err)
	}
	return nil
}

func (w *lineWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.wc.Close()
		return sinkerr.NewRecordWriterError("close", err)
	}
	if err := w.wc.Close(); err != nil {
		return sinkerr.NewRecordWriterError("close", fmt.Errorf("%w", err))
	}
	return nil
}
