package lineformat

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/storage/localfs"
)

func TestWriteProducesOneJSONLinePerRecord(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := localfs.New(root, "topics")
	provider := NewProvider("")

	tempPath := filepath.Join(root, "staging.tmp")
	first := partition.Record{Offset: 0, Value: []byte("v0")}
	w, err := provider.NewWriter(ctx, store, tempPath, first)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	records := []partition.Record{
		{Offset: 0, Key: []byte("k0"), Value: []byte("v0")},
		{Offset: 1, Value: []byte("v1"), Headers: map[string]string{"h": "1"}},
	}
	for _, rec := range records {
		if err := w.Write(time.Unix(0, 0).UTC(), rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(tempPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(lines) != len(records) {
		t.Fatalf("expected %d lines, got %d", len(records), len(lines))
	}

	var decoded line
	if err := json.Unmarshal(lines[0], &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Offset != 0 {
		t.Errorf("offset = %d, want 0", decoded.Offset)
	}
	if decoded.Key == "" {
		t.Errorf("expected a base64 key on the first line")
	}

	var decoded2 line
	if err := json.Unmarshal(lines[1], &decoded2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded2.Key != "" {
		t.Errorf("second record has no key, expected empty string, got %q", decoded2.Key)
	}
	if decoded2.Headers["h"] != "1" {
		t.Errorf("expected headers to survive the round trip, got %v", decoded2.Headers)
	}
}

func TestExtDefaultsToJsonl(t *testing.T) {
	p := NewProvider("")
	if p.Ext() != "jsonl" {
		t.Errorf("Ext() = %q, want jsonl", p.Ext())
	}
}

func TestNewProviderFromConfigDefaults(t *testing.T) {
	component, err := NewProviderFromConfig(map[string]any{})
	if err != nil {
		t.Fatalf("NewProviderFromConfig: %v", err)
	}
	p, ok := component.(*Provider)
	if !ok {
		t.Fatalf("expected *Provider, got %T", component)
	}
	if p.Ext() != "jsonl" {
		t.Errorf("Ext() = %q, want jsonl", p.Ext())
	}
}
