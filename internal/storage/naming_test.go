package storage

import (
	"testing"

	"github.com/mbiondo/partition-sink/internal/partition"
)

func TestCommittedPathRoundTrip(t *testing.T) {
	p := partition.ID{Topic: "orders", PartitionID: 3}
	path := CommittedPath("/data", "topics", p, 10, 19, "jsonl")

	start, end, ok := ParseCommitted(base(path))
	if !ok {
		t.Fatalf("ParseCommitted failed to parse %q", path)
	}
	if start != 10 || end != 19 {
		t.Errorf("got range [%d,%d], want [10,19]", start, end)
	}
}

func TestParseCommittedRejectsTempNames(t *testing.T) {
	p := partition.ID{Topic: "orders", PartitionID: 0}
	tmp := TempPath("/data", "topics", p)

	if _, _, ok := ParseCommitted(base(tmp)); ok {
		t.Errorf("ParseCommitted should reject a .tmp name: %q", tmp)
	}
}

func TestParseCommittedRejectsInvertedRange(t *testing.T) {
	if _, _, ok := ParseCommitted("orders+0+19+10.jsonl"); ok {
		t.Errorf("ParseCommitted should reject start > end")
	}
}

func TestCommittedFilter(t *testing.T) {
	if !CommittedFilter(FileInfo{Name: "orders+0+0+9.jsonl"}) {
		t.Errorf("CommittedFilter should accept a well-formed committed name")
	}
	if CommittedFilter(FileInfo{Name: "20260101-000000.000000000-1.tmp"}) {
		t.Errorf("CommittedFilter should reject a temp name")
	}
	if CommittedFilter(FileInfo{Name: "orders+0+0+9.jsonl", IsDir: true}) {
		t.Errorf("CommittedFilter should reject directories")
	}
}

func base(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
