package storage

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mbiondo/partition-sink/internal/partition"
)

// fieldSep is the separator used both when constructing a committed file
// name and when parsing one back apart. The emitter and its filter must
// agree on one character; this adapter uses '+' everywhere, never '_',
// so ParseCommitted and CommittedPath never drift out of sync with each
// other.
const fieldSep = "+"

var tempSeq uint64

// PartitionDir returns the directory holding every temp and committed
// file for a partition: <root>/<topicsDir>/<topic>/<partitionId>/.
func PartitionDir(root, topicsDir string, p partition.ID) string {
	return path.Join(root, topicsDir, p.Topic, strconv.Itoa(p.PartitionID))
}

// TempPath returns a fresh, collision-unlikely temp-file path for a
// partition. The name carries no offset information — it is identified
// purely by its .tmp extension, which CommittedFilter never matches.
func TempPath(root, topicsDir string, p partition.ID) string {
	seq := atomic.AddUint64(&tempSeq, 1)
	name := fmt.Sprintf("%s-%d.tmp", time.Now().UTC().Format("20060102-150405.000000000"), seq)
	return path.Join(PartitionDir(root, topicsDir, p), name)
}

// CommittedPath returns the deterministic committed-file path for the
// inclusive offset range [start, end].
func CommittedPath(root, topicsDir string, p partition.ID, start, end partition.Offset, ext string) string {
	name := fmt.Sprintf("%s%s%d%s%d%s%d.%s",
		p.Topic, fieldSep, p.PartitionID, fieldSep, start, fieldSep, end, ext)
	return path.Join(PartitionDir(root, topicsDir, p), name)
}

// ParseCommitted extracts (start, end) from a committed file's base name.
// ok is false if name does not follow the <topic>+<partitionId>+<start>+<end>.<ext>
// convention — in particular, every *.tmp file fails to parse.
func ParseCommitted(name string) (start, end partition.Offset, ok bool) {
	base := name
	if idx := strings.LastIndexByte(base, '.'); idx >= 0 {
		base = base[:idx]
	} else {
		return 0, 0, false
	}

	fields := strings.Split(base, fieldSep)
	if len(fields) != 4 {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

// CommittedFilter is a storage.Filter that accepts exactly the entries
// ParseCommitted can parse.
func CommittedFilter(info FileInfo) bool {
	if info.IsDir {
		return false
	}
	_, _, ok := ParseCommitted(info.Name)
	return ok
}
