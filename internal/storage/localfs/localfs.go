// Package localfs is the default Storage backend: a distributed-file-store
// adapter implemented against the local filesystem — open, write,
// rename, remove. Production deployments would register an HDFS or
// object-store backend under the same storageClass key; this is the one
// the connector ships and tests against.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mbiondo/partition-sink/internal/partition"
	"github.com/mbiondo/partition-sink/internal/registry"
	"github.com/mbiondo/partition-sink/internal/sinkerr"
	"github.com/mbiondo/partition-sink/internal/storage"
	"github.com/mbiondo/partition-sink/internal/wal"
)

func init() {
	registry.RegisterStorage("local", NewFromConfig)
}

// Config is the component configuration a "local" storageClass entry
// decodes, via registry.DecodeComponentConfig. Root and TopicsDir are
// expected to match the values driving the partition state machine's own
// path construction (config.Config.StorageConfigForCreate derives them
// from URL/TopicsDir rather than letting an operator set them
// independently), so the WAL always lives under the same root as the
// committed/temp files it describes.
type Config struct {
	Root      string `yaml:"root"`
	TopicsDir string `yaml:"topics_dir"`
}

// NewFromConfig builds a *Storage from a generic component-config map,
// decoding the sub-map into a typed Config via
// registry.DecodeComponentConfig.
func NewFromConfig(raw map[string]any) (any, error) {
	var cfg Config
	if err := registry.DecodeComponentConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		return nil, &sinkerr.ConfigurationError{Field: "root", Reason: "must not be empty"}
	}
	if cfg.TopicsDir == "" {
		cfg.TopicsDir = "topics"
	}
	return New(cfg.Root, cfg.TopicsDir), nil
}

// Storage implements storage.Storage against the local filesystem rooted
// at Root/TopicsDir.
type Storage struct {
	Root      string
	TopicsDir string
}

// New returns a local-filesystem Storage rooted at root/topicsDir.
func New(root, topicsDir string) *Storage {
	return &Storage{Root: root, TopicsDir: topicsDir}
}

func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, sinkerr.NewStorageError("exists", path, err)
}

func (s *Storage) Mkdirs(_ context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return sinkerr.NewStorageError("mkdirs", path, err)
	}
	return nil
}

func (s *Storage) ListStatus(_ context.Context, dir string, filter storage.Filter) ([]storage.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sinkerr.NewStorageError("listStatus", dir, err)
	}

	out := make([]storage.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, sinkerr.NewStorageError("listStatus", filepath.Join(dir, e.Name()), err)
		}
		fi := storage.FileInfo{Name: e.Name(), Size: info.Size(), IsDir: e.IsDir()}
		if filter == nil || filter(fi) {
			out = append(out, fi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Storage) Create(_ context.Context, path string) (storage.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, sinkerr.NewStorageError("create", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, sinkerr.NewStorageError("create", path, err)
	}
	return f, nil
}

// Commit performs an atomic rename. On a POSIX filesystem os.Rename is
// atomic within the same volume, which is the guarantee Storage.Commit
// documents: after a crash either tempName survives alone, or finalName
// exists.
func (s *Storage) Commit(_ context.Context, tempName, finalName string) error {
	if err := os.MkdirAll(filepath.Dir(finalName), 0o755); err != nil {
		return sinkerr.NewStorageError("commit", finalName, err)
	}
	if err := os.Rename(tempName, finalName); err != nil {
		return sinkerr.NewStorageError("commit", fmt.Sprintf("%s -> %s", tempName, finalName), err)
	}
	return nil
}

func (s *Storage) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return sinkerr.NewStorageError("delete", path, err)
	}
	return nil
}

// OpenWAL opens the fixed-location, file-backed WAL for a partition,
// acquiring the exclusive writer lease via wal.Open.
func (s *Storage) OpenWAL(ctx context.Context, p partition.ID) (storage.WAL, error) {
	dir := WalDir(s.Root, s.TopicsDir, p)
	if err := s.Mkdirs(ctx, dir); err != nil {
		return nil, err
	}
	return wal.Open(s, filepath.Join(dir, "wal.log"))
}

// WalDir is the fixed per-partition directory the WAL lives under,
// separate from the committed/temp file directory so a WAL listing never
// collides with CommittedFilter.
func WalDir(root, topicsDir string, p partition.ID) string {
	return filepath.Join(root, topicsDir, ".wal", p.Topic, fmt.Sprintf("%d", p.PartitionID))
}

func (s *Storage) Close() error { return nil }
