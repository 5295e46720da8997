package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should be valid, got: %v", err)
	}
}

func TestValidateRejectsZeroFlushSize(t *testing.T) {
	cfg := Default()
	cfg.FlushSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for flushSize = 0")
	}
}

func TestValidateRejectsNegativeRetryBackoff(t *testing.T) {
	cfg := Default()
	cfg.RetryBackoffMs = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for a negative retryBackoffMs")
	}
}

func TestValidateRequiresStorageClass(t *testing.T) {
	cfg := Default()
	cfg.StorageClass = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected a validation error for an empty storageClass")
	}
}

func TestSettingsProjectsRecognizedFields(t *testing.T) {
	cfg := Default()
	cfg.FlushSize = 7
	cfg.RetryBackoffMs = 250
	cfg.URL = "/var/data"
	cfg.TopicsDir = "topics"

	s := cfg.Settings()
	if s.Root != "/var/data" || s.TopicsDir != "topics" || s.FlushSize != 7 || s.RetryBackoffMs != 250 {
		t.Errorf("Settings() = %+v, did not carry over Config's fields", s)
	}
}

func TestLoadReadsAndValidatesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
flush_size: 500
retry_backoff_ms: 2000
url: /data
topics_dir: topics
storage_class: local
record_writer_provider_class: line-json
storage_config:
  max_open_files: 64
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FlushSize != 500 {
		t.Errorf("FlushSize = %d, want 500", cfg.FlushSize)
	}
	if cfg.StorageConfig["max_open_files"] != 64 {
		t.Errorf("StorageConfig[max_open_files] = %v, want 64", cfg.StorageConfig["max_open_files"])
	}
}

func TestStorageConfigForCreateDerivesRootFromURL(t *testing.T) {
	cfg := Default()
	cfg.URL = "/var/data"
	cfg.TopicsDir = "topics"
	cfg.StorageConfig = map[string]any{"max_open_files": 64}

	merged := cfg.StorageConfigForCreate()
	if merged["root"] != "/var/data" || merged["topics_dir"] != "topics" {
		t.Fatalf("StorageConfigForCreate() = %+v, want root=/var/data topics_dir=topics", merged)
	}
	if merged["max_open_files"] != 64 {
		t.Errorf("StorageConfigForCreate() dropped an operator-supplied key, got %+v", merged)
	}
}

func TestStorageConfigForCreateOverridesOperatorSuppliedRoot(t *testing.T) {
	cfg := Default()
	cfg.URL = "/var/data"
	cfg.TopicsDir = "topics"
	cfg.StorageConfig = map[string]any{"root": "/somewhere/else", "topics_dir": "other"}

	merged := cfg.StorageConfigForCreate()
	if merged["root"] != "/var/data" || merged["topics_dir"] != "topics" {
		t.Fatalf("StorageConfigForCreate() must derive root/topics_dir from URL/TopicsDir, got %+v", merged)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("flush_size: 0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected Load to reject a config missing required fields")
	}
}
