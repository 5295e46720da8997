// Package config defines the connector's recognized configuration
// options as a typed struct, validated with
// github.com/go-ozzo/ozzo-validation/v4 and loadable from YAML.
package config

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/mbiondo/partition-sink/internal/partition"
)

// Config holds the connector's recognized configuration options.
type Config struct {
	FlushSize      int `yaml:"flush_size"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`

	URL       string `yaml:"url"`
	TopicsDir string `yaml:"topics_dir"`

	StorageClass              string `yaml:"storage_class"`
	RecordWriterProviderClass string `yaml:"record_writer_provider_class"`

	// StorageConfig and RecordWriterConfig are opaque sub-maps decoded
	// by the chosen component's own Config type via
	// registry.DecodeComponentConfig.
	StorageConfig      map[string]any `yaml:"storage_config,omitempty"`
	RecordWriterConfig map[string]any `yaml:"record_writer_config,omitempty"`
}

// Validate checks the recognized options are within range.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FlushSize, validation.Min(1).Error("must be at least 1")),
		validation.Field(&c.RetryBackoffMs, validation.Min(0).Error("must be non-negative")),
		validation.Field(&c.URL, validation.Required.Error("must not be empty")),
		validation.Field(&c.TopicsDir, validation.Required.Error("must not be empty")),
		validation.Field(&c.StorageClass, validation.Required.Error("must not be empty")),
		validation.Field(&c.RecordWriterProviderClass, validation.Required.Error("must not be empty")),
	)
}

// Settings projects the recognized options the partition state machine
// needs into a partition.Settings, keeping partition free of a dependency
// on this package.
func (c Config) Settings() partition.Settings {
	return partition.Settings{
		Root:           c.URL,
		TopicsDir:      c.TopicsDir,
		FlushSize:      c.FlushSize,
		RetryBackoffMs: c.RetryBackoffMs,
	}
}

// StorageConfigForCreate returns the component-config map to pass to
// registry.CreateStorage: the operator-supplied StorageConfig plus root
// and topics_dir derived from URL/TopicsDir. The storage backend's
// committed/temp files and its WAL both live under this one root, so
// deriving it here rather than letting an operator set storage_config's
// root/topics_dir independently keeps the two from ever drifting apart.
func (c Config) StorageConfigForCreate() map[string]any {
	merged := make(map[string]any, len(c.StorageConfig)+2)
	for k, v := range c.StorageConfig {
		merged[k] = v
	}
	merged["root"] = c.URL
	merged["topics_dir"] = c.TopicsDir
	return merged
}

// Load reads and validates a Config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a Config with sensible defaults: local storage rooted
// at ./data/topics, line-delimited JSON records, a moderate flush size,
// and a one-second retry backoff.
func Default() Config {
	return Config{
		FlushSize:                 1000,
		RetryBackoffMs:            1000,
		URL:                       "./data",
		TopicsDir:                 "topics",
		StorageClass:              "local",
		RecordWriterProviderClass: "line-json",
	}
}
