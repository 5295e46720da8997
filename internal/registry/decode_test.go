package registry

import "testing"

func TestDecodeComponentConfig(t *testing.T) {
	type fileConfig struct {
		Root      string `yaml:"root"`
		TopicsDir string `yaml:"topics_dir"`
	}

	raw := map[string]any{"root": "/data", "topics_dir": "topics"}
	var cfg fileConfig
	if err := DecodeComponentConfig(raw, &cfg); err != nil {
		t.Fatalf("DecodeComponentConfig: %v", err)
	}
	if cfg.Root != "/data" || cfg.TopicsDir != "topics" {
		t.Errorf("got %+v, want Root=/data TopicsDir=topics", cfg)
	}
}

func TestDecodeComponentConfigIgnoresUnknownFields(t *testing.T) {
	type fileConfig struct {
		Root string `yaml:"root"`
	}

	raw := map[string]any{"root": "/data", "unused": "value"}
	var cfg fileConfig
	if err := DecodeComponentConfig(raw, &cfg); err != nil {
		t.Fatalf("DecodeComponentConfig: %v", err)
	}
	if cfg.Root != "/data" {
		t.Errorf("got %+v, want Root=/data", cfg)
	}
}
