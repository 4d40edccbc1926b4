package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"plaquequant/pkg/picks"
	"plaquequant/pkg/segment"
	"plaquequant/pkg/threshold"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Threshold.Sigma != 5 || cfg.Threshold.Value != 0.5 {
		t.Errorf("Unexpected threshold defaults %+v", cfg.Threshold)
	}
	if cfg.Picks.UsePicks {
		t.Errorf("Pick correction should be off by default")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Segmentation.Connectivity != 8 {
		t.Errorf("Expected default connectivity 8, got %d", cfg.Segmentation.Connectivity)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Threshold.Value = 0.3
	cfg.Threshold.Normalization = "zscore"
	cfg.Picks.UsePicks = true
	cfg.Picks.Population = "mode"
	cfg.Segmentation.Connectivity = 4
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	tp, err := loaded.ThresholdParams()
	if err != nil {
		t.Fatalf("ThresholdParams failed: %v", err)
	}
	if tp.Threshold != 0.3 || tp.Normalization != threshold.ZScore {
		t.Errorf("Unexpected threshold params %+v", tp)
	}
	qp, err := loaded.QuantifyParams()
	if err != nil {
		t.Fatalf("QuantifyParams failed: %v", err)
	}
	if !qp.Picks.UsePicks || qp.Picks.Population != picks.Modal || qp.Connectivity != segment.Four {
		t.Errorf("Unexpected quantify params %+v", qp)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "threshold:\n  value: 0.2\npicks:\n  usePicks: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Threshold.Value != 0.2 || cfg.Threshold.Sigma != 5 || !cfg.Picks.UsePicks {
		t.Errorf("Unexpected merged config %+v", cfg.Threshold)
	}

	src, err := cfg.ImageSource()
	if err != nil {
		t.Fatalf("ImageSource failed: %v", err)
	}
	if src.Threshold == nil || *src.Threshold != 0.2 || src.Sigma == nil || *src.Sigma != 5 || src.Mask != nil {
		t.Errorf("Unexpected image source %+v", src)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"normalization", func(c *Config) { c.Threshold.Normalization = "log" }},
		{"threshold range", func(c *Config) { c.Threshold.Value = 3 }},
		{"sigma", func(c *Config) { c.Threshold.Sigma = -1 }},
		{"connectivity", func(c *Config) { c.Segmentation.Connectivity = 6 }},
		{"population", func(c *Config) { c.Picks.Population = "mean" }},
		{"min size", func(c *Config) { c.Filters.MinComponentSize = -2 }},
		{"pixel size", func(c *Config) { c.Measurement.PixelSize = -1 }},
		{"nan pixel size", func(c *Config) { c.Measurement.PixelSize = math.NaN() }},
		{"infinite pixel size", func(c *Config) { c.Measurement.PixelSize = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("threshold: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("Expected parse error")
	}
}
