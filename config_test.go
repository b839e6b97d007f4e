package vtstream

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.CacheWidth*cfg.CacheHeight != 4096 {
		t.Errorf("default cache holds %d slots, want 4096", cfg.CacheWidth*cfg.CacheHeight)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero mips", func(c *Config) { c.Mips = 0 }},
		{"too many mips", func(c *Config) { c.Mips = 14 }},
		{"cache too wide", func(c *Config) { c.CacheWidth = 257 }},
		{"empty cache", func(c *Config) { c.CacheHeight = 0 }},
		{"no buckets", func(c *Config) { c.Buckets = 0 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no budget", func(c *Config) { c.MaxInFlight = 0 }},
		{"no uploads", func(c *Config) { c.UploadsPerFrame = 0 }},
		{"tiny ring", func(c *Config) { c.RingSize = 1 }},
		{"no feedback", func(c *Config) { c.FeedbackWidth = 0 }},
		{"no requests", func(c *Config) { c.RequestsPerMip = 0 }},
		{"dedup keys overflow", func(c *Config) { c.DedupKeys = 256 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.CacheWidth, cfg.CacheHeight = 256, 256
	if err := cfg.Validate(); err != nil {
		t.Errorf("256x256 cache should be valid: %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`{
		// small texture for tests
		"mips": 4,
		"cache_width": 8,
		"cache_height": 8,
		"workers": 1,
		"encoder": "raw",
		"debug": true, // trailing comma below
	}`)

	got, err := ParseConfig(data)
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultConfig()
	want.Mips = 4
	want.CacheWidth = 8
	want.CacheHeight = 8
	want.Workers = 1
	want.Encoder = "raw"
	want.Debug = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	for name, data := range map[string]string{
		"syntax":  `{"mips": }`,
		"unknown": `{"mipz": 4}`,
		"invalid": `{"workers": 0}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(data)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseConfig(%s) = %v, want ErrInvalidConfig", data, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vtstream.jsonc")
	if err := os.WriteFile(path, []byte(`{"max_in_flight": 8 /* halved */}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxInFlight != 8 {
		t.Errorf("MaxInFlight = %d, want 8", cfg.MaxInFlight)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.jsonc")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig(missing) = %v, want os.ErrNotExist", err)
	}
}
