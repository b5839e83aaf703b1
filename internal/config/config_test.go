package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Extract.MinArea != 10 {
		t.Errorf("Expected min area 10, got %d", cfg.Extract.MinArea)
	}
	if cfg.Extract.SimplifyTolerance != 0.25 {
		t.Errorf("Expected tolerance 0.25, got %v", cfg.Extract.SimplifyTolerance)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("Expected cache ttl 1h, got %v", cfg.Cache.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Missing file should not be an error: %v", err)
	}
	if cfg.Output.MaskFormat != "tif" {
		t.Errorf("Expected default mask format, got %q", cfg.Output.MaskFormat)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
extract:
  min_area: 25
pipeline:
  workers: 4
cache:
  backend: none
  ttl: 5m
server:
  port: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Extract.MinArea != 25 || cfg.Pipeline.Workers != 4 {
		t.Errorf("File values were not applied: %+v", cfg)
	}
	if cfg.Extract.SimplifyTolerance != 0.25 {
		t.Errorf("Unset keys should keep defaults, got %v", cfg.Extract.SimplifyTolerance)
	}
	if cfg.Cache.Backend != "none" || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Server.Port != ":9090" {
		t.Errorf("Unexpected port %q", cfg.Server.Port)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COCOMASK_PIPELINE_WORKERS", "3")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Workers != 3 {
		t.Errorf("Expected workers from environment, got %d", cfg.Pipeline.Workers)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("extract:\n  min_area: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected validation error")
	}

	if err := os.WriteFile(path, []byte("extract: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestValidate(t *testing.T) {
	breakers := []func(*Config){
		func(c *Config) { c.Extract.SimplifyTolerance = -1 },
		func(c *Config) { c.Pipeline.Workers = -1 },
		func(c *Config) { c.Output.MaskFormat = "bmp" },
		func(c *Config) { c.Output.OverlayFormat = "gif" },
		func(c *Config) { c.Output.OverlayQuality = 0 },
		func(c *Config) { c.Visualise.MaskAlpha = 1.5 },
		func(c *Config) { c.Cache.Backend = "memcached" },
		func(c *Config) { c.Server.MaxUploadSize = 0 },
	}
	for i, breakIt := range breakers {
		cfg := Default()
		breakIt(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("Case %d: expected validation error", i)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	p := GetConfigPath()
	if !strings.HasSuffix(p, filepath.Join("cocomask", "config.yaml")) {
		t.Errorf("Unexpected config path %s", p)
	}
}
