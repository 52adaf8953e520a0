package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wpops.yaml")
	raw := `
crawler:
  post_limit: 250
  meta_keys:
    - _custom_seo_title
planner:
  strict_parse: true
semrush:
  enabled: true
exports:
  enabled: true
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Crawler.PostLimit != 250 {
		t.Fatalf("post limit = %d", cfg.Crawler.PostLimit)
	}
	if cfg.Crawler.PageLimit != 100 {
		t.Fatalf("unset page limit should keep the default, got %d", cfg.Crawler.PageLimit)
	}
	if len(cfg.Crawler.MetaKeys) != 1 || cfg.Crawler.MetaKeys[0] != "_custom_seo_title" {
		t.Fatalf("meta keys = %v", cfg.Crawler.MetaKeys)
	}
	if !cfg.Planner.StrictParse || !cfg.SEMrush.Enabled || !cfg.Exports.Enabled {
		t.Fatalf("toggles not loaded: %+v", cfg)
	}
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Crawler.PostLimit != 100 || cfg.Planner.StrictParse {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("crawler: ["), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsNegativeLimits(t *testing.T) {
	cfg := Default()
	cfg.Crawler.PostLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative limit to be rejected")
	}
}
