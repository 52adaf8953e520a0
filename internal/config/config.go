// Package config loads the optional YAML service configuration. Env
// vars cover connection settings; the YAML file carries behavioral
// knobs that differ per deployment.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wpops-labs/wpops-go/internal/platform/env"
)

type Config struct {
	Crawler CrawlerConfig `yaml:"crawler"`
	Planner PlannerConfig `yaml:"planner"`
	SEMrush SEMrushConfig `yaml:"semrush"`
	Exports ExportsConfig `yaml:"exports"`
}

type CrawlerConfig struct {
	PostLimit int `yaml:"post_limit"`
	PageLimit int `yaml:"page_limit"`
	// MetaKeys overrides SEO-plugin detection when set.
	MetaKeys []string `yaml:"meta_keys"`
}

type PlannerConfig struct {
	// StrictParse rejects reasoning responses with out-of-enum change
	// types or priorities instead of coercing them.
	StrictParse bool `yaml:"strict_parse"`
}

type SEMrushConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ExportsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() Config {
	return Config{
		Crawler: CrawlerConfig{PostLimit: 100, PageLimit: 100},
	}
}

// Load reads the file named by WPOPS_CONFIG_PATH. No path or a missing
// file yields the defaults.
func Load() (Config, error) {
	path := env.String("WPOPS_CONFIG_PATH", "")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Crawler.PostLimit < 0 || c.Crawler.PageLimit < 0 {
		return errors.New("crawler limits must be >= 0")
	}
	return nil
}
