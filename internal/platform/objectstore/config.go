package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/platform/env"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	BucketCrawls  string
	BucketExports string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("WPOPS_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:      env.String("WPOPS_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:     env.String("WPOPS_MINIO_ACCESS_KEY", "wpops"),
		SecretKey:     env.String("WPOPS_MINIO_SECRET_KEY", "wpopsminio"),
		Region:        env.String("WPOPS_MINIO_REGION", "us-east-1"),
		UseSSL:        useSSL,
		BucketCrawls:  env.String("WPOPS_MINIO_BUCKET_CRAWLS", "crawl-archives"),
		BucketExports: env.String("WPOPS_MINIO_BUCKET_EXPORTS", "execution-exports"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketCrawls) == "" {
		return errors.New("crawls bucket is required")
	}
	if strings.TrimSpace(c.BucketExports) == "" {
		return errors.New("exports bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
