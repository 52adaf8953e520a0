package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

func EnsureBuckets(ctx context.Context, client *minio.Client, cfg Config) error {
	if err := ensureBucket(ctx, client, cfg.BucketCrawls, cfg.Region); err != nil {
		return fmt.Errorf("ensure crawls bucket: %w", err)
	}
	if err := ensureBucket(ctx, client, cfg.BucketExports, cfg.Region); err != nil {
		return fmt.Errorf("ensure exports bucket: %w", err)
	}
	return nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

// Store is the narrow put-object surface the exporters use.
type Store interface {
	Put(ctx context.Context, bucket, key string, payload []byte, contentType string) error
}

type MinIOStore struct {
	client *minio.Client
}

func NewMinIOStore(client *minio.Client) *MinIOStore {
	if client == nil {
		return nil
	}
	return &MinIOStore{client: client}
}

func (s *MinIOStore) Put(ctx context.Context, bucket, key string, payload []byte, contentType string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("object store not initialized")
	}
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
