// Package kinsta is a minimal client for the Kinsta hosting API,
// used to fetch per-environment SSH credentials.
package kinsta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/wpops-labs/wpops-go/internal/platform/env"
)

const defaultBaseURL = "https://api.kinsta.com/v2"

const (
	maxAttempts  = 3
	baseDelay    = 1 * time.Second
	maxDelay     = 8 * time.Second
	maxBodyBytes = 1 << 20
)

// ErrCredentialUnavailable is returned when every attempt against the
// API failed.
var ErrCredentialUnavailable = errors.New("kinsta: credential unavailable")

type Config struct {
	APIKey  string
	BaseURL string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:  env.String("WPOPS_KINSTA_API_KEY", ""),
		BaseURL: env.String("WPOPS_KINSTA_BASE_URL", defaultBaseURL),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("WPOPS_KINSTA_API_KEY is required")
	}
	if c.BaseURL == "" {
		return errors.New("WPOPS_KINSTA_BASE_URL is required")
	}
	return nil
}

type Client struct {
	baseURL string
	httpc   *http.Client
	sleep   func(context.Context, time.Duration) error
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
	return &Client{
		baseURL: cfg.BaseURL,
		httpc:   oauth2.NewClient(context.Background(), source),
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SSHCredential is the subset of the environment payload needed to open
// an SSH session.
type SSHCredential struct {
	Password string
	Host     string
	IP       string
	Port     int
	Username string
}

type environmentResponse struct {
	Environment struct {
		SSHConnection struct {
			Host     string `json:"ssh_host"`
			IP       string `json:"ssh_ip"`
			Port     int    `json:"ssh_port"`
			Username string `json:"ssh_username"`
			Password string `json:"ssh_password"`
		} `json:"ssh_connection"`
	} `json:"environment"`
}

// GetSSHCredential fetches SSH connection details for an environment.
// Rate-limit and server errors are retried with capped exponential
// backoff: 1s, 2s, 4s... up to 8s, at most three attempts.
func (c *Client) GetSSHCredential(ctx context.Context, envID string) (SSHCredential, error) {
	url := fmt.Sprintf("%s/sites/environments/%s", c.baseURL, envID)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, backoffDelay(attempt-1)); err != nil {
				return SSHCredential{}, err
			}
		}

		cred, retryable, err := c.fetch(ctx, url)
		if err == nil {
			return cred, nil
		}
		lastErr = err
		if !retryable {
			return SSHCredential{}, err
		}
	}
	return SSHCredential{}, fmt.Errorf("%w: %v", ErrCredentialUnavailable, lastErr)
}

func (c *Client) fetch(ctx context.Context, url string) (SSHCredential, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return SSHCredential{}, false, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return SSHCredential{}, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return SSHCredential{}, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return SSHCredential{}, true, fmt.Errorf("kinsta: status %d", resp.StatusCode)
	default:
		return SSHCredential{}, false, fmt.Errorf("kinsta: status %d", resp.StatusCode)
	}

	var payload environmentResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return SSHCredential{}, false, fmt.Errorf("kinsta: decode environment: %w", err)
	}
	conn := payload.Environment.SSHConnection
	if conn.Password == "" {
		return SSHCredential{}, false, errors.New("kinsta: environment has no ssh password")
	}
	port := conn.Port
	if port == 0 {
		port = 22
	}
	return SSHCredential{
		Password: conn.Password,
		Host:     conn.Host,
		IP:       conn.IP,
		Port:     port,
		Username: conn.Username,
	}, false, nil
}

func backoffDelay(retry int) time.Duration {
	d := baseDelay << (retry - 1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
