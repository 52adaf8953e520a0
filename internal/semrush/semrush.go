// Package semrush fetches organic keyword rankings from the SEMrush
// reporting API and snapshots them for plan generation.
package semrush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/platform/env"
	"github.com/wpops-labs/wpops-go/internal/repo"
)

const (
	defaultBaseURL = "https://api.semrush.com/"
	displayLimit   = 100
	maxBodyBytes   = 4 << 20
)

type Config struct {
	APIKey   string
	BaseURL  string
	Database string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:   env.String("WPOPS_SEMRUSH_API_KEY", ""),
		BaseURL:  env.String("WPOPS_SEMRUSH_BASE_URL", defaultBaseURL),
		Database: env.String("WPOPS_SEMRUSH_DATABASE", "us"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("WPOPS_SEMRUSH_API_KEY is required")
	}
	if c.BaseURL == "" {
		return errors.New("WPOPS_SEMRUSH_BASE_URL is required")
	}
	return nil
}

type Client struct {
	cfg   Config
	httpc *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, httpc: &http.Client{Timeout: 30 * time.Second}}, nil
}

// FetchKeywords pulls the domain_organic report. The response is
// semicolon-separated CSV with a header line; a body starting with
// ERROR is an API-level failure.
func (c *Client) FetchKeywords(ctx context.Context, domainName string) ([]domain.RankedKeyword, *int, error) {
	query := url.Values{}
	query.Set("type", "domain_organic")
	query.Set("key", c.cfg.APIKey)
	query.Set("display_limit", strconv.Itoa(displayLimit))
	query.Set("export_columns", "Ph,Po,Nq,Cp,Ur,Tr")
	query.Set("domain", domainName)
	query.Set("database", c.cfg.Database)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("semrush request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("semrush read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, nil, fmt.Errorf("semrush status %d: %s", resp.StatusCode, preview)
	}
	return parseReport(string(body))
}

func parseReport(body string) ([]domain.RankedKeyword, *int, error) {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) < 2 {
		if len(lines) > 0 && strings.HasPrefix(lines[0], "ERROR") {
			return nil, nil, fmt.Errorf("semrush: %s", lines[0])
		}
		return []domain.RankedKeyword{}, nil, nil
	}

	keywords := []domain.RankedKeyword{}
	var totalTraffic float64
	for _, line := range lines[1:] {
		parts := strings.Split(line, ";")
		if len(parts) < 6 {
			continue
		}
		trafficPercent, _ := strconv.ParseFloat(strings.TrimSpace(parts[5]), 64)
		totalTraffic += trafficPercent

		position, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
		volume, _ := strconv.Atoi(strings.TrimSpace(parts[2]))
		cpc, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		keywords = append(keywords, domain.RankedKeyword{
			Keyword:        parts[0],
			Position:       position,
			SearchVolume:   volume,
			CPC:            cpc,
			URL:            parts[4],
			TrafficPercent: trafficPercent,
		})
	}
	traffic := int(math.Round(totalTraffic))
	return keywords, &traffic, nil
}

// Service snapshots ranking fetches per site/environment.
type Service struct {
	client   *Client
	rankings repo.RankingRepository
	logger   *slog.Logger
}

func NewService(client *Client, rankings repo.RankingRepository, logger *slog.Logger) *Service {
	if client == nil || rankings == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, rankings: rankings, logger: logger}
}

func (s *Service) SnapshotRankings(ctx context.Context, siteID, envID, domainName string) (domain.RankingSnapshot, error) {
	keywords, traffic, err := s.client.FetchKeywords(ctx, domainName)
	if err != nil {
		return domain.RankingSnapshot{}, fmt.Errorf("fetch rankings for %s: %w", domainName, err)
	}
	snapshot, err := s.rankings.CreateRankingSnapshot(ctx, domain.RankingSnapshot{
		SiteID:         siteID,
		EnvID:          envID,
		Domain:         domainName,
		Keywords:       keywords,
		OrganicTraffic: traffic,
	})
	if err != nil {
		return domain.RankingSnapshot{}, fmt.Errorf("persist rankings: %w", err)
	}
	s.logger.Info("rankings snapshotted",
		"site_id", siteID,
		"domain", domainName,
		"keywords", len(keywords),
	)
	return snapshot, nil
}
