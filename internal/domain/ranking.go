package domain

import (
	"errors"
	"strings"
	"time"
)

// RankingSnapshot is one fetch of keyword-ranking data for a domain from
// the SEMrush-style provider. Adjunct to plan generation: the most
// recent snapshot for a site feeds the prompt.
type RankingSnapshot struct {
	ID             string
	SiteID         string
	EnvID          string
	Domain         string
	Keywords       []RankedKeyword
	OrganicTraffic *int
	FetchedAt      time.Time
}

type RankedKeyword struct {
	Keyword        string  `json:"keyword"`
	Position       int     `json:"position"`
	SearchVolume   int     `json:"search_volume"`
	CPC            float64 `json:"cpc"`
	URL            string  `json:"url"`
	TrafficPercent float64 `json:"traffic_percent"`
}

func (r RankingSnapshot) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("snapshot id is required")
	}
	if strings.TrimSpace(r.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(r.EnvID) == "" {
		return errors.New("env id is required")
	}
	if strings.TrimSpace(r.Domain) == "" {
		return errors.New("domain is required")
	}
	return nil
}
