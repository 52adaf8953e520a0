package domain

import (
	"errors"
	"strings"
	"time"
)

type PlanStatus string

const (
	PlanDraft      PlanStatus = "draft"
	PlanApproved   PlanStatus = "approved"
	PlanExecuting  PlanStatus = "executing"
	PlanExecuted   PlanStatus = "executed"
	PlanRolledBack PlanStatus = "rolled_back"
)

// SEOPlan is one generated optimization plan for a site/environment,
// derived from exactly one crawl snapshot.
type SEOPlan struct {
	ID                string
	SiteID            string
	EnvID             string
	CrawlSnapshotID   string
	SEMrushSnapshotID string
	ModelUsed         string
	PromptTokens      int
	CompletionTokens  int
	StrategySummary   string
	KeywordClusters   []KeywordCluster
	Status            PlanStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type KeywordCluster struct {
	Name            string   `json:"name"`
	PrimaryKeyword  string   `json:"primary_keyword"`
	RelatedKeywords []string `json:"related_keywords"`
	SearchVolume    int      `json:"search_volume"`
	Difficulty      string   `json:"difficulty"`
	TargetPosts     []int64  `json:"target_posts"`
}

func NormalizePlanStatus(value string) PlanStatus {
	switch PlanStatus(strings.TrimSpace(strings.ToLower(value))) {
	case PlanDraft:
		return PlanDraft
	case PlanApproved:
		return PlanApproved
	case PlanExecuting:
		return PlanExecuting
	case PlanExecuted:
		return PlanExecuted
	case PlanRolledBack:
		return PlanRolledBack
	}
	return ""
}

func (p SEOPlan) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("plan id is required")
	}
	if strings.TrimSpace(p.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(p.EnvID) == "" {
		return errors.New("env id is required")
	}
	if strings.TrimSpace(p.CrawlSnapshotID) == "" {
		return errors.New("crawl snapshot id is required")
	}
	if strings.TrimSpace(p.ModelUsed) == "" {
		return errors.New("model is required")
	}
	if NormalizePlanStatus(string(p.Status)) == "" {
		return errors.New("invalid plan status")
	}
	return nil
}
