// Package planner turns a crawl snapshot into a persisted optimization
// plan via a reasoning engine.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/repo"
)

type Service struct {
	snapshots repo.SnapshotRepository
	rankings  repo.RankingRepository
	plans     repo.PlanRepository
	engine    Engine
	logger    *slog.Logger

	// strictParse rejects out-of-enum responses instead of coercing.
	strictParse bool
}

func NewService(snapshots repo.SnapshotRepository, rankings repo.RankingRepository, plans repo.PlanRepository, engine Engine, logger *slog.Logger, strictParse bool) *Service {
	if snapshots == nil || plans == nil || engine == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		snapshots:   snapshots,
		rankings:    rankings,
		plans:       plans,
		engine:      engine,
		logger:      logger,
		strictParse: strictParse,
	}
}

// GenerateRequest selects the inputs for a plan. SnapshotID is
// optional; when empty the latest completed crawl is used.
type GenerateRequest struct {
	SiteID     string
	EnvID      string
	SnapshotID string
}

// GeneratePlan builds the prompt from the crawl (plus the latest
// keyword rankings when available), runs the engine, parses the
// response, and persists the plan with its changes in creation order.
func (s *Service) GeneratePlan(ctx context.Context, req GenerateRequest) (domain.SEOPlan, []domain.PlanChange, error) {
	snapshot, err := s.loadSnapshot(ctx, req)
	if err != nil {
		return domain.SEOPlan{}, nil, err
	}
	if snapshot.Status != domain.CrawlCompleted || snapshot.CrawlData == nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("snapshot %s is not a completed crawl", snapshot.ID)
	}

	var (
		keywords          []domain.RankedKeyword
		semrushSnapshotID string
	)
	if s.rankings != nil {
		ranking, err := s.rankings.LatestRankingSnapshot(ctx, req.SiteID, req.EnvID)
		switch {
		case err == nil:
			keywords = ranking.Keywords
			semrushSnapshotID = ranking.ID
		case errors.Is(err, repo.ErrNotFound):
			// plan without ranking data
		default:
			return domain.SEOPlan{}, nil, fmt.Errorf("load rankings: %w", err)
		}
	}

	prompt := buildPrompt(*snapshot.CrawlData, keywords)

	start := time.Now()
	completion, err := s.engine.Complete(ctx, prompt)
	if err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("generate plan: %w", err)
	}
	parsed, err := parseResponse(completion.Text, s.strictParse)
	if err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("generate plan: %w", err)
	}

	plan := domain.SEOPlan{
		SiteID:            req.SiteID,
		EnvID:             req.EnvID,
		CrawlSnapshotID:   snapshot.ID,
		SEMrushSnapshotID: semrushSnapshotID,
		ModelUsed:         completion.Model,
		PromptTokens:      completion.PromptTokens,
		CompletionTokens:  completion.CompletionTokens,
		StrategySummary:   parsed.StrategySummary,
		KeywordClusters:   parsed.KeywordClusters,
		Status:            domain.PlanDraft,
	}
	changes := make([]domain.PlanChange, len(parsed.Changes))
	for i, c := range parsed.Changes {
		changes[i] = domain.PlanChange{
			PostID:         c.PostID.value,
			ChangeType:     domain.ChangeType(c.ChangeType),
			FieldName:      c.FieldName,
			OldValue:       c.OldValue,
			NewValue:       c.NewValue,
			Reasoning:      c.Reasoning,
			Priority:       domain.ChangePriority(c.Priority),
			Status:         domain.ChangePending,
			ExecutionOrder: i,
		}
	}

	plan, changes, err = s.plans.CreatePlanWithChanges(ctx, plan, changes)
	if err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("persist plan: %w", err)
	}
	s.logger.Info("plan generated",
		"plan_id", plan.ID,
		"site_id", plan.SiteID,
		"changes", len(changes),
		"model", plan.ModelUsed,
		"duration", time.Since(start),
	)
	return plan, changes, nil
}

func (s *Service) loadSnapshot(ctx context.Context, req GenerateRequest) (domain.CrawlSnapshot, error) {
	if req.SnapshotID != "" {
		snapshot, err := s.snapshots.GetSnapshot(ctx, req.SnapshotID)
		if err != nil {
			return domain.CrawlSnapshot{}, fmt.Errorf("load snapshot %s: %w", req.SnapshotID, err)
		}
		return snapshot, nil
	}
	snapshot, err := s.snapshots.LatestCompletedSnapshot(ctx, req.SiteID, req.EnvID)
	if err != nil {
		return domain.CrawlSnapshot{}, fmt.Errorf("no completed crawl for %s/%s: %w", req.SiteID, req.EnvID, err)
	}
	return snapshot, nil
}
