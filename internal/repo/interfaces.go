package repo

import (
	"context"
	"errors"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

var ErrNotFound = errors.New("not found")

// SnapshotRepository manages crawl snapshots. Snapshots are mutable only
// while running; Complete and Fail are terminal.
type SnapshotRepository interface {
	CreateSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error)
	CompleteSnapshot(ctx context.Context, id string, data domain.CrawlData, postCount, pageCount int) error
	FailSnapshot(ctx context.Context, id, message string) error
	GetSnapshot(ctx context.Context, id string) (domain.CrawlSnapshot, error)
	LatestCompletedSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error)
	ListSnapshots(ctx context.Context, siteID, envID string, limit int) ([]domain.CrawlSnapshot, error)
}

// PlanRepository manages plans. A plan and its ordered changes are
// persisted atomically in one transaction.
type PlanRepository interface {
	CreatePlanWithChanges(ctx context.Context, plan domain.SEOPlan, changes []domain.PlanChange) (domain.SEOPlan, []domain.PlanChange, error)
	GetPlan(ctx context.Context, id string) (domain.SEOPlan, error)
	UpdatePlanStatus(ctx context.Context, id string, status domain.PlanStatus) error
	ListPlans(ctx context.Context, siteID, envID string, limit int) ([]domain.SEOPlan, error)
}

// ChangeRepository manages individual plan changes. ListByPlan returns
// changes in ascending execution order.
type ChangeRepository interface {
	GetChange(ctx context.Context, id string) (domain.PlanChange, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.PlanChange, error)
	UpdateStatus(ctx context.Context, id string, status domain.ChangeStatus) error
	BulkUpdateStatus(ctx context.Context, planID string, from, to domain.ChangeStatus) (int64, error)
}

// BackupRepository manages content backups, one per change, never
// overwritten.
type BackupRepository interface {
	CreateBackup(ctx context.Context, backup domain.ContentBackup) (domain.ContentBackup, error)
	GetByChange(ctx context.Context, changeID string) (domain.ContentBackup, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.ContentBackup, error)
}

// ExecutionLogRepository is append-only.
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry domain.ExecutionLogEntry) (domain.ExecutionLogEntry, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.ExecutionLogEntry, error)
	ListByChange(ctx context.Context, changeID string) ([]domain.ExecutionLogEntry, error)
}

// RankingRepository manages keyword-ranking snapshots.
type RankingRepository interface {
	CreateRankingSnapshot(ctx context.Context, snapshot domain.RankingSnapshot) (domain.RankingSnapshot, error)
	LatestRankingSnapshot(ctx context.Context, siteID, envID string) (domain.RankingSnapshot, error)
}

// EnvironmentRepository manages SSH connection records per environment.
type EnvironmentRepository interface {
	GetEnvironment(ctx context.Context, id string) (domain.Environment, error)
	UpsertEnvironment(ctx context.Context, environment domain.Environment) error
	SetEnvironmentPassword(ctx context.Context, id, encrypted string) error
}

// TimelineRepository is the summarized site-history read path.
type TimelineRepository interface {
	SiteTimeline(ctx context.Context, siteID, envID string, limit int) ([]domain.TimelineEvent, error)
}
