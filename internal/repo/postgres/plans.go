package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type PlanStore struct {
	db  *sql.DB
	dbi DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	if db == nil {
		return nil
	}
	return &PlanStore{db: db, dbi: db}
}

// CreatePlanWithChanges persists a plan and its ordered changes in one
// transaction. Parse failures never reach this point; if any insert
// fails, nothing is persisted.
func (s *PlanStore) CreatePlanWithChanges(ctx context.Context, plan domain.SEOPlan, changes []domain.PlanChange) (domain.SEOPlan, []domain.PlanChange, error) {
	if s == nil || s.db == nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("plan store not initialized")
	}
	now := time.Now().UTC()
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Status == "" {
		plan.Status = domain.PlanDraft
	}
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if err := plan.Validate(); err != nil {
		return domain.SEOPlan{}, nil, err
	}

	clustersJSON, err := encodeJSON(plan.KeywordClusters)
	if err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("encode clusters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO seo_plans (
			id, site_id, env_id, crawl_snapshot_id, semrush_snapshot_id,
			model_used, prompt_tokens, completion_tokens, strategy_summary,
			keyword_clusters, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		plan.ID,
		plan.SiteID,
		plan.EnvID,
		plan.CrawlSnapshotID,
		nullString(plan.SEMrushSnapshotID),
		plan.ModelUsed,
		plan.PromptTokens,
		plan.CompletionTokens,
		plan.StrategySummary,
		clustersJSON,
		string(plan.Status),
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("insert plan: %w", err)
	}

	inserted := make([]domain.PlanChange, 0, len(changes))
	for i := range changes {
		change := changes[i]
		change.PlanID = plan.ID
		if change.ID == "" {
			change.ID = uuid.NewString()
		}
		if change.Status == "" {
			change.Status = domain.ChangePending
		}
		change.CreatedAt = now
		change.UpdatedAt = now
		if err := change.Validate(); err != nil {
			return domain.SEOPlan{}, nil, fmt.Errorf("change %d: %w", i, err)
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO seo_plan_changes (
				id, plan_id, post_id, change_type, field_name, old_value,
				new_value, reasoning, priority, status, execution_order,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			change.ID,
			change.PlanID,
			nullInt64(change.PostID),
			string(change.ChangeType),
			change.FieldName,
			nullString(change.OldValue),
			change.NewValue,
			change.Reasoning,
			string(change.Priority),
			string(change.Status),
			change.ExecutionOrder,
			change.CreatedAt,
			change.UpdatedAt,
		)
		if err != nil {
			return domain.SEOPlan{}, nil, fmt.Errorf("insert change %d: %w", i, err)
		}
		inserted = append(inserted, change)
	}

	if err := tx.Commit(); err != nil {
		return domain.SEOPlan{}, nil, fmt.Errorf("commit: %w", err)
	}
	return plan, inserted, nil
}

func (s *PlanStore) GetPlan(ctx context.Context, id string) (domain.SEOPlan, error) {
	if s == nil || s.dbi == nil {
		return domain.SEOPlan{}, fmt.Errorf("plan store not initialized")
	}
	if strings.TrimSpace(id) == "" {
		return domain.SEOPlan{}, fmt.Errorf("plan id is required")
	}
	row := s.dbi.QueryRowContext(
		ctx,
		`SELECT id, site_id, env_id, crawl_snapshot_id, semrush_snapshot_id,
		        model_used, prompt_tokens, completion_tokens, strategy_summary,
		        keyword_clusters, status, created_at, updated_at
		 FROM seo_plans WHERE id = $1`,
		id,
	)
	plan, err := scanPlan(row)
	if err != nil {
		return domain.SEOPlan{}, handleNotFound(err)
	}
	return plan, nil
}

func (s *PlanStore) UpdatePlanStatus(ctx context.Context, id string, status domain.PlanStatus) error {
	if domain.NormalizePlanStatus(string(status)) == "" {
		return fmt.Errorf("invalid plan status %q", status)
	}
	res, err := s.dbi.ExecContext(
		ctx,
		`UPDATE seo_plans SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status),
		id,
	)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	return requireOneRow(res, "plan not found")
}

func (s *PlanStore) ListPlans(ctx context.Context, siteID, envID string, limit int) ([]domain.SEOPlan, error) {
	rows, err := s.dbi.QueryContext(
		ctx,
		`SELECT id, site_id, env_id, crawl_snapshot_id, semrush_snapshot_id,
		        model_used, prompt_tokens, completion_tokens, strategy_summary,
		        keyword_clusters, status, created_at, updated_at
		 FROM seo_plans
		 WHERE site_id = $1 AND env_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		siteID,
		envID,
		clampLimit(limit, 50, 200),
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	out := []domain.SEOPlan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	return out, rows.Err()
}

func scanPlan(scanner rowScanner) (domain.SEOPlan, error) {
	var (
		plan        domain.SEOPlan
		semrushID   sql.NullString
		clustersRaw []byte
		status      string
	)
	if err := scanner.Scan(
		&plan.ID,
		&plan.SiteID,
		&plan.EnvID,
		&plan.CrawlSnapshotID,
		&semrushID,
		&plan.ModelUsed,
		&plan.PromptTokens,
		&plan.CompletionTokens,
		&plan.StrategySummary,
		&clustersRaw,
		&status,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	); err != nil {
		return domain.SEOPlan{}, err
	}
	plan.SEMrushSnapshotID = semrushID.String
	plan.Status = domain.PlanStatus(status)
	if len(clustersRaw) > 0 && string(clustersRaw) != "null" {
		if err := json.Unmarshal(clustersRaw, &plan.KeywordClusters); err != nil {
			return domain.SEOPlan{}, fmt.Errorf("decode clusters: %w", err)
		}
	}
	return plan, nil
}
