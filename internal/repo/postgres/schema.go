package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS environments (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		ssh_host TEXT NOT NULL DEFAULT '',
		ssh_ip TEXT NOT NULL DEFAULT '',
		ssh_port INTEGER NOT NULL DEFAULT 22,
		ssh_username TEXT NOT NULL DEFAULT '',
		ssh_password_enc TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS crawl_snapshots (
		id UUID PRIMARY KEY,
		site_id TEXT NOT NULL,
		env_id TEXT NOT NULL,
		crawl_data JSONB,
		post_count INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crawl_snapshots_site ON crawl_snapshots (site_id, env_id, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS semrush_snapshots (
		id UUID PRIMARY KEY,
		site_id TEXT NOT NULL,
		env_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		keyword_data JSONB NOT NULL DEFAULT '[]',
		organic_traffic INTEGER,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS seo_plans (
		id UUID PRIMARY KEY,
		site_id TEXT NOT NULL,
		env_id TEXT NOT NULL,
		crawl_snapshot_id UUID NOT NULL REFERENCES crawl_snapshots(id),
		semrush_snapshot_id UUID REFERENCES semrush_snapshots(id),
		model_used TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		strategy_summary TEXT NOT NULL DEFAULT '',
		keyword_clusters JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seo_plans_site ON seo_plans (site_id, env_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS seo_plan_changes (
		id UUID PRIMARY KEY,
		plan_id UUID NOT NULL REFERENCES seo_plans(id) ON DELETE CASCADE,
		post_id BIGINT,
		change_type TEXT NOT NULL,
		field_name TEXT NOT NULL DEFAULT '',
		old_value TEXT,
		new_value TEXT NOT NULL DEFAULT '',
		reasoning TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'pending',
		execution_order INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seo_plan_changes_plan ON seo_plan_changes (plan_id, execution_order)`,
	`CREATE TABLE IF NOT EXISTS seo_content_backups (
		id UUID PRIMARY KEY,
		change_id UUID NOT NULL UNIQUE REFERENCES seo_plan_changes(id) ON DELETE CASCADE,
		plan_id UUID NOT NULL REFERENCES seo_plans(id) ON DELETE CASCADE,
		post_id BIGINT,
		field_name TEXT NOT NULL,
		original_value TEXT NOT NULL DEFAULT '',
		backed_up_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS seo_execution_log (
		id UUID PRIMARY KEY,
		plan_id UUID NOT NULL REFERENCES seo_plans(id) ON DELETE CASCADE,
		change_id UUID REFERENCES seo_plan_changes(id) ON DELETE SET NULL,
		command TEXT NOT NULL,
		stdout TEXT NOT NULL DEFAULT '',
		stderr TEXT NOT NULL DEFAULT '',
		exit_code INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_seo_execution_log_plan ON seo_execution_log (plan_id, executed_at)`,
}

// Migrate applies the schema. Statements are idempotent so the call is
// safe on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
