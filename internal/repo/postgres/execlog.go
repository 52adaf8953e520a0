package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type ExecutionLogStore struct {
	db DB
}

func NewExecutionLogStore(db DB) *ExecutionLogStore {
	if db == nil {
		return nil
	}
	return &ExecutionLogStore{db: db}
}

// Append inserts one audit record. There is no update or delete path on
// this table.
func (s *ExecutionLogStore) Append(ctx context.Context, entry domain.ExecutionLogEntry) (domain.ExecutionLogEntry, error) {
	if s == nil || s.db == nil {
		return domain.ExecutionLogEntry{}, fmt.Errorf("execution log store not initialized")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}
	if err := entry.Validate(); err != nil {
		return domain.ExecutionLogEntry{}, err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO seo_execution_log (id, plan_id, change_id, command, stdout, stderr, exit_code, duration_ms, executed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID,
		entry.PlanID,
		nullString(entry.ChangeID),
		entry.Command,
		entry.Stdout,
		entry.Stderr,
		entry.ExitCode,
		entry.DurationMS,
		entry.ExecutedAt,
	)
	if err != nil {
		return domain.ExecutionLogEntry{}, fmt.Errorf("append execution log: %w", err)
	}
	return entry, nil
}

func (s *ExecutionLogStore) ListByPlan(ctx context.Context, planID string) ([]domain.ExecutionLogEntry, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	return s.list(ctx, `WHERE plan_id = $1`, planID)
}

func (s *ExecutionLogStore) ListByChange(ctx context.Context, changeID string) ([]domain.ExecutionLogEntry, error) {
	if strings.TrimSpace(changeID) == "" {
		return nil, fmt.Errorf("change id is required")
	}
	return s.list(ctx, `WHERE change_id = $1`, changeID)
}

func (s *ExecutionLogStore) list(ctx context.Context, predicate string, arg any) ([]domain.ExecutionLogEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, plan_id, change_id, command, stdout, stderr, exit_code, duration_ms, executed_at
		 FROM seo_execution_log `+predicate+` ORDER BY executed_at`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list execution log: %w", err)
	}
	defer rows.Close()

	out := []domain.ExecutionLogEntry{}
	for rows.Next() {
		var (
			entry    domain.ExecutionLogEntry
			changeID sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.PlanID,
			&changeID,
			&entry.Command,
			&entry.Stdout,
			&entry.Stderr,
			&entry.ExitCode,
			&entry.DurationMS,
			&entry.ExecutedAt,
		); err != nil {
			return nil, err
		}
		entry.ChangeID = changeID.String
		out = append(out, entry)
	}
	return out, rows.Err()
}
