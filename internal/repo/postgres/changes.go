package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type ChangeStore struct {
	db DB
}

func NewChangeStore(db DB) *ChangeStore {
	if db == nil {
		return nil
	}
	return &ChangeStore{db: db}
}

func (s *ChangeStore) GetChange(ctx context.Context, id string) (domain.PlanChange, error) {
	if s == nil || s.db == nil {
		return domain.PlanChange{}, fmt.Errorf("change store not initialized")
	}
	if strings.TrimSpace(id) == "" {
		return domain.PlanChange{}, fmt.Errorf("change id is required")
	}
	row := s.db.QueryRowContext(ctx, selectChangeQuery+` WHERE id = $1`, id)
	change, err := scanChange(row)
	if err != nil {
		return domain.PlanChange{}, handleNotFound(err)
	}
	return change, nil
}

// ListByPlan returns the plan's changes in ascending execution order.
// Execution and rollback both rely on this ordering.
func (s *ChangeStore) ListByPlan(ctx context.Context, planID string) ([]domain.PlanChange, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		selectChangeQuery+` WHERE plan_id = $1 ORDER BY execution_order, created_at`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	out := []domain.PlanChange{}
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, change)
	}
	return out, rows.Err()
}

func (s *ChangeStore) UpdateStatus(ctx context.Context, id string, status domain.ChangeStatus) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE seo_plan_changes SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status),
		id,
	)
	if err != nil {
		return fmt.Errorf("update change status: %w", err)
	}
	return requireOneRow(res, "change not found")
}

// BulkUpdateStatus moves every change of the plan currently in `from` to
// `to` and reports how many rows were affected. The predicate on the
// current status is what makes repeated bulk approvals idempotent.
func (s *ChangeStore) BulkUpdateStatus(ctx context.Context, planID string, from, to domain.ChangeStatus) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE seo_plan_changes SET status = $1, updated_at = NOW() WHERE plan_id = $2 AND status = $3`,
		string(to),
		planID,
		string(from),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk update change status: %w", err)
	}
	return res.RowsAffected()
}

const selectChangeQuery = `SELECT id, plan_id, post_id, change_type, field_name, old_value,
       new_value, reasoning, priority, status, execution_order, created_at, updated_at
 FROM seo_plan_changes`

func scanChange(scanner rowScanner) (domain.PlanChange, error) {
	var (
		change     domain.PlanChange
		postID     sql.NullInt64
		oldValue   sql.NullString
		changeType string
		priority   string
		status     string
	)
	if err := scanner.Scan(
		&change.ID,
		&change.PlanID,
		&postID,
		&changeType,
		&change.FieldName,
		&oldValue,
		&change.NewValue,
		&change.Reasoning,
		&priority,
		&status,
		&change.ExecutionOrder,
		&change.CreatedAt,
		&change.UpdatedAt,
	); err != nil {
		return domain.PlanChange{}, err
	}
	change.PostID = int64Ptr(postID)
	change.OldValue = oldValue.String
	change.ChangeType = domain.ChangeType(changeType)
	change.Priority = domain.ChangePriority(priority)
	change.Status = domain.ChangeStatus(status)
	return change, nil
}
