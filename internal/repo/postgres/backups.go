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

type BackupStore struct {
	db DB
}

func NewBackupStore(db DB) *BackupStore {
	if db == nil {
		return nil
	}
	return &BackupStore{db: db}
}

// CreateBackup inserts the pre-mutation value for a change. The unique
// constraint on change_id keeps a backup from ever being overwritten.
func (s *BackupStore) CreateBackup(ctx context.Context, backup domain.ContentBackup) (domain.ContentBackup, error) {
	if s == nil || s.db == nil {
		return domain.ContentBackup{}, fmt.Errorf("backup store not initialized")
	}
	if backup.ID == "" {
		backup.ID = uuid.NewString()
	}
	backup.BackedUpAt = time.Now().UTC()
	if err := backup.Validate(); err != nil {
		return domain.ContentBackup{}, err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO seo_content_backups (id, change_id, plan_id, post_id, field_name, original_value, backed_up_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		backup.ID,
		backup.ChangeID,
		backup.PlanID,
		nullInt64(backup.PostID),
		backup.FieldName,
		backup.OriginalValue,
		backup.BackedUpAt,
	)
	if err != nil {
		return domain.ContentBackup{}, fmt.Errorf("insert backup: %w", err)
	}
	return backup, nil
}

func (s *BackupStore) GetByChange(ctx context.Context, changeID string) (domain.ContentBackup, error) {
	if strings.TrimSpace(changeID) == "" {
		return domain.ContentBackup{}, fmt.Errorf("change id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, change_id, plan_id, post_id, field_name, original_value, backed_up_at
		 FROM seo_content_backups WHERE change_id = $1`,
		changeID,
	)
	backup, err := scanBackup(row)
	if err != nil {
		return domain.ContentBackup{}, handleNotFound(err)
	}
	return backup, nil
}

// ListByPlan returns backups in creation order; rollback reverses the
// slice to restore in reverse-chronological order.
func (s *BackupStore) ListByPlan(ctx context.Context, planID string) ([]domain.ContentBackup, error) {
	if strings.TrimSpace(planID) == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, change_id, plan_id, post_id, field_name, original_value, backed_up_at
		 FROM seo_content_backups WHERE plan_id = $1 ORDER BY backed_up_at, id`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	out := []domain.ContentBackup{}
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, backup)
	}
	return out, rows.Err()
}

func scanBackup(scanner rowScanner) (domain.ContentBackup, error) {
	var (
		backup domain.ContentBackup
		postID sql.NullInt64
	)
	if err := scanner.Scan(
		&backup.ID,
		&backup.ChangeID,
		&backup.PlanID,
		&postID,
		&backup.FieldName,
		&backup.OriginalValue,
		&backup.BackedUpAt,
	); err != nil {
		return domain.ContentBackup{}, err
	}
	backup.PostID = int64Ptr(postID)
	return backup, nil
}
