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

type SnapshotStore struct {
	db DB
}

func NewSnapshotStore(db DB) *SnapshotStore {
	if db == nil {
		return nil
	}
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) CreateSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	if s == nil || s.db == nil {
		return domain.CrawlSnapshot{}, fmt.Errorf("snapshot store not initialized")
	}
	siteID = strings.TrimSpace(siteID)
	envID = strings.TrimSpace(envID)
	if siteID == "" {
		return domain.CrawlSnapshot{}, fmt.Errorf("site id is required")
	}
	if envID == "" {
		return domain.CrawlSnapshot{}, fmt.Errorf("env id is required")
	}

	snapshot := domain.CrawlSnapshot{
		ID:        uuid.NewString(),
		SiteID:    siteID,
		EnvID:     envID,
		Status:    domain.CrawlRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO crawl_snapshots (id, site_id, env_id, status, started_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		snapshot.ID,
		snapshot.SiteID,
		snapshot.EnvID,
		string(snapshot.Status),
		snapshot.StartedAt,
	)
	if err != nil {
		return domain.CrawlSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *SnapshotStore) CompleteSnapshot(ctx context.Context, id string, data domain.CrawlData, postCount, pageCount int) error {
	dataJSON, err := encodeJSON(data)
	if err != nil {
		return fmt.Errorf("encode crawl data: %w", err)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE crawl_snapshots
		 SET crawl_data = $1, post_count = $2, page_count = $3, status = 'completed', completed_at = NOW()
		 WHERE id = $4 AND status = 'running'`,
		dataJSON,
		postCount,
		pageCount,
		id,
	)
	if err != nil {
		return fmt.Errorf("complete snapshot: %w", err)
	}
	return requireOneRow(res, "snapshot not running")
}

func (s *SnapshotStore) FailSnapshot(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE crawl_snapshots
		 SET status = 'failed', error = $1, completed_at = NOW()
		 WHERE id = $2 AND status = 'running'`,
		message,
		id,
	)
	if err != nil {
		return fmt.Errorf("fail snapshot: %w", err)
	}
	return requireOneRow(res, "snapshot not running")
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, id string) (domain.CrawlSnapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, site_id, env_id, crawl_data, post_count, page_count, status, error, started_at, completed_at
		 FROM crawl_snapshots WHERE id = $1`,
		id,
	)
	return scanSnapshot(row)
}

func (s *SnapshotStore) LatestCompletedSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, site_id, env_id, crawl_data, post_count, page_count, status, error, started_at, completed_at
		 FROM crawl_snapshots
		 WHERE site_id = $1 AND env_id = $2 AND status = 'completed'
		 ORDER BY completed_at DESC LIMIT 1`,
		siteID,
		envID,
	)
	return scanSnapshot(row)
}

func (s *SnapshotStore) ListSnapshots(ctx context.Context, siteID, envID string, limit int) ([]domain.CrawlSnapshot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, site_id, env_id, crawl_data, post_count, page_count, status, error, started_at, completed_at
		 FROM crawl_snapshots
		 WHERE site_id = $1 AND env_id = $2
		 ORDER BY started_at DESC LIMIT $3`,
		siteID,
		envID,
		clampLimit(limit, 20, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []domain.CrawlSnapshot{}
	for rows.Next() {
		snapshot, err := scanSnapshotRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snapshot)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row *sql.Row) (domain.CrawlSnapshot, error) {
	snapshot, err := scanSnapshotFrom(row)
	if err != nil {
		return domain.CrawlSnapshot{}, handleNotFound(err)
	}
	return snapshot, nil
}

func scanSnapshotRows(rows *sql.Rows) (domain.CrawlSnapshot, error) {
	return scanSnapshotFrom(rows)
}

func scanSnapshotFrom(scanner rowScanner) (domain.CrawlSnapshot, error) {
	var (
		snapshot    domain.CrawlSnapshot
		dataRaw     []byte
		status      string
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	if err := scanner.Scan(
		&snapshot.ID,
		&snapshot.SiteID,
		&snapshot.EnvID,
		&dataRaw,
		&snapshot.PostCount,
		&snapshot.PageCount,
		&status,
		&errMsg,
		&snapshot.StartedAt,
		&completedAt,
	); err != nil {
		return domain.CrawlSnapshot{}, err
	}
	snapshot.Status = domain.CrawlStatus(status)
	snapshot.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		snapshot.CompletedAt = &t
	}
	if len(dataRaw) > 0 && string(dataRaw) != "null" {
		var data domain.CrawlData
		if err := json.Unmarshal(dataRaw, &data); err != nil {
			return domain.CrawlSnapshot{}, fmt.Errorf("decode crawl data: %w", err)
		}
		snapshot.CrawlData = &data
	}
	return snapshot, nil
}

func requireOneRow(res sql.Result, msg string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s", msg)
	}
	return nil
}
