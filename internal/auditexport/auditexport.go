// Package auditexport ships execution history and crawl archives to
// object storage for offline review.
package auditexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/platform/objectstore"
	"github.com/wpops-labs/wpops-go/internal/repo"
)

type Service struct {
	execLog   repo.ExecutionLogRepository
	snapshots repo.SnapshotRepository
	store     objectstore.Store
	crawls    string
	exports   string
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(execLog repo.ExecutionLogRepository, snapshots repo.SnapshotRepository, store objectstore.Store, cfg objectstore.Config, logger *slog.Logger) *Service {
	if execLog == nil || snapshots == nil || store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		execLog:   execLog,
		snapshots: snapshots,
		store:     store,
		crawls:    cfg.BucketCrawls,
		exports:   cfg.BucketExports,
		logger:    logger,
		now:       time.Now,
	}
}

type exportLine struct {
	PlanID     string    `json:"plan_id"`
	ChangeID   string    `json:"change_id,omitempty"`
	Command    string    `json:"command"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	ExecutedAt time.Time `json:"executed_at"`
}

// ExportPlanLog writes a plan's full execution log as NDJSON, one
// command per line, and returns the object key.
func (s *Service) ExportPlanLog(ctx context.Context, planID string) (string, error) {
	entries, err := s.execLog.ListByPlan(ctx, planID)
	if err != nil {
		return "", fmt.Errorf("load execution log: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, entry := range entries {
		line := exportLine{
			PlanID:     entry.PlanID,
			ChangeID:   entry.ChangeID,
			Command:    entry.Command,
			Stdout:     entry.Stdout,
			Stderr:     entry.Stderr,
			ExitCode:   entry.ExitCode,
			DurationMS: entry.DurationMS,
			ExecutedAt: entry.ExecutedAt,
		}
		if err := enc.Encode(line); err != nil {
			return "", fmt.Errorf("encode log line: %w", err)
		}
	}

	key := fmt.Sprintf("plans/%s/execution-log-%s.ndjson", planID, s.now().UTC().Format("20060102T150405Z"))
	if err := s.store.Put(ctx, s.exports, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return "", err
	}
	s.logger.Info("execution log exported", "plan_id", planID, "key", key, "entries", len(entries))
	return key, nil
}

// ArchiveSnapshot writes a completed crawl's full data as one JSON
// object and returns the object key.
func (s *Service) ArchiveSnapshot(ctx context.Context, snapshotID string) (string, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot.Status != domain.CrawlCompleted || snapshot.CrawlData == nil {
		return "", fmt.Errorf("snapshot %s is not a completed crawl", snapshotID)
	}

	payload, err := json.Marshal(snapshot.CrawlData)
	if err != nil {
		return "", fmt.Errorf("encode crawl data: %w", err)
	}
	key := fmt.Sprintf("sites/%s/%s/%s.json", snapshot.SiteID, snapshot.EnvID, snapshot.ID)
	if err := s.store.Put(ctx, s.crawls, key, payload, "application/json"); err != nil {
		return "", err
	}
	s.logger.Info("crawl archived", "snapshot_id", snapshotID, "key", key)
	return key, nil
}
