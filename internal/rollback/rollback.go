// Package rollback restores content from backups taken during plan
// execution.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/repo"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
)

// ContentRestorer is the slice of WP-CLI writes a restore needs.
type ContentRestorer interface {
	UpdatePostTitle(ctx context.Context, postID int64, title string) sshexec.Result
	UpdatePostSlug(ctx context.Context, postID int64, slug string) sshexec.Result
	UpdatePostExcerpt(ctx context.Context, postID int64, excerpt string) sshexec.Result
	UpdatePostMeta(ctx context.Context, postID int64, metaKey, metaValue string) sshexec.Result
	UpdatePostContent(ctx context.Context, postID int64, content string) sshexec.Result
}

type RestorerFactory func(conn sshexec.ConnectionInfo) ContentRestorer

type ConnectionResolver interface {
	Resolve(ctx context.Context, envID string) (sshexec.ConnectionInfo, error)
}

type ChangeLog struct {
	ChangeID string `json:"change_id"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

type Result struct {
	RolledBack int         `json:"rolled_back"`
	Failed     int         `json:"failed"`
	Logs       []ChangeLog `json:"logs"`
}

type Service struct {
	plans     repo.PlanRepository
	changes   repo.ChangeRepository
	backups   repo.BackupRepository
	execLog   repo.ExecutionLogRepository
	resolver  ConnectionResolver
	restorers RestorerFactory
	logger    *slog.Logger
}

func NewService(
	plans repo.PlanRepository,
	changes repo.ChangeRepository,
	backups repo.BackupRepository,
	execLog repo.ExecutionLogRepository,
	resolver ConnectionResolver,
	restorers RestorerFactory,
	logger *slog.Logger,
) *Service {
	if plans == nil || changes == nil || backups == nil || execLog == nil || resolver == nil || restorers == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:     plans,
		changes:   changes,
		backups:   backups,
		execLog:   execLog,
		resolver:  resolver,
		restorers: restorers,
		logger:    logger,
	}
}

// RollbackPlan restores every backup of a plan in reverse of the order
// the backups were taken, so later changes unwind before earlier ones.
// A failing restore is recorded and the rest still run.
func (s *Service) RollbackPlan(ctx context.Context, planID string) (Result, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return Result{}, fmt.Errorf("load plan %s: %w", planID, err)
	}
	conn, err := s.resolver.Resolve(ctx, plan.EnvID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve connection: %w", err)
	}
	restorer := s.restorers(conn)

	backups, err := s.backups.ListByPlan(ctx, planID)
	if err != nil {
		return Result{}, fmt.Errorf("load backups: %w", err)
	}

	result := Result{Logs: []ChangeLog{}}
	for i := len(backups) - 1; i >= 0; i-- {
		s.restoreOne(ctx, restorer, planID, backups[i], &result)
	}

	if err := s.plans.UpdatePlanStatus(ctx, planID, domain.PlanRolledBack); err != nil {
		return result, fmt.Errorf("mark plan rolled back: %w", err)
	}
	s.logger.Info("plan rolled back",
		"plan_id", planID,
		"rolled_back", result.RolledBack,
		"failed", result.Failed,
	)
	return result, nil
}

// RollbackChange restores a single change from its backup. The plan's
// status is left alone.
func (s *Service) RollbackChange(ctx context.Context, changeID string) (Result, error) {
	backup, err := s.backups.GetByChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{}, fmt.Errorf("no backup found for change %s", changeID)
		}
		return Result{}, fmt.Errorf("load backup: %w", err)
	}
	plan, err := s.plans.GetPlan(ctx, backup.PlanID)
	if err != nil {
		return Result{}, fmt.Errorf("load plan %s: %w", backup.PlanID, err)
	}
	conn, err := s.resolver.Resolve(ctx, plan.EnvID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve connection: %w", err)
	}

	result := Result{Logs: []ChangeLog{}}
	s.restoreOne(ctx, s.restorers(conn), backup.PlanID, backup, &result)
	return result, nil
}

func (s *Service) restoreOne(ctx context.Context, restorer ContentRestorer, planID string, backup domain.ContentBackup, result *Result) {
	if err := restore(ctx, restorer, backup); err != nil {
		result.Failed++
		result.Logs = append(result.Logs, ChangeLog{ChangeID: backup.ChangeID, Success: false, Message: err.Error()})
		return
	}

	if err := s.changes.UpdateStatus(ctx, backup.ChangeID, domain.ChangeRolledBack); err != nil {
		s.logger.Error("mark change rolled back", "change_id", backup.ChangeID, "error", err)
	}
	if _, err := s.execLog.Append(ctx, domain.ExecutionLogEntry{
		PlanID:   planID,
		ChangeID: backup.ChangeID,
		Command:  describeRestore(backup),
		Stdout:   "Restored from backup",
	}); err != nil {
		s.logger.Error("append execution log", "change_id", backup.ChangeID, "error", err)
	}

	result.RolledBack++
	result.Logs = append(result.Logs, ChangeLog{ChangeID: backup.ChangeID, Success: true, Message: "Rolled back"})
}

// restore writes the backed-up value back to the field it came from.
// The field name decides the write path; anything that is not a core
// post field is treated as post meta.
func restore(ctx context.Context, restorer ContentRestorer, backup domain.ContentBackup) error {
	if backup.PostID == nil {
		return nil
	}
	postID := *backup.PostID

	var result sshexec.Result
	switch backup.FieldName {
	case "post_title":
		result = restorer.UpdatePostTitle(ctx, postID, backup.OriginalValue)
	case "post_name":
		result = restorer.UpdatePostSlug(ctx, postID, backup.OriginalValue)
	case "post_excerpt":
		result = restorer.UpdatePostExcerpt(ctx, postID, backup.OriginalValue)
	case "post_content":
		result = restorer.UpdatePostContent(ctx, postID, backup.OriginalValue)
	default:
		result = restorer.UpdatePostMeta(ctx, postID, backup.FieldName, backup.OriginalValue)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("restore %s on post %d failed (exit %d): %s",
			backup.FieldName, postID, result.ExitCode, result.Stderr)
	}
	return nil
}

func describeRestore(backup domain.ContentBackup) string {
	target := "N/A"
	if backup.PostID != nil {
		target = fmt.Sprintf("%d", *backup.PostID)
	}
	return fmt.Sprintf("rollback %s on post %s", backup.FieldName, target)
}
