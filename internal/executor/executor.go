// Package executor applies approved plan changes to the live site,
// backing up every value it is about to overwrite.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/repo"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
)

// ContentGateway is the slice of WP-CLI operations execution needs.
type ContentGateway interface {
	GetPost(ctx context.Context, postID int64) (*domain.WPPost, error)
	GetPostMeta(ctx context.Context, postID int64, metaKeys []string) (map[string]string, error)
	UpdatePostTitle(ctx context.Context, postID int64, title string) sshexec.Result
	UpdatePostSlug(ctx context.Context, postID int64, slug string) sshexec.Result
	UpdatePostExcerpt(ctx context.Context, postID int64, excerpt string) sshexec.Result
	UpdatePostMeta(ctx context.Context, postID int64, metaKey, metaValue string) sshexec.Result
	UpdatePostContent(ctx context.Context, postID int64, content string) sshexec.Result
}

// GatewayFactory binds a gateway to a resolved SSH connection.
type GatewayFactory func(conn sshexec.ConnectionInfo) ContentGateway

// ConnectionResolver yields SSH connection details for an environment.
type ConnectionResolver interface {
	Resolve(ctx context.Context, envID string) (sshexec.ConnectionInfo, error)
}

type Options struct {
	DryRun bool
}

// ChangeLog is one per-change outcome line in an execution result.
type ChangeLog struct {
	ChangeID string `json:"change_id"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

type Result struct {
	Executed int         `json:"executed"`
	Failed   int         `json:"failed"`
	Skipped  int         `json:"skipped"`
	Logs     []ChangeLog `json:"logs"`
}

type Service struct {
	plans    repo.PlanRepository
	changes  repo.ChangeRepository
	backups  repo.BackupRepository
	execLog  repo.ExecutionLogRepository
	resolver ConnectionResolver
	gateways GatewayFactory
	logger   *slog.Logger
}

func NewService(
	plans repo.PlanRepository,
	changes repo.ChangeRepository,
	backups repo.BackupRepository,
	execLog repo.ExecutionLogRepository,
	resolver ConnectionResolver,
	gateways GatewayFactory,
	logger *slog.Logger,
) *Service {
	if plans == nil || changes == nil || backups == nil || execLog == nil || resolver == nil || gateways == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:    plans,
		changes:  changes,
		backups:  backups,
		execLog:  execLog,
		resolver: resolver,
		gateways: gateways,
		logger:   logger,
	}
}

// ExecutePlan applies a plan's approved changes one at a time in
// execution order. A failing change is recorded and execution moves on
// to the next; one bad change never aborts the run. With no approved
// changes the run is a no-op and returns a zero result.
func (s *Service) ExecutePlan(ctx context.Context, planID string, opts Options) (Result, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return Result{}, fmt.Errorf("load plan %s: %w", planID, err)
	}

	allChanges, err := s.changes.ListByPlan(ctx, planID)
	if err != nil {
		return Result{}, fmt.Errorf("load changes: %w", err)
	}
	var approved []domain.PlanChange
	for _, change := range allChanges {
		if change.Status == domain.ChangeApproved {
			approved = append(approved, change)
		}
	}
	if len(approved) == 0 {
		return Result{Logs: []ChangeLog{}}, nil
	}

	conn, err := s.resolver.Resolve(ctx, plan.EnvID)
	if err != nil {
		return Result{}, fmt.Errorf("resolve connection: %w", err)
	}
	gateway := s.gateways(conn)

	result := Result{Logs: []ChangeLog{}}
	for _, change := range allChanges {
		if change.Status == domain.ChangeSkipped || change.Status == domain.ChangePending {
			result.Skipped++
		}
	}

	if opts.DryRun {
		for _, change := range approved {
			result.Executed++
			result.Logs = append(result.Logs, ChangeLog{
				ChangeID: change.ID,
				Success:  true,
				Message:  "Dry run - no changes made",
			})
		}
		s.logger.Info("plan dry run", "plan_id", planID, "changes", result.Executed)
		return result, nil
	}

	if err := s.plans.UpdatePlanStatus(ctx, planID, domain.PlanExecuting); err != nil {
		return Result{}, fmt.Errorf("mark plan executing: %w", err)
	}

	for _, change := range approved {
		s.applyChange(ctx, gateway, plan, change, &result)
	}

	if err := s.plans.UpdatePlanStatus(ctx, planID, domain.PlanExecuted); err != nil {
		return result, fmt.Errorf("mark plan executed: %w", err)
	}
	s.logger.Info("plan executed",
		"plan_id", planID,
		"executed", result.Executed,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *Service) applyChange(ctx context.Context, gateway ContentGateway, plan domain.SEOPlan, change domain.PlanChange, result *Result) {
	fail := func(message string) {
		if err := s.changes.UpdateStatus(ctx, change.ID, domain.ChangeFailed); err != nil {
			s.logger.Error("mark change failed", "change_id", change.ID, "error", err)
		}
		result.Failed++
		result.Logs = append(result.Logs, ChangeLog{ChangeID: change.ID, Success: false, Message: message})
	}

	if err := s.backupCurrentValue(ctx, gateway, plan.ID, change); err != nil {
		fail("backup: " + err.Error())
		return
	}

	execResult, err := s.runChange(ctx, gateway, change)
	if err != nil {
		fail(err.Error())
		return
	}

	if _, err := s.execLog.Append(ctx, domain.ExecutionLogEntry{
		PlanID:     plan.ID,
		ChangeID:   change.ID,
		Command:    describeChange(change),
		Stdout:     execResult.Stdout,
		Stderr:     execResult.Stderr,
		ExitCode:   execResult.ExitCode,
		DurationMS: execResult.Duration.Milliseconds(),
	}); err != nil {
		s.logger.Error("append execution log", "change_id", change.ID, "error", err)
	}

	if execResult.ExitCode != 0 {
		stderr := execResult.Stderr
		if len(stderr) > 200 {
			stderr = stderr[:200]
		}
		fail(fmt.Sprintf("Exit code %d: %s", execResult.ExitCode, stderr))
		return
	}

	if err := s.changes.UpdateStatus(ctx, change.ID, domain.ChangeExecuted); err != nil {
		s.logger.Error("mark change executed", "change_id", change.ID, "error", err)
	}
	result.Executed++
	result.Logs = append(result.Logs, ChangeLog{ChangeID: change.ID, Success: true, Message: "Executed successfully"})
}

// backupCurrentValue snapshots the live value a change is about to
// overwrite. Changes with no content id (site-wide redirects) have
// nothing to back up.
func (s *Service) backupCurrentValue(ctx context.Context, gateway ContentGateway, planID string, change domain.PlanChange) error {
	if change.PostID == nil {
		return nil
	}
	postID := *change.PostID

	var current string
	switch change.ChangeType {
	case domain.ChangeTitleRewrite:
		post, err := gateway.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if post != nil {
			current = post.Title
		}
	case domain.ChangeSlug:
		post, err := gateway.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if post != nil {
			current = post.Name
		}
	case domain.ChangeExcerptRewrite:
		post, err := gateway.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if post != nil {
			current = post.Excerpt
		}
	case domain.ChangeMetaDescription, domain.ChangeInternalLink, domain.ChangeSchemaMarkup, domain.ChangeCategory, domain.ChangeTag:
		meta, err := gateway.GetPostMeta(ctx, postID, []string{change.FieldName})
		if err != nil {
			return err
		}
		current = meta[change.FieldName]
	default:
		current = change.OldValue
	}

	_, err := s.backups.CreateBackup(ctx, domain.ContentBackup{
		ChangeID:      change.ID,
		PlanID:        planID,
		PostID:        change.PostID,
		FieldName:     change.FieldName,
		OriginalValue: current,
	})
	return err
}

func (s *Service) runChange(ctx context.Context, gateway ContentGateway, change domain.PlanChange) (sshexec.Result, error) {
	if change.PostID == nil && change.ChangeType != domain.ChangeRedirect {
		return sshexec.Result{}, fmt.Errorf("change %s: post id required for %s", change.ID, change.ChangeType)
	}

	switch change.ChangeType {
	case domain.ChangeTitleRewrite:
		return gateway.UpdatePostTitle(ctx, *change.PostID, change.NewValue), nil
	case domain.ChangeMetaDescription:
		return gateway.UpdatePostMeta(ctx, *change.PostID, change.FieldName, change.NewValue), nil
	case domain.ChangeSlug:
		return gateway.UpdatePostSlug(ctx, *change.PostID, change.NewValue), nil
	case domain.ChangeExcerptRewrite:
		return gateway.UpdatePostExcerpt(ctx, *change.PostID, change.NewValue), nil
	case domain.ChangeContentAddition:
		return gateway.UpdatePostContent(ctx, *change.PostID, change.NewValue), nil
	case domain.ChangeInternalLink, domain.ChangeSchemaMarkup, domain.ChangeCategory, domain.ChangeTag:
		return gateway.UpdatePostMeta(ctx, *change.PostID, change.FieldName, change.NewValue), nil
	case domain.ChangeRedirect:
		var postID int64
		if change.PostID != nil {
			postID = *change.PostID
		}
		return gateway.UpdatePostMeta(ctx, postID, change.FieldName, change.NewValue), nil
	}
	return sshexec.Result{}, fmt.Errorf("unsupported change type: %s", change.ChangeType)
}

func describeChange(change domain.PlanChange) string {
	target := "N/A"
	if change.PostID != nil {
		target = fmt.Sprintf("%d", *change.PostID)
	}
	return fmt.Sprintf("%s on post %s: %s", change.ChangeType, target, change.FieldName)
}
