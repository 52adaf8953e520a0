// Package ledger moves plan changes through review: pending changes are
// approved or skipped before execution.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/repo"
)

type Service struct {
	plans   repo.PlanRepository
	changes repo.ChangeRepository
	logger  *slog.Logger
}

func NewService(plans repo.PlanRepository, changes repo.ChangeRepository, logger *slog.Logger) *Service {
	if plans == nil || changes == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{plans: plans, changes: changes, logger: logger}
}

// Approve marks one pending change approved.
func (s *Service) Approve(ctx context.Context, changeID string) (domain.PlanChange, error) {
	return s.review(ctx, changeID, domain.ChangeApproved)
}

// Skip marks one pending change skipped. Skipped changes never execute
// and cannot be re-approved.
func (s *Service) Skip(ctx context.Context, changeID string) (domain.PlanChange, error) {
	return s.review(ctx, changeID, domain.ChangeSkipped)
}

func (s *Service) review(ctx context.Context, changeID string, to domain.ChangeStatus) (domain.PlanChange, error) {
	change, err := s.changes.GetChange(ctx, changeID)
	if err != nil {
		return domain.PlanChange{}, fmt.Errorf("load change %s: %w", changeID, err)
	}
	if !domain.ValidChangeTransition(change.Status, to) {
		return domain.PlanChange{}, fmt.Errorf("change %s is %s, cannot mark %s", changeID, change.Status, to)
	}
	if err := s.changes.UpdateStatus(ctx, changeID, to); err != nil {
		return domain.PlanChange{}, fmt.Errorf("update change %s: %w", changeID, err)
	}
	change.Status = to
	return change, nil
}

// ApproveAll approves every pending change of a plan and moves a draft
// plan to approved. Calling it again is a no-op: already-reviewed
// changes are untouched.
func (s *Service) ApproveAll(ctx context.Context, planID string) (int64, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return 0, fmt.Errorf("load plan %s: %w", planID, err)
	}

	approved, err := s.changes.BulkUpdateStatus(ctx, planID, domain.ChangePending, domain.ChangeApproved)
	if err != nil {
		return 0, fmt.Errorf("approve changes: %w", err)
	}

	if plan.Status == domain.PlanDraft {
		if err := s.plans.UpdatePlanStatus(ctx, planID, domain.PlanApproved); err != nil {
			return approved, fmt.Errorf("mark plan approved: %w", err)
		}
	}
	s.logger.Info("plan changes approved", "plan_id", planID, "approved", approved)
	return approved, nil
}
