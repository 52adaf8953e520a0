package domain

import (
	"errors"
	"strings"
	"time"
)

type ChangeType string

const (
	ChangeTitleRewrite    ChangeType = "title_rewrite"
	ChangeMetaDescription ChangeType = "meta_description"
	ChangeSlug            ChangeType = "slug_change"
	ChangeContentAddition ChangeType = "content_addition"
	ChangeInternalLink    ChangeType = "internal_link"
	ChangeSchemaMarkup    ChangeType = "schema_markup"
	ChangeRedirect        ChangeType = "redirect"
	ChangeCategory        ChangeType = "category_change"
	ChangeTag             ChangeType = "tag_change"
	ChangeExcerptRewrite  ChangeType = "excerpt_rewrite"
)

type ChangePriority string

const (
	PriorityHigh   ChangePriority = "high"
	PriorityMedium ChangePriority = "medium"
	PriorityLow    ChangePriority = "low"
)

type ChangeStatus string

const (
	ChangePending    ChangeStatus = "pending"
	ChangeApproved   ChangeStatus = "approved"
	ChangeSkipped    ChangeStatus = "skipped"
	ChangeExecuted   ChangeStatus = "executed"
	ChangeFailed     ChangeStatus = "failed"
	ChangeRolledBack ChangeStatus = "rolled_back"
)

// PlanChange is a single proposed edit to one field of one content item.
// ExecutionOrder is assigned once at creation and never changes.
type PlanChange struct {
	ID             string
	PlanID         string
	PostID         *int64
	ChangeType     ChangeType
	FieldName      string
	OldValue       string
	NewValue       string
	Reasoning      string
	Priority       ChangePriority
	Status         ChangeStatus
	ExecutionOrder int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func ValidChangeType(value string) bool {
	switch ChangeType(value) {
	case ChangeTitleRewrite, ChangeMetaDescription, ChangeSlug, ChangeContentAddition,
		ChangeInternalLink, ChangeSchemaMarkup, ChangeRedirect, ChangeCategory,
		ChangeTag, ChangeExcerptRewrite:
		return true
	}
	return false
}

func ValidChangePriority(value string) bool {
	switch ChangePriority(value) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ValidChangeTransition reports whether status may move from one state to
// the next. Status only moves forward: pending -> approved|skipped,
// approved -> executed|failed, and rollback applies from executed or
// failed. A change may be rolled back more than once; the repeat
// transition is a no-op at this layer.
func ValidChangeTransition(from, to ChangeStatus) bool {
	switch from {
	case ChangePending:
		return to == ChangeApproved || to == ChangeSkipped
	case ChangeApproved:
		return to == ChangeExecuted || to == ChangeFailed
	case ChangeExecuted, ChangeFailed:
		return to == ChangeRolledBack
	case ChangeRolledBack:
		return to == ChangeRolledBack
	}
	return false
}

func (c PlanChange) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("change id is required")
	}
	if strings.TrimSpace(c.PlanID) == "" {
		return errors.New("plan id is required")
	}
	if !ValidChangeType(string(c.ChangeType)) {
		return errors.New("invalid change type")
	}
	if !ValidChangePriority(string(c.Priority)) {
		return errors.New("invalid priority")
	}
	if c.ExecutionOrder < 0 {
		return errors.New("execution order must be >= 0")
	}
	return nil
}
