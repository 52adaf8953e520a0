package domain

import (
	"errors"
	"strings"
	"time"
)

// ContentBackup holds the pre-mutation value of one field, captured
// immediately before the first real execution attempt for its change.
// One per change, never overwritten; the sole source of truth for
// rollback.
type ContentBackup struct {
	ID            string
	ChangeID      string
	PlanID        string
	PostID        *int64
	FieldName     string
	OriginalValue string
	BackedUpAt    time.Time
}

func (b ContentBackup) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("backup id is required")
	}
	if strings.TrimSpace(b.ChangeID) == "" {
		return errors.New("change id is required")
	}
	if strings.TrimSpace(b.PlanID) == "" {
		return errors.New("plan id is required")
	}
	if strings.TrimSpace(b.FieldName) == "" {
		return errors.New("field name is required")
	}
	return nil
}
