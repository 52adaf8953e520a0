package domain

import (
	"errors"
	"strings"
	"time"
)

// ExecutionLogEntry is one append-only audit record for an execution or
// rollback attempt. Never mutated or deleted.
type ExecutionLogEntry struct {
	ID         string
	PlanID     string
	ChangeID   string
	Command    string
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
	ExecutedAt time.Time
}

func (e ExecutionLogEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("log id is required")
	}
	if strings.TrimSpace(e.PlanID) == "" {
		return errors.New("plan id is required")
	}
	if strings.TrimSpace(e.Command) == "" {
		return errors.New("command is required")
	}
	return nil
}
