package domain

import (
	"errors"
	"strings"
	"time"
)

// Environment is one hosted WordPress environment reachable over SSH.
// SSHPasswordEnc is the cached ephemeral password, encrypted at rest;
// empty when no password has been resolved yet.
type Environment struct {
	ID             string
	SiteID         string
	Name           string
	SSHHost        string
	SSHIP          string
	SSHPort        int
	SSHUsername    string
	SSHPasswordEnc string
	UpdatedAt      time.Time
}

func (e Environment) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("environment id is required")
	}
	if strings.TrimSpace(e.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(e.SSHHost) == "" && strings.TrimSpace(e.SSHIP) == "" {
		return errors.New("ssh host or ip is required")
	}
	if e.SSHPort <= 0 {
		return errors.New("ssh port must be positive")
	}
	if strings.TrimSpace(e.SSHUsername) == "" {
		return errors.New("ssh username is required")
	}
	return nil
}
