package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type EnvironmentStore struct {
	db DB
}

func NewEnvironmentStore(db DB) *EnvironmentStore {
	if db == nil {
		return nil
	}
	return &EnvironmentStore{db: db}
}

func (s *EnvironmentStore) GetEnvironment(ctx context.Context, id string) (domain.Environment, error) {
	if s == nil || s.db == nil {
		return domain.Environment{}, fmt.Errorf("environment store not initialized")
	}
	if strings.TrimSpace(id) == "" {
		return domain.Environment{}, fmt.Errorf("environment id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, site_id, name, ssh_host, ssh_ip, ssh_port, ssh_username, ssh_password_enc, updated_at
		 FROM environments WHERE id = $1`,
		id,
	)
	var (
		environment domain.Environment
		passwordEnc sql.NullString
	)
	if err := row.Scan(
		&environment.ID,
		&environment.SiteID,
		&environment.Name,
		&environment.SSHHost,
		&environment.SSHIP,
		&environment.SSHPort,
		&environment.SSHUsername,
		&passwordEnc,
		&environment.UpdatedAt,
	); err != nil {
		return domain.Environment{}, handleNotFound(err)
	}
	environment.SSHPasswordEnc = passwordEnc.String
	return environment, nil
}

func (s *EnvironmentStore) UpsertEnvironment(ctx context.Context, environment domain.Environment) error {
	if err := environment.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO environments (id, site_id, name, ssh_host, ssh_ip, ssh_port, ssh_username, ssh_password_enc, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		 ON CONFLICT (id) DO UPDATE SET
			site_id = EXCLUDED.site_id,
			name = EXCLUDED.name,
			ssh_host = EXCLUDED.ssh_host,
			ssh_ip = EXCLUDED.ssh_ip,
			ssh_port = EXCLUDED.ssh_port,
			ssh_username = EXCLUDED.ssh_username,
			updated_at = NOW()`,
		environment.ID,
		environment.SiteID,
		environment.Name,
		environment.SSHHost,
		environment.SSHIP,
		environment.SSHPort,
		environment.SSHUsername,
		nullString(environment.SSHPasswordEnc),
	)
	if err != nil {
		return fmt.Errorf("upsert environment: %w", err)
	}
	return nil
}

func (s *EnvironmentStore) SetEnvironmentPassword(ctx context.Context, id, encrypted string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE environments SET ssh_password_enc = $1, updated_at = NOW() WHERE id = $2`,
		encrypted,
		id,
	)
	if err != nil {
		return fmt.Errorf("set environment password: %w", err)
	}
	return requireOneRow(res, "environment not found")
}
