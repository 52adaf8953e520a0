// Package credentials resolves SSH connection details for hosted
// environments, caching fetched passwords encrypted in the environment
// record.
package credentials

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/kinsta"
	"github.com/wpops-labs/wpops-go/internal/platform/secrets"
	"github.com/wpops-labs/wpops-go/internal/repo"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
)

// CredentialSource fetches fresh SSH credentials from the hosting
// provider.
type CredentialSource interface {
	GetSSHCredential(ctx context.Context, envID string) (kinsta.SSHCredential, error)
}

type Resolver struct {
	environments repo.EnvironmentRepository
	source       CredentialSource
	box          *secrets.Box
	logger       *slog.Logger
}

func NewResolver(environments repo.EnvironmentRepository, source CredentialSource, box *secrets.Box, logger *slog.Logger) *Resolver {
	if environments == nil || source == nil || box == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{environments: environments, source: source, box: box, logger: logger}
}

// Resolve returns connection details for an environment. The cached
// encrypted password is preferred; on a cache miss (or a cache entry
// that no longer decrypts) the password is fetched from the provider and
// re-cached.
func (r *Resolver) Resolve(ctx context.Context, envID string) (sshexec.ConnectionInfo, error) {
	if r == nil {
		return sshexec.ConnectionInfo{}, fmt.Errorf("credential resolver not initialized")
	}
	environment, err := r.environments.GetEnvironment(ctx, envID)
	if err != nil {
		return sshexec.ConnectionInfo{}, fmt.Errorf("load environment %s: %w", envID, err)
	}

	if environment.SSHPasswordEnc != "" {
		password, err := r.box.Decrypt(environment.SSHPasswordEnc)
		if err == nil {
			return connectionInfo(environment, password), nil
		}
		r.logger.Warn("cached ssh password did not decrypt, refetching", "env_id", envID, "error", err)
	}

	cred, err := r.source.GetSSHCredential(ctx, envID)
	if err != nil {
		return sshexec.ConnectionInfo{}, fmt.Errorf("fetch ssh credential for %s: %w", envID, err)
	}
	applyCredential(&environment, cred)

	encrypted, err := r.box.Encrypt(cred.Password)
	if err != nil {
		return sshexec.ConnectionInfo{}, fmt.Errorf("encrypt ssh password: %w", err)
	}
	if err := r.environments.SetEnvironmentPassword(ctx, envID, encrypted); err != nil {
		// Caching is best-effort; the fetched credential is still usable.
		r.logger.Warn("cache ssh password", "env_id", envID, "error", err)
	}

	return connectionInfo(environment, cred.Password), nil
}

// Invalidate drops the cached password so the next Resolve refetches.
func (r *Resolver) Invalidate(ctx context.Context, envID string) error {
	return r.environments.SetEnvironmentPassword(ctx, envID, "")
}

func applyCredential(environment *domain.Environment, cred kinsta.SSHCredential) {
	if cred.Host != "" {
		environment.SSHHost = cred.Host
	}
	if cred.IP != "" {
		environment.SSHIP = cred.IP
	}
	if cred.Port > 0 {
		environment.SSHPort = cred.Port
	}
	if cred.Username != "" {
		environment.SSHUsername = cred.Username
	}
}

// connectionInfo prefers the direct IP when present; some managed hosts
// round-robin the hostname across frontends that reject password auth.
func connectionInfo(environment domain.Environment, password string) sshexec.ConnectionInfo {
	host := environment.SSHIP
	if host == "" {
		host = environment.SSHHost
	}
	port := environment.SSHPort
	if port <= 0 {
		port = 22
	}
	return sshexec.ConnectionInfo{
		Host:     host,
		Port:     port,
		Username: environment.SSHUsername,
		Password: password,
	}
}
