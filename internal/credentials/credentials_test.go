package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/kinsta"
	"github.com/wpops-labs/wpops-go/internal/platform/secrets"
)

type fakeEnvironments struct {
	environment domain.Environment
	getErr      error
	setCalls    int
	lastSet     string
}

func (f *fakeEnvironments) GetEnvironment(ctx context.Context, id string) (domain.Environment, error) {
	if f.getErr != nil {
		return domain.Environment{}, f.getErr
	}
	return f.environment, nil
}
func (f *fakeEnvironments) UpsertEnvironment(ctx context.Context, environment domain.Environment) error {
	f.environment = environment
	return nil
}
func (f *fakeEnvironments) SetEnvironmentPassword(ctx context.Context, id, encrypted string) error {
	f.setCalls++
	f.lastSet = encrypted
	f.environment.SSHPasswordEnc = encrypted
	return nil
}

type fakeSource struct {
	cred  kinsta.SSHCredential
	err   error
	calls int
}

func (f *fakeSource) GetSSHCredential(ctx context.Context, envID string) (kinsta.SSHCredential, error) {
	f.calls++
	if f.err != nil {
		return kinsta.SSHCredential{}, f.err
	}
	return f.cred, nil
}

func testBox(t *testing.T) *secrets.Box {
	t.Helper()
	box, err := secrets.NewBox([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	return box
}

func baseEnvironment() domain.Environment {
	return domain.Environment{
		ID:          "env-1",
		SiteID:      "site-1",
		SSHHost:     "env.ssh.kinsta.cloud",
		SSHIP:       "203.0.113.10",
		SSHPort:     54321,
		SSHUsername: "example-site",
	}
}

func TestResolveUsesCachedPassword(t *testing.T) {
	box := testBox(t)
	encrypted, err := box.Encrypt("cached-pw")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	environment := baseEnvironment()
	environment.SSHPasswordEnc = encrypted
	environments := &fakeEnvironments{environment: environment}
	source := &fakeSource{}

	conn, err := NewResolver(environments, source, box, nil).Resolve(context.Background(), "env-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conn.Password != "cached-pw" {
		t.Fatalf("password = %q", conn.Password)
	}
	if source.calls != 0 {
		t.Fatal("cache hit must not hit the provider")
	}
	if conn.Host != "203.0.113.10" {
		t.Fatalf("the direct IP should be preferred, got %q", conn.Host)
	}
	if conn.Port != 54321 || conn.Username != "example-site" {
		t.Fatalf("unexpected connection: %+v", conn)
	}
}

func TestResolveFetchesAndCachesOnMiss(t *testing.T) {
	box := testBox(t)
	environments := &fakeEnvironments{environment: baseEnvironment()}
	source := &fakeSource{cred: kinsta.SSHCredential{
		Password: "fresh-pw",
		Host:     "env.ssh.kinsta.cloud",
		IP:       "203.0.113.10",
		Port:     54321,
		Username: "example-site",
	}}

	resolver := NewResolver(environments, source, box, nil)
	conn, err := resolver.Resolve(context.Background(), "env-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conn.Password != "fresh-pw" {
		t.Fatalf("password = %q", conn.Password)
	}
	if source.calls != 1 || environments.setCalls != 1 {
		t.Fatalf("fetch/cache calls = %d/%d", source.calls, environments.setCalls)
	}
	decrypted, err := box.Decrypt(environments.lastSet)
	if err != nil || decrypted != "fresh-pw" {
		t.Fatalf("cached password does not round-trip: %q, %v", decrypted, err)
	}

	// Second resolve hits the cache.
	if _, err := resolver.Resolve(context.Background(), "env-1"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("provider called %d times, want 1", source.calls)
	}
}

func TestResolveRefetchesWhenCacheCorrupt(t *testing.T) {
	box := testBox(t)
	environment := baseEnvironment()
	environment.SSHPasswordEnc = "not-a-ciphertext"
	environments := &fakeEnvironments{environment: environment}
	source := &fakeSource{cred: kinsta.SSHCredential{Password: "fresh-pw", Port: 22, Username: "u", Host: "h"}}

	conn, err := NewResolver(environments, source, box, nil).Resolve(context.Background(), "env-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conn.Password != "fresh-pw" || source.calls != 1 {
		t.Fatalf("corrupt cache should trigger refetch: %+v, calls=%d", conn, source.calls)
	}
}

func TestResolveProviderFailure(t *testing.T) {
	environments := &fakeEnvironments{environment: baseEnvironment()}
	source := &fakeSource{err: errors.New("kinsta: credential unavailable")}

	if _, err := NewResolver(environments, source, testBox(t), nil).Resolve(context.Background(), "env-1"); err == nil {
		t.Fatal("expected provider failure to surface")
	}
}

func TestResolveHostFallback(t *testing.T) {
	box := testBox(t)
	encrypted, _ := box.Encrypt("pw")
	environment := baseEnvironment()
	environment.SSHIP = ""
	environment.SSHPasswordEnc = encrypted
	environments := &fakeEnvironments{environment: environment}

	conn, err := NewResolver(environments, &fakeSource{}, box, nil).Resolve(context.Background(), "env-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if conn.Host != "env.ssh.kinsta.cloud" {
		t.Fatalf("host fallback missing, got %q", conn.Host)
	}
}
