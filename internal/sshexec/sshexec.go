// Package sshexec runs single commands on remote hosts through a
// password-authenticated ssh subprocess.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wpops-labs/wpops-go/internal/platform/env"
)

const (
	// ExitTimeout is the sentinel exit code reported when a command hits
	// its deadline, matching the convention of coreutils timeout(1).
	ExitTimeout = 124

	// DefaultTimeout bounds ordinary reads; LongTimeout bounds content
	// listings and content writes on large sites.
	DefaultTimeout = 30 * time.Second
	LongTimeout    = 60 * time.Second

	// killGrace is how long after the deadline the process gets before
	// it is killed outright.
	killGrace = 1 * time.Second

	maxOutputBytes = 10 * 1024 * 1024
)

type ConnectionInfo struct {
	Host     string
	Port     int
	Username string
	Password string
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner runs one remote command. It never returns an error: failure is
// communicated through a non-zero exit code (ExitTimeout for deadline
// overruns).
type Runner interface {
	Run(ctx context.Context, conn ConnectionInfo, command string, timeout time.Duration) Result
}

type Config struct {
	SSHPassPath string
	RatePerSec  float64
	RateBurst   int
}

func ConfigFromEnv() (Config, error) {
	ratePerSec, err := env.Float64("WPOPS_SSH_RATE_PER_SEC", 10)
	if err != nil {
		return Config{}, err
	}
	burst, err := env.Int("WPOPS_SSH_RATE_BURST", 20)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		SSHPassPath: env.String("WPOPS_SSHPASS_PATH", "/usr/bin/sshpass"),
		RatePerSec:  ratePerSec,
		RateBurst:   burst,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SSHPassPath == "" {
		return errors.New("WPOPS_SSHPASS_PATH is required")
	}
	if c.RatePerSec <= 0 {
		return errors.New("WPOPS_SSH_RATE_PER_SEC must be positive")
	}
	if c.RateBurst < 1 {
		return errors.New("WPOPS_SSH_RATE_BURST must be >= 1")
	}
	return nil
}

type SSHRunner struct {
	sshpassPath string
	limiter     *rate.Limiter
}

func NewSSHRunner(cfg Config) (*SSHRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SSHRunner{
		sshpassPath: cfg.SSHPassPath,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
	}, nil
}

func (r *SSHRunner) Run(ctx context.Context, conn ConnectionInfo, command string, timeout time.Duration) Result {
	start := time.Now()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return Result{
			Stderr:   fmt.Sprintf("rate limit wait: %v", err),
			ExitCode: ExitTimeout,
			Duration: time.Since(start),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.sshpassPath, sshArgs(conn, command)...)
	cmd.Env = append(os.Environ(), "SSHPASS="+conn.Password)
	cmd.WaitDelay = killGrace

	var stdout, stderr cappedBuffer
	stdout.limit = maxOutputBytes
	stderr.limit = maxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	result.ExitCode = classifyExit(runCtx, err)
	return result
}

func sshArgs(conn ConnectionInfo, command string) []string {
	return []string{
		"-e",
		"ssh",
		"-o", "StrictHostKeyChecking=no",
		"-o", "ConnectTimeout=10",
		"-p", strconv.Itoa(conn.Port),
		conn.Username + "@" + conn.Host,
		command,
	}
}

func classifyExit(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ExitTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// cappedBuffer accepts writes but retains at most limit bytes, so a
// runaway remote command cannot exhaust memory.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	b.buf.Write(p)
	return n, nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
