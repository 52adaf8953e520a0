package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/wpops-labs/wpops-go/internal/platform/env"
)

const (
	// completionTimeout bounds one reasoning run end to end.
	completionTimeout = 120 * time.Second

	// maxCompletionBytes caps captured output; anything past it is
	// discarded rather than buffered.
	maxCompletionBytes = 10 * 1024 * 1024

	engineKillGrace = 1 * time.Second
)

// Completion is one reasoning response.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Engine produces a completion for a prompt.
type Engine interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

type EngineConfig struct {
	BinaryPath string
	Model      string
}

func EngineConfigFromEnv() (EngineConfig, error) {
	cfg := EngineConfig{
		BinaryPath: env.String("WPOPS_PLANNER_CLI_PATH", "claude"),
		Model:      env.String("WPOPS_PLANNER_MODEL", "sonnet"),
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func (c EngineConfig) Validate() error {
	if c.BinaryPath == "" {
		return errors.New("WPOPS_PLANNER_CLI_PATH is required")
	}
	if c.Model == "" {
		return errors.New("WPOPS_PLANNER_MODEL is required")
	}
	return nil
}

// CLIEngine shells out to a local reasoning CLI: the user prompt goes
// in on stdin, the completion comes back on stdout as plain text.
type CLIEngine struct {
	binaryPath string
	model      string
}

func NewCLIEngine(cfg EngineConfig) (*CLIEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CLIEngine{binaryPath: cfg.BinaryPath, model: cfg.Model}, nil
}

func (e *CLIEngine) Complete(ctx context.Context, prompt string) (Completion, error) {
	runCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	cmd := exec.CommandContext(
		runCtx,
		e.binaryPath,
		"--print",
		"--output-format", "text",
		"--model", e.model,
	)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = engineKillGrace

	var stdout, stderr cappedBuffer
	stdout.limit = maxCompletionBytes
	stderr.limit = 64 * 1024
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Completion{}, fmt.Errorf("reasoning run timed out after %s", completionTimeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Completion{}, fmt.Errorf("reasoning run failed: %s", msg)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return Completion{}, errors.New("reasoning run produced no output")
	}
	return Completion{
		Text:  text,
		Model: e.model,
		// The text output format carries no usage data; rough estimate
		// at 4 bytes per token keeps the plan record informative.
		PromptTokens:     len(prompt) / 4,
		CompletionTokens: len(text) / 4,
	}, nil
}

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
