package suggest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/logging"
)

// PromptPlaceholder in CommandProvider.Args is replaced by the rendered prompt.
const PromptPlaceholder = "{{prompt}}"

const (
	defaultTimeout = 2 * time.Minute
	stderrLimit    = 10 * 1024
	stdoutLimit    = 1024 * 1024
	killGrace      = 3 * time.Second
)

// CommandProvider runs a generator CLI once per request and parses its stdout.
//
// Args are passed as given, with PromptPlaceholder replaced by the prompt. When no
// argument contains the placeholder the prompt is passed as "-p <prompt>" ahead of Args,
// which matches `claude -p <prompt> --output-format json`.
type CommandProvider struct {
	Command string
	Args    []string
	Timeout time.Duration
	Dir     string
	Log     *zap.Logger
}

// NewCommandProvider returns a provider for the claude CLI with JSON output
func NewCommandProvider(log *zap.Logger) *CommandProvider {
	return &CommandProvider{
		Command: "claude",
		Args:    []string{"--output-format", "json"},
		Timeout: defaultTimeout,
		Log:     log,
	}
}

func (p *CommandProvider) Suggest(ctx context.Context, req Request) ([]content.Draft, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx, p.Log).With(zap.String("command", p.Command), zap.String("parent", req.Parent.ID))

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Command, p.args(prompt)...)
	cmd.Dir = p.Dir
	// Drop CLAUDE_CODE_* and CLAUDECODE so a generator started from inside an agent
	// session does not think it is nested.
	cmd.Env = filterAgentEnv(os.Environ())
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGrace

	stdout := cappedBuffer{limit: stdoutLimit}
	stderr := cappedBuffer{limit: stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("generator stopped", zap.Duration("elapsed", elapsed), zap.Error(ctxErr))
		return nil, fmt.Errorf("%w: %s: %w", ErrProvider, p.Command, ctxErr)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("%w: %s exited with code %d: %s",
				ErrProvider, p.Command, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: running %s: %w", ErrProvider, p.Command, runErr)
	}
	if stdout.Truncated() {
		return nil, fmt.Errorf("%w: output exceeded %d bytes", ErrProvider, stdoutLimit)
	}

	raw, err := parseDrafts(stdout.Bytes())
	if err != nil {
		log.Warn("unreadable generator output", zap.Error(err), zap.String("stderr", stderr.String()))
		return nil, err
	}
	drafts, err := Sanitize(ctx, req, raw, log)
	if err != nil {
		return nil, err
	}
	log.Info("generator finished",
		zap.Duration("elapsed", elapsed), zap.Int("returned", len(raw)), zap.Int("kept", len(drafts)))
	return drafts, nil
}

func (p *CommandProvider) args(prompt string) []string {
	out := make([]string, 0, len(p.Args)+2)
	replaced := false
	for _, a := range p.Args {
		if strings.Contains(a, PromptPlaceholder) {
			a = strings.ReplaceAll(a, PromptPlaceholder, prompt)
			replaced = true
		}
		out = append(out, a)
	}
	if !replaced {
		out = append([]string{"-p", prompt}, out...)
	}
	return out
}

func filterAgentEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		key := e
		if idx := strings.IndexByte(e, '='); idx >= 0 {
			key = e[:idx]
		}
		if strings.HasPrefix(key, "CLAUDE_CODE_") || key == "CLAUDECODE" {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// cappedBuffer keeps the first limit bytes written to it and discards the rest.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
		c.truncated = true
	}
	_, err := c.buf.Write(toWrite)
	// report the full length so exec keeps draining the pipe
	return len(p), err
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *cappedBuffer) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf.Bytes())
}

func (c *cappedBuffer) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}
