// Package exec runs the external tool as a child process.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// maxOutput caps the diagnostic snippet carried by a ToolError.
const maxOutput = 2048

// waitDelay bounds how long Run waits for output pipes after the process
// was killed.
const waitDelay = 2 * time.Second

// Runner implements core.Runner on os/exec.  Arguments are passed as argv,
// never through a shell.
type Runner struct {
	// Timeout bounds each child process; 0 waits forever.
	Timeout time.Duration
	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

// NewRunner returns a Runner with the given per-process timeout.
func NewRunner(timeout time.Duration) *Runner { return &Runner{Timeout: timeout} }

func (r *Runner) Run(ctx context.Context, c core.Command) (*core.RunResult, error) {
	op := "exec"
	if len(c.Args) > 0 {
		op = "exec." + c.Args[0]
	}
	if c.Path == "" {
		return nil, apperrors.New(apperrors.CategoryExternalTool, op, apperrors.ErrEmptyInput)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.WaitDelay = waitDelay
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &core.RunResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: 0,
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, apperrors.New(apperrors.CategoryTimeout, op, ctxErr)
		}
		return res, apperrors.Wrap(apperrors.CategoryExternalTool, op, ctxErr)
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	return res, apperrors.New(apperrors.CategoryExternalTool, op, &apperrors.ToolError{
		ExitCode: res.ExitCode,
		Command:  c.String(),
		Output:   snippet(res),
	})
}

// snippet prefers stderr and falls back to stdout.
func snippet(res *core.RunResult) string {
	out := strings.TrimSpace(string(res.Stderr))
	if out == "" {
		out = strings.TrimSpace(string(res.Stdout))
	}
	if len(out) > maxOutput {
		cut := maxOutput
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "…"
	}
	return out
}
