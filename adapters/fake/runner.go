// Package fake provides a scripted core.Runner for tests and dry runs.
package fake

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Skryldev/colorist/core"
	apperrors "github.com/Skryldev/colorist/errors"
)

// Response is what the fake returns for one sub-command.
type Response struct {
	Stdout   []byte
	ExitCode int
}

// Runner records every command.  For "convert" it writes a placeholder to
// the destination (the last argument) unless the scripted exit code is
// non-zero.
type Runner struct {
	mu        sync.Mutex
	calls     []core.Command
	responses map[string]Response
	// Output is written to convert destinations.
	Output []byte
}

// NewRunner returns a Runner that succeeds for every sub-command.
func NewRunner() *Runner {
	return &Runner{responses: make(map[string]Response), Output: []byte("colorist")}
}

// On scripts the response for a sub-command such as "identify".
func (r *Runner) On(sub string, resp Response) *Runner {
	r.mu.Lock()
	r.responses[sub] = resp
	r.mu.Unlock()
	return r
}

// Identity scripts identify to report w×h.
func (r *Runner) Identity(w, h int) *Runner {
	return r.On("identify", Response{Stdout: []byte(`{"width":` + strconv.Itoa(w) + `,"height":` + strconv.Itoa(h) + `,"depth":8}` + "\n")})
}

func (r *Runner) Run(ctx context.Context, c core.Command) (*core.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTimeout, "fake", err)
	}
	r.mu.Lock()
	r.calls = append(r.calls, core.Command{Path: c.Path, Args: append([]string(nil), c.Args...)})
	sub := ""
	if len(c.Args) > 0 {
		sub = c.Args[0]
	}
	resp := r.responses[sub]
	out := r.Output
	r.mu.Unlock()

	res := &core.RunResult{Stdout: resp.Stdout, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, apperrors.New(apperrors.CategoryExternalTool, "fake."+sub, &apperrors.ToolError{
			ExitCode: resp.ExitCode,
			Command:  c.String(),
			Output:   string(resp.Stdout),
		})
	}
	if sub == "convert" && len(c.Args) > 1 {
		dst := c.Args[len(c.Args)-1]
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return res, apperrors.Wrap(apperrors.CategoryStorage, "fake.convert", err)
		}
		if err := os.WriteFile(dst, out, 0o644); err != nil {
			return res, apperrors.Wrap(apperrors.CategoryStorage, "fake.convert", err)
		}
	}
	return res, nil
}

// Calls returns a copy of the recorded commands.
func (r *Runner) Calls() []core.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Command(nil), r.calls...)
}

// CallsTo returns the recorded commands for one sub-command.
func (r *Runner) CallsTo(sub string) []core.Command {
	var out []core.Command
	for _, c := range r.Calls() {
		if len(c.Args) > 0 && c.Args[0] == sub {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
