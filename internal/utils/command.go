package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrExternalTool is wrapped by every ToolError.
var ErrExternalTool = errors.New("external tool failed")

// Cmd describes one external process invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	// Env entries (KEY=VALUE) are appended to the current environment.
	Env []string
}

func (c Cmd) String() string {
	parts := append([]string{c.Name}, c.Args...)
	return strings.Join(parts, " ")
}

// ToolError carries the exit status of a failed external process.
type ToolError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Name, e.ExitCode)
	if last := lastLine(e.Stderr); last != "" {
		msg += ": " + last
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalTool}
	}
	return []error{ErrExternalTool, e.Err}
}

// ExitStatus returns the exit status to propagate for err: the status of the
// first ToolError in the chain, 1 for any other error and 0 for nil.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var te *ToolError
	if errors.As(err, &te) && te.ExitCode > 0 {
		return te.ExitCode
	}
	return 1
}

// Runner runs external tools. Run streams output, Output captures stdout.
type Runner interface {
	Run(ctx context.Context, c Cmd) error
	Output(ctx context.Context, c Cmd) (string, error)
}

// ExecRunner runs commands with os/exec. Output of Run goes to Stdout and
// Stderr when the context asks for verbose execution.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (r *ExecRunner) Run(ctx context.Context, c Cmd) error {
	opts := GetExecOptions(ctx)
	if opts.DryRun {
		fmt.Fprintf(r.Stdout, "⚡ [dry-run] %s\n", c)
		return nil
	}
	cmd := r.command(ctx, c)
	var stderr tailBuffer
	if opts.Verbose {
		cmd.Stdout = r.Stdout
		cmd.Stderr = io.MultiWriter(r.Stderr, &stderr)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderr
	}
	return toolError(c, cmd.Run(), stderr.String())
}

// Output runs queries, so it also runs under dry-run.
func (r *ExecRunner) Output(ctx context.Context, c Cmd) (string, error) {
	cmd := r.command(ctx, c)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", toolError(c, err, stderr.String())
	}
	return out.String(), nil
}

func (r *ExecRunner) command(ctx context.Context, c Cmd) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

func toolError(c Cmd, err error, stderr string) error {
	if err == nil {
		return nil
	}
	te := &ToolError{Name: c.Name, Args: c.Args, Stderr: stderr, Err: err}
	var ee *exec.ExitError
	switch {
	case errors.As(err, &ee):
		te.ExitCode = ee.ExitCode()
		if te.ExitCode < 0 {
			// killed by a signal
			te.ExitCode = 1
		}
	case errors.Is(err, exec.ErrNotFound):
		te.ExitCode = 127
	default:
		te.ExitCode = 1
	}
	return te
}

// tailBuffer keeps the last few KiB written to it.
type tailBuffer struct {
	buf []byte
}

const tailSize = 4096

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailSize {
		t.buf = t.buf[len(t.buf)-tailSize:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i != -1 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
