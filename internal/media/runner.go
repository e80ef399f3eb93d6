package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

var (
	ErrToolMissing = errors.New("media tool not found")
	ErrToolTimeout = errors.New("media tool timed out")
)

// ToolError is returned when the tool ran but did not produce a usable result.
type ToolError struct {
	Name     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.ExitCode, truncateRunes(e.Stderr, 200))
}

// RunResult holds captured output of a finished command.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
	ExitCode int
}

// Runner executes external tools. Implementations must honour ctx and the
// timeout, returning ErrToolTimeout when the latter fires.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*RunResult, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after a kill.
	WaitDelay time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 2 * time.Second}
}

func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*RunResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay

	start := time.Now()
	err := cmd.Run()
	res := &RunResult{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return res, nil
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
		return res, fmt.Errorf("%w: %s", ErrToolMissing, name)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w after %s", ErrToolTimeout, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &ToolError{Name: name, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return res, fmt.Errorf("run %s: %w", name, err)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
