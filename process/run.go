package process

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
)

const defaultGracePeriod = 5 * time.Second

// ExitError reports a process that ran but exited unsuccessfully.
type ExitError struct {
	Binary   string
	ExitCode int
	// Stderr holds the last lines the process wrote to stderr.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("process: %s exited with code %d", e.Binary, e.ExitCode)
	}
	return fmt.Sprintf("process: %s exited with code %d: %s", e.Binary, e.ExitCode, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Run executes a subprocess and waits for it to complete.
// If the context is canceled, SIGTERM is sent to the process group first,
// then SIGKILL to the whole group after GracePeriod. Members of the group
// still running once the leader has exited are killed before Run returns.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}

	gracePeriod := cmd.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = defaultGracePeriod
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // running configured tools is the purpose of this package
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stdin != nil {
		c.Stdin = cmd.Stdin
	}

	var (
		mu       sync.Mutex
		escalate *time.Timer
	)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		pgid := c.Process.Pid
		mu.Lock()
		escalate = time.AfterFunc(gracePeriod, func() { killGroup(pgid) })
		mu.Unlock()
		return syscall.Kill(-pgid, syscall.SIGTERM)
	}
	// Closes the output pipes if a group member keeps them open past the
	// grace period.
	c.WaitDelay = gracePeriod

	start := time.Now()
	err := c.Run()
	mu.Lock()
	if escalate != nil {
		escalate.Stop()
		killGroup(c.Process.Pid)
	}
	mu.Unlock()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("process: killed by context: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, &ExitError{
				Binary:   cmd.Binary,
				ExitCode: result.ExitCode,
				Stderr:   result.StderrTail(3),
				Err:      err,
			}
		}
		return result, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}
	return result, nil
}

// killGroup sends SIGKILL to every process in the group. A group that is
// already gone is not an error.
func killGroup(pgid int) {
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// CheckExecutable verifies that binary names an executable file. Bare
// names are resolved through PATH.
func CheckExecutable(binary string) (string, error) {
	if binary == "" {
		return "", fmt.Errorf("process: binary is required")
	}
	if !strings.ContainsRune(binary, os.PathSeparator) {
		path, err := exec.LookPath(binary)
		if err != nil {
			return "", fmt.Errorf("process: %s not found in PATH: %w", binary, err)
		}
		return path, nil
	}
	info, err := os.Stat(binary)
	if err != nil {
		return "", fmt.Errorf("process: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("process: %s is a directory", binary)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("process: %s is not executable", binary)
	}
	return binary, nil
}

// mergeEnv merges additional env vars with the current environment.
func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil // inherit parent env
	}
	return append(os.Environ(), extra...)
}
