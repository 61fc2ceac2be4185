package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrToolNotFound is returned when an external tool binary is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

// Command describes a single external tool invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
	// Stream mirrors output to the process stdout/stderr while capturing it.
	Stream bool
}

// String renders the command line without environment values.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result captures the outcome of a command that started successfully.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Succeeded reports whether the command exited with status zero.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// ExitError reports a tool that ran but exited with a non-zero status.
type ExitError struct {
	Tool     string
	Code     int
	Stdout   string
	Stderr   string
	TimedOut bool
}

func (e *ExitError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s timed out", e.Tool)
	}
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.Code, detail)
}

// CommandRunner executes external commands. A non-zero exit is reported in
// Result.ExitCode, not as an error.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// OSCommandRunner executes commands through os/exec.
type OSCommandRunner struct {
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner(logger *zap.Logger) *OSCommandRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSCommandRunner{logger: logger, stdout: os.Stdout, stderr: os.Stderr}
}

// Run executes cmd and captures its output and exit code.
func (r *OSCommandRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if _, err := exec.LookPath(cmd.Name); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, cmd.Name)
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		execCmd.Dir = cmd.Dir
	}
	if len(cmd.Env) > 0 {
		env := os.Environ()
		keys := make([]string, 0, len(cmd.Env))
		for key := range cmd.Env {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			env = append(env, key+"="+cmd.Env[key])
		}
		execCmd.Env = env
	}
	var stdout, stderr bytes.Buffer
	if cmd.Stream {
		execCmd.Stdout = io.MultiWriter(&stdout, r.stdout)
		execCmd.Stderr = io.MultiWriter(&stderr, r.stderr)
	} else {
		execCmd.Stdout = &stdout
		execCmd.Stderr = &stderr
	}
	start := time.Now()
	r.logger.Debug("running command", zap.String("command", cmd.String()), zap.String("dir", cmd.Dir))
	runErr := execCmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, &ExitError{
				Tool:     cmd.Name,
				Code:     -1,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
				TimedOut: true,
			}
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("failed to run %s: %w", cmd.Name, runErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	r.logger.Debug("command finished",
		zap.String("command", cmd.String()),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// runChecked runs cmd and converts a non-zero exit into an *ExitError.
func runChecked(ctx context.Context, runner CommandRunner, cmd Command) (Result, error) {
	result, err := runner.Run(ctx, cmd)
	if err != nil {
		return result, err
	}
	if !result.Succeeded() {
		return result, &ExitError{
			Tool:   cmd.Name,
			Code:   result.ExitCode,
			Stdout: result.Stdout,
			Stderr: result.Stderr,
		}
	}
	return result, nil
}

// streamInCI reports whether tool output should be mirrored to the console.
func streamInCI() bool {
	return os.Getenv("GITHUB_ACTIONS") == githubActionsTrue
}
