package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/onvifscout/scout-release/internal/config"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// LocalCommands are the semantic-release subcommands a maintainer may run.
var LocalCommands = []string{"changelog", "version", "publish"}

// LocalRequiredEnv must be set, by the shell or a .env file, before a local run.
var LocalRequiredEnv = []string{"GH_TOKEN", "PYPI_TOKEN"}

// LocalRunner runs semantic-release from a maintainer's checkout.
type LocalRunner struct {
	fs              afero.Fs
	semanticRelease service.SemanticReleaseService
	workDir         string
	logger          *zap.Logger
	stdout          io.Writer
	stderr          io.Writer
}

// NewLocalRunner creates a runner that searches for .env from workDir upwards.
func NewLocalRunner(
	fs afero.Fs,
	semanticRelease service.SemanticReleaseService,
	workDir string,
	logger *zap.Logger,
) *LocalRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalRunner{
		fs:              fs,
		semanticRelease: semanticRelease,
		workDir:         workDir,
		logger:          logger,
		stdout:          os.Stdout,
		stderr:          os.Stderr,
	}
}

// SetOutput redirects the tool output.
func (r *LocalRunner) SetOutput(stdout, stderr io.Writer) {
	r.stdout = stdout
	r.stderr = stderr
}

// Execute loads .env, checks the tokens and runs semantic-release with
// command and args. The returned code is the tool's exit code.
func (r *LocalRunner) Execute(ctx context.Context, command string, args ...string) (int, error) {
	envFile, found := config.FindDotenv(r.fs, r.workDir)
	if !found {
		return 1, errors.New("no .env file found in current or parent directories; create one with GH_TOKEN and PYPI_TOKEN")
	}
	loaded, err := config.LoadDotenv(r.fs, envFile)
	if err != nil {
		return 1, err
	}
	r.logger.Debug("loaded .env", zap.String("file", envFile), zap.Strings("variables", loaded))
	if missing := config.MissingEnv(LocalRequiredEnv); len(missing) > 0 {
		return 1, fmt.Errorf("missing required environment variables: %s (add them to %s)",
			strings.Join(missing, ", "), envFile)
	}
	if !slices.Contains(LocalCommands, command) {
		return 1, fmt.Errorf("unknown command %q: valid commands are %s", command, strings.Join(LocalCommands, ", "))
	}
	fmt.Fprintf(r.stdout, "Running: semantic-release %s\n", strings.TrimSpace(command+" "+strings.Join(args, " ")))
	result, err := r.semanticRelease.Run(ctx, append([]string{command}, args...)...)
	if err != nil {
		return 1, fmt.Errorf("failed to run semantic-release: %w", err)
	}
	if result.Stdout != "" {
		fmt.Fprintln(r.stdout, strings.TrimRight(result.Stdout, "\n"))
	}
	if result.Stderr != "" {
		fmt.Fprintln(r.stderr, "Warnings/Errors:")
		fmt.Fprintln(r.stderr, strings.TrimRight(result.Stderr, "\n"))
	}
	if !result.Succeeded() {
		return result.ExitCode, &service.ExitError{
			Tool:   "semantic-release",
			Code:   result.ExitCode,
			Stdout: result.Stdout,
			Stderr: result.Stderr,
		}
	}
	fmt.Fprintln(r.stdout, "Release process completed successfully")
	return 0, nil
}
