package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onvifscout/scout-release/internal/domain"
	"go.uber.org/zap"
)

// SemanticReleaseService wraps the python-semantic-release CLI.
type SemanticReleaseService interface {
	// NextVersion returns the version semantic-release would release next.
	NextVersion(ctx context.Context, channel domain.PrereleaseChannel) (string, error)
	// Run forwards a subcommand and reports the tool's exit status in Result.
	Run(ctx context.Context, args ...string) (Result, error)
}

type semanticReleaseService struct {
	runner  CommandRunner
	logger  *zap.Logger
	timeout time.Duration
	env     map[string]string
}

// NewSemanticReleaseService creates a SemanticReleaseService. env is added to
// the tool environment (GH_TOKEN for changelog/publish subcommands).
func NewSemanticReleaseService(runner CommandRunner, logger *zap.Logger, env map[string]string) SemanticReleaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &semanticReleaseService{
		runner:  runner,
		logger:  logger,
		timeout: DefaultSemanticReleaseTimeout,
		env:     env,
	}
}

func (s *semanticReleaseService) NextVersion(ctx context.Context, channel domain.PrereleaseChannel) (string, error) {
	args := []string{"version", "--print"}
	if channel.IsPrerelease() {
		token := channel.Token()
		if !validPrereleaseToken.MatchString(token) {
			return "", fmt.Errorf("invalid prerelease token: %s", token)
		}
		args = append(args, "--as-prerelease", "--prerelease-token", token)
	}
	result, err := runChecked(ctx, s.runner, Command{
		Name:    semanticReleaseBinary,
		Args:    args,
		Env:     s.env,
		Timeout: s.timeout,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute semantic-release: %w", err)
	}
	version := lastLine(result.Stdout)
	s.logger.Debug("semantic-release printed version", zap.String("version", version), zap.String("channel", string(channel)))
	if version == "" {
		return "", nil
	}
	if err := sanitizeVersion(version); err != nil {
		return "", fmt.Errorf("semantic-release returned invalid version: %w", err)
	}
	return strings.TrimPrefix(version, "v"), nil
}

func (s *semanticReleaseService) Run(ctx context.Context, args ...string) (Result, error) {
	if len(args) == 0 || !validSubcommandTokens[args[0]] {
		return Result{}, fmt.Errorf("unsupported semantic-release command: %v", args)
	}
	// A bare value is only accepted right after a flag that takes it.
	afterFlag := false
	for _, arg := range args[1:] {
		switch {
		case strings.HasPrefix(arg, "-"):
			afterFlag = !strings.Contains(arg, "=")
		case afterFlag:
			afterFlag = false
		default:
			return Result{}, fmt.Errorf("unsupported semantic-release argument: %s", arg)
		}
	}
	return s.runner.Run(ctx, Command{
		Name:    semanticReleaseBinary,
		Args:    args,
		Env:     s.env,
		Timeout: s.timeout,
	})
}

// lastLine returns the last non-empty line of output.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
