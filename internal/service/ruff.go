package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RuffService wraps the ruff linter and formatter.
type RuffService interface {
	// Check runs `ruff check --output-format=concise`.
	Check(ctx context.Context, paths []string) (Result, error)
	// FormatCheck runs `ruff format --check`.
	FormatCheck(ctx context.Context, paths []string) (Result, error)
}

type ruffService struct {
	runner  CommandRunner
	logger  *zap.Logger
	timeout time.Duration
}

// NewRuffService creates a RuffService.
func NewRuffService(runner CommandRunner, logger *zap.Logger) RuffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ruffService{runner: runner, logger: logger, timeout: DefaultRuffTimeout}
}

func (s *ruffService) Check(ctx context.Context, paths []string) (Result, error) {
	return s.run(ctx, []string{"check", "--output-format=concise", "--no-fix"}, paths)
}

func (s *ruffService) FormatCheck(ctx context.Context, paths []string) (Result, error) {
	return s.run(ctx, []string{"format", "--check"}, paths)
}

// run returns the tool result even on a non-zero exit: findings are data.
func (s *ruffService) run(ctx context.Context, base, paths []string) (Result, error) {
	safe, err := sanitizePaths(paths)
	if err != nil {
		return Result{}, fmt.Errorf("invalid lint path: %w", err)
	}
	args := append(append([]string{}, base...), safe...)
	result, err := s.runner.Run(ctx, Command{
		Name:    ruffBinary,
		Args:    args,
		Timeout: s.timeout,
	})
	if err != nil {
		return result, fmt.Errorf("failed to execute ruff %s: %w", base[0], err)
	}
	s.logger.Debug("ruff finished", zap.String("subcommand", base[0]), zap.Int("exit_code", result.ExitCode))
	return result, nil
}
