package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BuildService builds the Python sdist and wheel.
type BuildService interface {
	Build(ctx context.Context, outDir string) error
}

type buildService struct {
	runner  CommandRunner
	logger  *zap.Logger
	python  string
	timeout time.Duration
}

// NewBuildService creates a BuildService invoking `<python> -m build`.
func NewBuildService(runner CommandRunner, logger *zap.Logger, python string) BuildService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if python == "" {
		python = "python"
	}
	return &buildService{runner: runner, logger: logger, python: python, timeout: DefaultBuildTimeout}
}

func (s *buildService) Build(ctx context.Context, outDir string) error {
	dir, err := sanitizePath(outDir)
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}
	s.logger.Info("building distributions", zap.String("out_dir", dir))
	if _, err := runChecked(ctx, s.runner, Command{
		Name:    s.python,
		Args:    []string{"-m", "build", "--outdir", dir},
		Timeout: s.timeout,
		Stream:  streamInCI(),
	}); err != nil {
		return fmt.Errorf("failed to build distributions: %w", err)
	}
	return nil
}
