package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// UploadOptions tunes a twine upload.
type UploadOptions struct {
	Token         string
	RepositoryURL string
	SkipExisting  bool
}

// TwineService wraps twine check and twine upload.
type TwineService interface {
	Check(ctx context.Context, files []string) error
	Upload(ctx context.Context, files []string, opts UploadOptions) error
}

type twineService struct {
	runner  CommandRunner
	logger  *zap.Logger
	timeout time.Duration
}

// NewTwineService creates a TwineService.
func NewTwineService(runner CommandRunner, logger *zap.Logger) TwineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &twineService{runner: runner, logger: logger, timeout: DefaultTwineTimeout}
}

func (s *twineService) Check(ctx context.Context, files []string) error {
	safe, err := sanitizeFiles(files)
	if err != nil {
		return err
	}
	if _, err := runChecked(ctx, s.runner, Command{
		Name:    twineBinary,
		Args:    append([]string{"check", "--strict"}, safe...),
		Timeout: s.timeout,
	}); err != nil {
		return fmt.Errorf("twine check failed: %w", err)
	}
	return nil
}

func (s *twineService) Upload(ctx context.Context, files []string, opts UploadOptions) error {
	if opts.Token == "" {
		return errors.New("pypi token is required for upload")
	}
	if err := sanitizeURL(opts.RepositoryURL); err != nil {
		return err
	}
	safe, err := sanitizeFiles(files)
	if err != nil {
		return err
	}
	args := []string{"upload", "--non-interactive"}
	if opts.SkipExisting {
		args = append(args, "--skip-existing")
	}
	if opts.RepositoryURL != "" {
		args = append(args, "--repository-url", opts.RepositoryURL)
	}
	args = append(args, safe...)
	s.logger.Info("uploading distributions", zap.Int("files", len(safe)), zap.Bool("skip_existing", opts.SkipExisting))
	if _, err := runChecked(ctx, s.runner, Command{
		Name: twineBinary,
		Args: args,
		Env: map[string]string{
			"TWINE_USERNAME": "__token__",
			"TWINE_PASSWORD": opts.Token,
		},
		Timeout: s.timeout,
		Stream:  streamInCI(),
	}); err != nil {
		return fmt.Errorf("twine upload failed: %w", err)
	}
	return nil
}

func sanitizeFiles(files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, errors.New("no distribution files given")
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		clean, err := sanitizePath(f)
		if err != nil {
			return nil, fmt.Errorf("invalid distribution file: %w", err)
		}
		out = append(out, clean)
	}
	return out, nil
}
