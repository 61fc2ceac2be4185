package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/onvifscout/scout-release/internal/usecase"
	"go.uber.org/zap"
)

// LintConfig contains configuration for the lint workflow.
type LintConfig struct {
	Paths    []string
	CIOutput bool
}

// LintOrchestrator runs ruff's lint and format checks.
type LintOrchestrator struct {
	ruff   service.RuffService
	logger *zap.Logger
	out    io.Writer
}

// NewLintOrchestrator creates a new lint orchestrator.
func NewLintOrchestrator(ruff service.RuffService, logger *zap.Logger) *LintOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LintOrchestrator{ruff: ruff, logger: logger, out: os.Stdout}
}

// SetOutput redirects the report.
func (o *LintOrchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// Execute runs both checks, even when the first fails, and returns
// ErrLintFailed when either exits non-zero.
func (o *LintOrchestrator) Execute(ctx context.Context, cfg LintConfig) (domain.LintReport, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultWorkflowTimeout)
	defer cancel()
	var report domain.LintReport
	checkResult, err := o.ruff.Check(ctx, cfg.Paths)
	if err != nil {
		return report, fmt.Errorf("failed to run %s: %w", usecase.LintCheckName, err)
	}
	report.Checks = append(report.Checks, usecase.BuildLintCheck(usecase.LintCheckName, checkResult))
	formatResult, err := o.ruff.FormatCheck(ctx, cfg.Paths)
	if err != nil {
		return report, fmt.Errorf("failed to run %s: %w", usecase.FormatCheckName, err)
	}
	report.Checks = append(report.Checks, usecase.BuildLintCheck(usecase.FormatCheckName, formatResult))

	o.logger.Info("lint finished",
		zap.Bool("passed", report.Passed()),
		zap.Int("findings", report.FindingCount()))
	if cfg.CIOutput {
		o.writeAnnotations(report)
		fmt.Fprintf(o.out, "lint_passed=%t\n", report.Passed())
		fmt.Fprintf(o.out, "findings=%d\n", report.FindingCount())
	} else {
		fmt.Fprintln(o.out, RenderLintChecks(report))
		if findings := RenderFindings(report); findings != "" {
			fmt.Fprintln(o.out, findings)
		}
	}
	if !report.Passed() {
		return report, fmt.Errorf("%w: %d finding(s)", ErrLintFailed, report.FindingCount())
	}
	return report, nil
}

// writeAnnotations emits GitHub Actions workflow commands so findings show
// up inline on the pull request.
func (o *LintOrchestrator) writeAnnotations(report domain.LintReport) {
	for _, check := range report.Checks {
		for _, f := range check.Findings {
			fmt.Fprintf(o.out, "::error file=%s,line=%d,col=%d,title=%s::%s\n",
				f.File, f.Line, f.Column, f.Code, f.Message)
		}
		for _, file := range check.Unformatted {
			fmt.Fprintf(o.out, "::error file=%s,title=ruff format::File would be reformatted\n", file)
		}
		if !check.Passed() && len(check.Findings) == 0 && len(check.Unformatted) == 0 {
			fmt.Fprintf(o.out, "::error title=%s::exited with code %d\n", check.Name, check.ExitCode)
		}
	}
}
