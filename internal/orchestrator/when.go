package orchestrator

import (
	"errors"
	"fmt"

	"github.com/Knetic/govaluate"
	"go.uber.org/zap"
)

// Parameters available to step conditions.
const (
	ParamDryRun     = "dry_run"
	ParamPrerelease = "prerelease"
	ParamChannel    = "channel"
	ParamForce      = "force"
	ParamStatus     = "status"
	ParamHasChanges = "has_changes"
	ParamReleasable = "releasable"
	ParamSkipPush   = "skip_push"
	ParamPublished  = "published"
	ParamSkipBuild  = "skip_build"
)

// Values of the status parameter.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// WhenEvaluator evaluates step conditions such as
// `releasable && dry_run == false`.
type WhenEvaluator struct {
	logger *zap.Logger
	cache  map[string]*govaluate.EvaluableExpression
}

// NewWhenEvaluator returns an evaluator that caches parsed expressions.
func NewWhenEvaluator(logger *zap.Logger) *WhenEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhenEvaluator{
		logger: logger,
		cache:  map[string]*govaluate.EvaluableExpression{},
	}
}

// Evaluate returns the boolean value of input. An empty expression is true.
func (e *WhenEvaluator) Evaluate(step, input string, parameters map[string]any) (bool, error) {
	if input == "" {
		return true, nil
	}
	expression, ok := e.cache[input]
	if !ok {
		parsed, err := govaluate.NewEvaluableExpression(input)
		if err != nil {
			return false, fmt.Errorf("invalid condition %q: %w", input, err)
		}
		e.cache[input] = parsed
		expression = parsed
	}
	r, err := expression.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", input, err)
	}
	e.logger.Debug("evaluated step condition",
		zap.String("step", step),
		zap.String("when", input),
		zap.Any("result", r))
	result, ok := r.(bool)
	if !ok {
		return false, errors.New("result of condition " + input + " is not a boolean")
	}
	return result, nil
}

// Validate parses input without evaluating it.
func (e *WhenEvaluator) Validate(input string) error {
	if input == "" {
		return nil
	}
	if _, err := govaluate.NewEvaluableExpression(input); err != nil {
		return fmt.Errorf("invalid condition %q: %w", input, err)
	}
	return nil
}
