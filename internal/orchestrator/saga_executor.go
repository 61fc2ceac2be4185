package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// SagaStep represents a single step in the saga workflow
type SagaStep struct {
	Name string
	Type domain.OperationType
	// When is a govaluate condition; the step is skipped when it is false.
	When string
	// NoRetry disables retries for steps that must not be repeated.
	NoRetry    bool
	Execute    func(ctx context.Context) (rollbackData map[string]any, err error)
	Compensate func(ctx context.Context, rollbackData map[string]any) error
}

// StepResult is the outcome of one step, used for the run summary.
type StepResult struct {
	Name     string
	Status   domain.OperationStatus
	Duration time.Duration
	Err      error
}

// SagaExecutor manages the execution of saga workflows with rollback support
type SagaExecutor struct {
	sessionID      string
	stateRepo      repository.StateRepository
	state          *domain.RollbackState
	steps          []SagaStep
	enableRollback bool
	logger         *zap.Logger
	conditions     *WhenEvaluator
	params         func() map[string]any
	results        []StepResult
}

// NewSagaExecutor creates a new saga executor. State is persisted only when
// enableRollback is set.
func NewSagaExecutor(stateRepo repository.StateRepository, enableRollback bool, logger *zap.Logger) *SagaExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionID := uuid.New().String()
	return &SagaExecutor{
		sessionID:      sessionID,
		stateRepo:      stateRepo,
		state:          domain.NewRollbackState(sessionID),
		steps:          []SagaStep{},
		enableRollback: enableRollback,
		logger:         logger.With(zap.String("session_id", sessionID)),
		conditions:     NewWhenEvaluator(logger),
	}
}

// LoadExistingSaga loads an existing saga from state
func LoadExistingSaga(
	ctx context.Context,
	stateRepo repository.StateRepository,
	sessionID string,
	logger *zap.Logger,
) (*SagaExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	state, err := stateRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga state: %w", err)
	}
	return &SagaExecutor{
		sessionID:      sessionID,
		stateRepo:      stateRepo,
		state:          state,
		steps:          []SagaStep{},
		enableRollback: true,
		logger:         logger.With(zap.String("session_id", sessionID)),
		conditions:     NewWhenEvaluator(logger),
	}, nil
}

// SessionID returns the identifier used for persisted state.
func (s *SagaExecutor) SessionID() string {
	return s.sessionID
}

// SetConditionParams installs the provider of step condition parameters. It
// is called before each step so conditions see values set by earlier steps.
func (s *SagaExecutor) SetConditionParams(params func() map[string]any) {
	s.params = params
}

// AddStep adds a step to the saga. Existing operation records are reused so
// a loaded saga can be given its compensations.
func (s *SagaExecutor) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
	for _, op := range s.state.Operations {
		if op.Type == step.Type {
			return
		}
	}
	s.state.AddOperation(step.Type)
}

// Execute runs the saga workflow with automatic rollback on failure
func (s *SagaExecutor) Execute(ctx context.Context) error {
	for _, step := range s.steps {
		if err := s.conditions.Validate(step.When); err != nil {
			return fmt.Errorf("step '%s': %w", step.Name, err)
		}
	}
	if s.enableRollback {
		if err := s.saveState(ctx); err != nil {
			return fmt.Errorf("failed to save initial state: %w", err)
		}
	}
	s.state.Status = domain.WorkflowStatusRunning
	for _, step := range s.steps {
		run, err := s.shouldRun(step)
		if err != nil {
			s.state.MarkOperationStarted(step.Type)
			s.state.MarkOperationFailed(step.Type, err)
			s.record(step, domain.OperationStatusFailed, 0, err)
			return fmt.Errorf("step '%s' failed: %w", step.Name, err)
		}
		if !run {
			s.logger.Info("skipping step", zap.String("step", step.Name), zap.String("when", step.When))
			s.state.MarkOperationSkipped(step.Type)
			s.record(step, domain.OperationStatusSkipped, 0, nil)
			continue
		}
		started := time.Now()
		if err := s.executeStep(ctx, step); err != nil {
			s.state.MarkOperationFailed(step.Type, err)
			s.record(step, domain.OperationStatusFailed, time.Since(started), err)
			s.logger.Error("step failed", zap.String("step", step.Name), zap.Error(err))
			if s.enableRollback {
				if saveErr := s.saveState(ctx); saveErr != nil {
					s.logger.Warn("failed to save state before rollback", zap.Error(saveErr))
				}
				// Separate context so rollback completes after cancellation
				rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RollbackTimeout)
				rollbackErr := s.rollback(rollbackCtx)
				cancel()
				if rollbackErr != nil {
					return fmt.Errorf("step '%s' failed: %w, rollback also failed: %v",
						step.Name, err, rollbackErr)
				}
			}
			return fmt.Errorf("step '%s' failed: %w", step.Name, err)
		}
		s.record(step, domain.OperationStatusCompleted, time.Since(started), nil)
	}
	s.state.Status = domain.WorkflowStatusCompleted
	if s.enableRollback {
		if saveErr := s.saveState(ctx); saveErr != nil {
			s.logger.Warn("failed to save final state", zap.Error(saveErr))
		}
	}
	return nil
}

// shouldRun evaluates the step condition against the current parameters.
func (s *SagaExecutor) shouldRun(step SagaStep) (bool, error) {
	if step.When == "" {
		return true, nil
	}
	params := map[string]any{}
	if s.params != nil {
		maps.Copy(params, s.params())
	}
	if _, ok := params[ParamStatus]; !ok {
		params[ParamStatus] = StatusSucceeded
	}
	return s.conditions.Evaluate(step.Name, step.When, params)
}

// executeStep executes a single saga step with retry logic
func (s *SagaExecutor) executeStep(ctx context.Context, step SagaStep) error {
	s.state.MarkOperationStarted(step.Type)
	s.logger.Info("running step", zap.String("step", step.Name))
	if s.enableRollback {
		if saveErr := s.saveState(ctx); saveErr != nil {
			s.logger.Warn("failed to save state after marking operation started", zap.Error(saveErr))
		}
	}
	var rollbackData map[string]any
	retries := DefaultRetryCount
	if step.NoRetry {
		retries = 0
	}
	retryStrategy := retry.WithMaxRetries(retries, retry.NewExponential(DefaultRetryDelay))
	attempt := 0
	err := retry.Do(ctx, retryStrategy, func(retryCtx context.Context) error {
		select {
		case <-retryCtx.Done():
			return retryCtx.Err()
		default:
		}
		attempt++
		data, execErr := step.Execute(retryCtx)
		if execErr != nil {
			if isPermanent(execErr) {
				return execErr
			}
			s.logger.Debug("step attempt failed",
				zap.String("step", step.Name),
				zap.Int("attempt", attempt),
				zap.Error(execErr))
			return retry.RetryableError(execErr)
		}
		rollbackData = data
		return nil
	})
	if err != nil {
		return err
	}
	s.state.MarkOperationCompleted(step.Type, rollbackData)
	if s.enableRollback {
		if saveErr := s.saveState(ctx); saveErr != nil {
			s.logger.Warn("failed to save state after marking operation completed", zap.Error(saveErr))
		}
	}
	return nil
}

// Rollback executes compensating actions for completed operations
func (s *SagaExecutor) Rollback(ctx context.Context) error {
	return s.rollback(ctx)
}

// rollback internal implementation
func (s *SagaExecutor) rollback(ctx context.Context) error {
	s.logger.Info("starting rollback")
	completedOps := s.state.GetCompletedOperations()
	if len(completedOps) == 0 {
		s.logger.Info("no operations to roll back")
		return nil
	}
	for _, op := range completedOps {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rollback canceled: %w", ctx.Err())
		default:
		}
		step := s.findStepByType(op.Type)
		if step == nil || step.Compensate == nil {
			continue
		}
		s.logger.Info("rolling back step", zap.String("step", step.Name))
		if err := s.executeCompensation(ctx, step, op.RollbackData); err != nil {
			s.logger.Error("failed to roll back step", zap.String("step", step.Name), zap.Error(err))
			return fmt.Errorf("rollback failed for %s: %w", step.Name, err)
		}
		s.markRolledBack(op.ID)
		if s.enableRollback {
			if saveErr := s.saveState(ctx); saveErr != nil {
				s.logger.Warn("failed to save state during rollback", zap.Error(saveErr))
			}
		}
	}
	s.state.Status = domain.WorkflowStatusRolledBack
	if s.enableRollback {
		if saveErr := s.saveState(ctx); saveErr != nil {
			s.logger.Warn("failed to save state after rollback", zap.Error(saveErr))
		}
	}
	s.logger.Info("rollback completed")
	return nil
}

func (s *SagaExecutor) markRolledBack(id string) {
	for i := range s.state.Operations {
		if s.state.Operations[i].ID == id {
			s.state.Operations[i].Status = domain.OperationStatusRolledBack
			s.state.UpdatedAt = time.Now()
			return
		}
	}
}

// executeCompensation executes a compensating action with retry
func (s *SagaExecutor) executeCompensation(ctx context.Context, step *SagaStep, rollbackData map[string]any) error {
	retryStrategy := retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay))
	return retry.Do(ctx, retryStrategy, func(retryCtx context.Context) error {
		select {
		case <-retryCtx.Done():
			return retryCtx.Err()
		default:
		}
		if err := step.Compensate(retryCtx, rollbackData); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// findStepByType finds a saga step by operation type
func (s *SagaExecutor) findStepByType(opType domain.OperationType) *SagaStep {
	for i := range s.steps {
		if s.steps[i].Type == opType {
			return &s.steps[i]
		}
	}
	return nil
}

func (s *SagaExecutor) record(step SagaStep, status domain.OperationStatus, d time.Duration, err error) {
	s.results = append(s.results, StepResult{Name: step.Name, Status: status, Duration: d, Err: err})
}

// saveState persists the current state
func (s *SagaExecutor) saveState(ctx context.Context) error {
	return s.stateRepo.Save(ctx, s.state)
}

// Results returns the outcome of every step evaluated so far.
func (s *SagaExecutor) Results() []StepResult {
	return s.results
}

// GetState returns the current saga state
func (s *SagaExecutor) GetState() *domain.RollbackState {
	return s.state
}

// SetVersion sets the version in the state
func (s *SagaExecutor) SetVersion(version string) {
	s.state.Version = version
}

// SetPrerelease records the prerelease channel in the state
func (s *SagaExecutor) SetPrerelease(channel domain.PrereleaseChannel) {
	s.state.Prerelease = string(channel)
}

// SetTagName sets the release tag in the state
func (s *SagaExecutor) SetTagName(tag string) {
	s.state.TagName = tag
}

// SetOriginalBranch sets the original branch in the state
func (s *SagaExecutor) SetOriginalBranch(branchName string) {
	s.state.OriginalBranch = branchName
}

// SetOriginalHead records the commit HEAD pointed to before the run
func (s *SagaExecutor) SetOriginalHead(sha string) {
	s.state.OriginalHead = sha
}
