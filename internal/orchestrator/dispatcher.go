package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// GitHub Actions event names the dispatcher understands.
const (
	EventWorkflowDispatch = "workflow_dispatch"
	EventPush             = "push"
	EventPullRequest      = "pull_request"
	EventRelease          = "release"
)

// ReleaseRunner runs the release workflow.
type ReleaseRunner interface {
	Execute(ctx context.Context, cfg ReleaseConfig) error
}

// LintRunner runs the lint workflow.
type LintRunner interface {
	Execute(ctx context.Context, cfg LintConfig) (domain.LintReport, error)
}

// PublishRunner runs the publish workflow.
type PublishRunner interface {
	Execute(ctx context.Context, cfg PublishConfig) error
}

// eventPayload is the subset of the GitHub event JSON the dispatcher reads.
type eventPayload struct {
	Action  string            `json:"action"`
	Inputs  map[string]any    `json:"inputs"`
	Release *struct {
		TagName    string `json:"tag_name"`
		Prerelease bool   `json:"prerelease"`
	} `json:"release"`
}

// Dispatcher maps a CI event to the matching workflow.
type Dispatcher struct {
	release    ReleaseRunner
	lint       LintRunner
	publish    PublishRunner
	fs         afero.Fs
	getenv     func(string) string
	mainBranch string
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher that reads the GitHub Actions
// environment through getenv and the event payload through fs.
func NewDispatcher(
	release ReleaseRunner,
	lint LintRunner,
	publish PublishRunner,
	fs afero.Fs,
	getenv func(string) string,
	mainBranch string,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mainBranch == "" {
		mainBranch = "main"
	}
	return &Dispatcher{
		release:    release,
		lint:       lint,
		publish:    publish,
		fs:         fs,
		getenv:     getenv,
		mainBranch: mainBranch,
		logger:     logger,
	}
}

// ResolveTrigger reads the event from the environment.
func (d *Dispatcher) ResolveTrigger() (domain.Trigger, error) {
	trigger := domain.Trigger{
		Event:   strings.TrimSpace(d.getenv("GITHUB_EVENT_NAME")),
		Ref:     strings.TrimSpace(d.getenv("GITHUB_REF")),
		BaseRef: strings.TrimSpace(d.getenv("GITHUB_BASE_REF")),
		Inputs:  map[string]string{},
		Kind:    domain.TriggerNone,
	}
	payload, err := d.readPayload()
	if err != nil {
		return trigger, err
	}
	trigger.Action = payload.Action
	for key, value := range payload.Inputs {
		trigger.Inputs[key] = fmt.Sprint(value)
	}
	mainRef := "refs/heads/" + d.mainBranch
	switch trigger.Event {
	case EventWorkflowDispatch:
		trigger.Kind = domain.TriggerRelease
	case EventPush:
		if trigger.Ref == mainRef {
			trigger.Kind = domain.TriggerLint
		}
	case EventPullRequest:
		if trigger.BaseRef == d.mainBranch {
			trigger.Kind = domain.TriggerLint
		}
	case EventRelease:
		if trigger.Action == "published" {
			trigger.Kind = domain.TriggerPublish
			if payload.Release != nil {
				trigger.TagName = payload.Release.TagName
			}
			if trigger.TagName == "" && strings.HasPrefix(trigger.Ref, "refs/tags/") {
				trigger.TagName = strings.TrimPrefix(trigger.Ref, "refs/tags/")
			}
		}
	}
	return trigger, nil
}

func (d *Dispatcher) readPayload() (eventPayload, error) {
	var payload eventPayload
	path := strings.TrimSpace(d.getenv("GITHUB_EVENT_PATH"))
	if path == "" {
		return payload, nil
	}
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return payload, fmt.Errorf("failed to read event payload: %w", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("failed to parse event payload: %w", err)
	}
	return payload, nil
}

// Dispatch resolves the trigger and runs its workflow. Unrelated events are
// a successful no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, ciOutput bool) (domain.Trigger, error) {
	trigger, err := d.ResolveTrigger()
	if err != nil {
		return trigger, err
	}
	d.logger.Info("dispatching CI event",
		zap.String("event", trigger.Event),
		zap.String("ref", trigger.Ref),
		zap.String("workflow", string(trigger.Kind)))
	switch trigger.Kind {
	case domain.TriggerRelease:
		cfg, err := releaseConfigFromInputs(trigger.Inputs)
		if err != nil {
			return trigger, err
		}
		cfg.CIOutput = ciOutput
		cfg.EnableRollback = true
		return trigger, d.release.Execute(ctx, cfg)
	case domain.TriggerLint:
		_, err := d.lint.Execute(ctx, LintConfig{CIOutput: ciOutput})
		return trigger, err
	case domain.TriggerPublish:
		return trigger, d.publish.Execute(ctx, PublishConfig{Tag: trigger.TagName, CIOutput: ciOutput})
	default:
		d.logger.Info("no workflow for event", zap.String("event", trigger.Event))
		return trigger, nil
	}
}

// releaseConfigFromInputs parses the manual trigger inputs.
func releaseConfigFromInputs(inputs map[string]string) (ReleaseConfig, error) {
	channel, err := domain.ParsePrereleaseChannel(inputs["prerelease"])
	if err != nil {
		return ReleaseConfig{}, err
	}
	dryRun := false
	if raw := strings.TrimSpace(inputs["dry_run"]); raw != "" {
		dryRun, err = strconv.ParseBool(raw)
		if err != nil {
			return ReleaseConfig{}, fmt.Errorf("invalid dry_run input %q: expected true or false", raw)
		}
	}
	return ReleaseConfig{Prerelease: channel, DryRun: dryRun}, nil
}
