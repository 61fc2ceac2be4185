package domain

// TriggerKind is the workflow selected for a CI event.
type TriggerKind string

const (
	TriggerRelease TriggerKind = "release"
	TriggerLint    TriggerKind = "lint"
	TriggerPublish TriggerKind = "publish"
	TriggerNone    TriggerKind = "none"
)

// Trigger describes the CI event that started a run.
type Trigger struct {
	Event  string
	Action string
	Ref    string
	// BaseRef is the target branch of a pull request.
	BaseRef string
	// TagName is the release tag for release events.
	TagName string
	Inputs  map[string]string
	Kind    TriggerKind
}
