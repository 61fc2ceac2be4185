package orchestrator

import "errors"

var (
	// ErrLintFailed is returned when ruff reports findings or unformatted files.
	ErrLintFailed = errors.New("lint checks failed")
	// ErrTagExists is returned when the release tag is already present.
	ErrTagExists = errors.New("release tag already exists")
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// permanent marks err so the saga executor does not retry the step.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
