package service

import (
	"context"
)

// fakeRunner records commands and replays scripted results.
type fakeRunner struct {
	commands []Command
	results  []Result
	errs     []error
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	idx := len(f.commands)
	f.commands = append(f.commands, cmd)
	var result Result
	var err error
	if idx < len(f.results) {
		result = f.results[idx]
	}
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return result, err
}

func (f *fakeRunner) last() Command {
	if len(f.commands) == 0 {
		return Command{}
	}
	return f.commands[len(f.commands)-1]
}
