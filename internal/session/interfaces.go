package session

import (
	"context"

	"codedojo/internal/progress"
	"codedojo/internal/runner"
)

type Runner interface {
	Start(ctx context.Context, req runner.Request) (RunHandle, error)
	Events() <-chan runner.Event
}

type RunHandle interface {
	Seq() uint64
	UnitID() string
	Cancel()
}

type Saver interface {
	Save(snap progress.Snapshot)
	Errors() <-chan error
	Flush(ctx context.Context) error
}

type Watcher interface {
	Follow(dir string) error
	Changes() <-chan struct{}
}

// ManagerRunner adapts a *runner.Manager to the engine's Runner.
func ManagerRunner(m *runner.Manager) Runner {
	return managerRunner{m: m}
}

type managerRunner struct {
	m *runner.Manager
}

func (r managerRunner) Start(ctx context.Context, req runner.Request) (RunHandle, error) {
	h, err := r.m.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (r managerRunner) Events() <-chan runner.Event { return r.m.Events() }
