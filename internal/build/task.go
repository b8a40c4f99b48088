// Package build defines the pipeline's tasks and the dependency graph that
// runs them. Tasks are stateless: every Run re-reads its inputs and rewrites
// its outputs, so rerunning with unchanged inputs is a no-op in effect.
package build

import (
	"context"
)

// Task is a named unit of pipeline work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

// NewTask adapts fn to a Task.
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

func (t *funcTask) Name() string { return t.name }

func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// ChangeKind tells connected browsers how to apply a change.
type ChangeKind string

const (
	// ChangeCSS swaps stylesheets in place.
	ChangeCSS ChangeKind = "css"
	// ChangeReload reloads the page.
	ChangeReload ChangeKind = "reload"
)

// Notifier receives the files a task changed. Paths are URL paths relative
// to the site root.
type Notifier interface {
	Changed(ctx context.Context, kind ChangeKind, paths []string)
}

// NopNotifier discards changes. Builds use it.
type NopNotifier struct{}

func (NopNotifier) Changed(context.Context, ChangeKind, []string) {}
