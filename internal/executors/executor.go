// Package executors defines the Executor interface and plugin
// registry the pipeline dispatches actions to. Individual external
// notifier integrations (Telegram, WxPusher, ...) are out of scope per
// spec.md; this package only defines the boundary and ships the
// dependency-free logging executor.
package executors

import (
	"context"

	"github.com/R3E-Network/sentinel/internal/core"
)

// Executor performs a side effect in response to an Action.
type Executor interface {
	Name() string
	Execute(ctx context.Context, action core.Action) error
}

// Constructor builds an Executor from its configuration section.
type Constructor func(cfg map[string]interface{}) (Executor, error)

var registry = map[string]Constructor{}

// Register adds a named executor constructor to the plugin registry.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// New builds an executor by its configured name.
func New(name string, cfg map[string]interface{}) (Executor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownExecutorError{Name: name}
	}
	return ctor(cfg)
}

// UnknownExecutorError is returned when the configured executor name
// has no registered constructor.
type UnknownExecutorError struct {
	Name string
}

func (e *UnknownExecutorError) Error() string {
	return "executors: unknown executor " + e.Name
}
