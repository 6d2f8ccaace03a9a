// Package collectors defines the Collector interface every concrete
// collector (token transfer, generic web3 event) implements, plus the
// small plugin registry the pipeline uses to look collectors up by
// configured name.
package collectors

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/sentinel/internal/chainrpc"
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/statestore"
)

// Collector polls or subscribes to a data source and emits Events
// until Stop is called or its context is canceled.
type Collector interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Events() <-chan core.Event
}

// Dependencies are the shared infrastructure every collector is wired
// against: the RPC pool it reads from and the state store it persists
// its cursor to. Collectors never construct these themselves.
type Dependencies struct {
	RPC   *chainrpc.Pool
	Store *statestore.Store
	Log   *logrus.Entry
}

// Constructor builds a Collector from its configuration section and
// the pipeline's shared dependencies.
type Constructor func(cfg map[string]interface{}, deps Dependencies) (Collector, error)

var registry = map[string]Constructor{}

// Register adds a named collector constructor to the plugin registry.
// Intended to be called from each collector package's init().
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// New builds a collector by its configured name.
func New(name string, cfg map[string]interface{}, deps Dependencies) (Collector, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownCollectorError{Name: name}
	}
	return ctor(cfg, deps)
}

// UnknownCollectorError is returned when the configured collector name
// has no registered constructor.
type UnknownCollectorError struct {
	Name string
}

func (e *UnknownCollectorError) Error() string {
	return "collectors: unknown collector " + e.Name
}
