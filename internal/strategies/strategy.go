// Package strategies defines the Strategy interface and plugin
// registry the pipeline runtime dispatches events to.
package strategies

import (
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/tokenmovement/tmctx"
)

// Strategy inspects events and raises alerts. A strategy that isn't
// interested in a given event's Kind simply returns nil.
type Strategy interface {
	Name() string
	Process(evt core.Event) []core.Alert
}

// Dependencies bundles the shared services a strategy constructor may
// need beyond its own config section.
type Dependencies struct {
	// PriceOracle resolves a token symbol's USD price. May be nil.
	PriceOracle tmctx.PriceOracle
}

// Constructor builds a Strategy from its configuration section.
type Constructor func(cfg map[string]interface{}, deps Dependencies) (Strategy, error)

var registry = map[string]Constructor{}

// Register adds a named strategy constructor to the plugin registry.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// New builds a strategy by its configured name.
func New(name string, cfg map[string]interface{}, deps Dependencies) (Strategy, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownStrategyError{Name: name}
	}
	return ctor(cfg, deps)
}

// UnknownStrategyError is returned when the configured strategy name
// has no registered constructor.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return "strategies: unknown strategy " + e.Name
}
