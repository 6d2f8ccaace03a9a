// Package logexec implements the default logging executor: it prints
// every action it receives through the structured logger and performs
// no external side effects. Grounded on
// original_source/sentinel/executors/logger.py.
package logexec

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/executors"
)

func init() {
	executors.Register("logger", func(cfg map[string]interface{}) (executors.Executor, error) {
		return New(logrus.NewEntry(logrus.StandardLogger())), nil
	})
}

// Executor logs each action's alert at a severity-appropriate level.
type Executor struct {
	log *logrus.Entry
}

// New builds a logging executor writing through the given entry.
func New(log *logrus.Entry) *Executor {
	return &Executor{log: log.WithField("component", "logger-executor")}
}

// Name returns the executor's registered plugin name.
func (e *Executor) Name() string { return "logger" }

// Execute logs the action's alert. It never returns an error: logging
// is the fallback-of-last-resort executor and must not itself fail the
// pipeline.
func (e *Executor) Execute(ctx context.Context, action core.Action) error {
	fields := logrus.Fields{
		"alert_id": action.Alert.ID,
		"title":    action.Alert.Title,
		"chain":    action.Alert.Chain,
		"from":     action.Alert.From,
		"tx_hash":  action.Alert.TxHash,
	}

	entry := e.log.WithFields(fields)
	switch action.Alert.Severity {
	case core.SeverityCritical, core.SeverityHigh:
		entry.Warn(action.Alert.Message)
	default:
		entry.Info(action.Alert.Message)
	}
	return nil
}
