package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/sentinel/infrastructure/metrics"
)

type statsSnapshot struct {
	EventsHandled int64     `json:"events_handled"`
	ActionsTaken  int64     `json:"actions_taken"`
	EventsQueued  int       `json:"events_queued"`
	ActionsQueued int       `json:"actions_queued"`
	SnapshotAt    time.Time `json:"snapshot_at"`
}

// statsTask logs and persists a stats snapshot every StatsInterval,
// and warns when either the collector-to-strategy or
// strategy-to-executor stage has been idle longer than
// StaleWarnThreshold.
func (s *Supervisor) statsTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reportStats(ctx)
		}
	}
}

func (s *Supervisor) reportStats(ctx context.Context) {
	s.statsMu.Lock()
	snap := statsSnapshot{
		EventsHandled: s.eventsHandled,
		ActionsTaken:  s.actionsTaken,
		SnapshotAt:    time.Now().UTC(),
	}
	lastEvent := s.lastEventAt
	lastAction := s.lastActionAt
	s.statsMu.Unlock()

	if n, err := s.eventsQ.Len(); err == nil {
		snap.EventsQueued = n
		metrics.Global().SetQueueDepth(s.cfg.Network, "events", n)
	}
	if n, err := s.actionsQ.Len(); err == nil {
		snap.ActionsQueued = n
		metrics.Global().SetQueueDepth(s.cfg.Network, "actions", n)
	}

	s.log.WithFields(logrus.Fields{
		"events_handled": snap.EventsHandled,
		"actions_taken":  snap.ActionsTaken,
		"events_queued":  snap.EventsQueued,
		"actions_queued": snap.ActionsQueued,
	}).Info("pipeline stats")

	if err := s.store.SetComponentStats(ctx, "pipeline", s.cfg.Network, snap); err != nil {
		s.log.WithError(err).Warn("persist stats snapshot")
	}

	now := time.Now()
	if !lastEvent.IsZero() {
		idle := now.Sub(lastEvent)
		metrics.Global().SetStageIdleSeconds(s.cfg.Network, "collector_to_strategy", idle)
		if idle > s.cfg.StaleWarnThreshold {
			s.log.WithField("idle_for", idle).Warn("collector-to-strategy stage idle")
		}
	}
	if !lastAction.IsZero() {
		idle := now.Sub(lastAction)
		metrics.Global().SetStageIdleSeconds(s.cfg.Network, "strategy_to_executor", idle)
		if idle > s.cfg.StaleWarnThreshold {
			s.log.WithField("idle_for", idle).Warn("strategy-to-executor stage idle")
		}
	}
}
