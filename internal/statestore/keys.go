package statestore

import (
	"fmt"
	"time"
)

// LastBlockKey builds the "last_block:<key>" cursor key.
func LastBlockKey(key string) string {
	return fmt.Sprintf("last_block:%s", key)
}

// StatsKey builds the "stats:<component>:<network>" key.
func StatsKey(component, network string) string {
	return fmt.Sprintf("stats:%s:%s", component, network)
}

// CheckpointKey builds the "checkpoint:<network>:<iso8601>" key.
func CheckpointKey(network string, at time.Time) string {
	return fmt.Sprintf("checkpoint:%s:%s", network, at.Format(time.RFC3339))
}
