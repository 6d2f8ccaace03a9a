package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	if m == nil {
		t.Fatal("Expected metrics instance, got nil")
	}

	if m.CollectorPollsTotal == nil {
		t.Error("CollectorPollsTotal should not be nil")
	}
	if m.RPCRequestDuration == nil {
		t.Error("RPCRequestDuration should not be nil")
	}
	if m.ErrorsTotal == nil {
		t.Error("ErrorsTotal should not be nil")
	}
}

func TestRecordCollectorPoll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	m.RecordCollectorPoll("ethereum", "token_transfer", "ok", 100*time.Millisecond)
	m.RecordCollectorPoll("ethereum", "token_transfer", "error", 50*time.Millisecond)
	m.RecordCollectorEvents("ethereum", "token_transfer", 3)
	m.SetCollectorLastBlock("ethereum", "token_transfer", 19000000)
}

func TestRecordPipelineThroughput(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	m.RecordEventHandled("ethereum")
	m.RecordActionTaken("ethereum")
	m.SetQueueDepth("ethereum", "events", 5)
	m.SetStageIdleSeconds("ethereum", "collector_to_strategy", 2*time.Second)
}

func TestRecordAlert(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	m.RecordAlert("ethereum", "significant_transfer", "medium")
	m.RecordAlertThrottled("ethereum")
}

func TestRecordRPCRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	m.RecordRPCRequest("ethereum", "eth_getLogs", "success", 200*time.Millisecond)
	m.RecordRPCRequest("ethereum", "eth_getLogs", "error", 1*time.Second)
	m.SetRPCEndpointsHealthy("ethereum", 2)
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	m.RecordError("chainrpc", "call")
	m.RecordError("statestore", "get")
}

func TestUpdateUptime(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)
	startTime := time.Now().Add(-1 * time.Hour)

	m.UpdateUptime(startTime)
}

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-sentinel", reg)

	if m == nil {
		t.Fatal("Expected metrics instance, got nil")
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Error("Expected metrics to be registered")
	}
}
