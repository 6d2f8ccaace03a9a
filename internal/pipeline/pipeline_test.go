package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/sentinel/internal/chainrpc"
	"github.com/R3E-Network/sentinel/internal/collectors"
	"github.com/R3E-Network/sentinel/internal/core"
	"github.com/R3E-Network/sentinel/internal/executors"

	_ "github.com/R3E-Network/sentinel/internal/strategies"
)

// fakeCollector emits a single significant native transfer from Start
// and nothing afterwards, exercising the collector driver without a
// real RPC pool.
type fakeCollector struct {
	events chan core.Event
	stopCh chan struct{}
}

func (f *fakeCollector) Name() string { return "fake" }
func (f *fakeCollector) Start(ctx context.Context) error {
	f.events <- core.Event{
		Kind: core.EventKindTokenTransfer,
		TokenTransfer: &core.TokenTransferEvent{
			Network:     "ethereum",
			TxHash:      "0xdeadbeef",
			BlockTime:   time.Now(),
			From:        "0xaaa",
			To:          "0xbbb",
			TokenSymbol: "ETH",
			IsNative:    true,
			Amount:      10,
		},
		Network: "ethereum",
		Source:  "fake",
	}
	return nil
}
func (f *fakeCollector) Stop()                        { close(f.stopCh) }
func (f *fakeCollector) Events() <-chan core.Event    { return f.events }

type captureExecutor struct {
	mu      sync.Mutex
	actions []core.Action
}

func (c *captureExecutor) Name() string { return "capture" }
func (c *captureExecutor) Execute(ctx context.Context, action core.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, action)
	return nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	capture := &captureExecutor{}
	collectors.Register("fake", func(cfg map[string]interface{}, deps collectors.Dependencies) (collectors.Collector, error) {
		return &fakeCollector{events: make(chan core.Event, 4), stopCh: make(chan struct{})}, nil
	})
	executors.Register("capture", func(cfg map[string]interface{}) (executors.Executor, error) {
		return capture, nil
	})

	dir := t.TempDir()
	cfg := Config{
		Network:       "ethereum",
		StateDir:      dir,
		QueueDir:      dir,
		StatsInterval: 50 * time.Millisecond,
		Collectors:    []PluginSpec{{Name: "fake"}},
		Strategies: []PluginSpec{{Name: "token_movement", Settings: map[string]interface{}{
			"significant_transfer_threshold": 1.0,
		}}},
		Executors: []PluginSpec{{Name: "capture"}},
	}

	sup, err := New(cfg, (*chainrpc.Pool)(nil), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	require.Eventually(t, func() bool {
		capture.mu.Lock()
		defer capture.mu.Unlock()
		return len(capture.actions) > 0
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, sup.Stop(context.Background()))

	capture.mu.Lock()
	defer capture.mu.Unlock()
	require.Equal(t, "Significant Token Transfer", capture.actions[0].Alert.Title)
}
