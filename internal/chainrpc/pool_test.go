package chainrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/sentinel/infrastructure/testutil"
)

func rpcServer(t *testing.T, handler func(method string) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return testutil.NewHTTPTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := handler(req.Method)
		resp := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			b, _ := json.Marshal(result)
			resp.Result = b
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestPool(t *testing.T, endpoints ...string) *Pool {
	t.Helper()
	cfgs := make([]EndpointConfig, len(endpoints))
	for i, e := range endpoints {
		cfgs[i] = EndpointConfig{URL: e}
	}
	pool, err := NewPool(PoolConfig{
		Endpoints:           cfgs,
		HealthCheckInterval: time.Hour,
		MaxConsecutiveFails: 2,
		MaxRetries:          len(endpoints) + 1,
	}, logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)
	return pool
}

func TestPool_BlockNumber(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *RPCError) {
		require.Equal(t, "eth_blockNumber", method)
		return "0x10", nil
	})
	defer srv.Close()

	pool := newTestPool(t, srv.URL)
	n, err := pool.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(16), n)
}

// TestPool_Failover covers scenario S4: endpoint E1 fails twice then
// E2 succeeds, and the pool must return the successful result rather
// than surfacing E1's error.
func TestPool_Failover(t *testing.T) {
	bad := rpcServer(t, func(method string) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32000, Message: "server error"}
	})
	defer bad.Close()

	good := rpcServer(t, func(method string) (interface{}, *RPCError) {
		return "0x1", nil
	})
	defer good.Close()

	cfgs := []EndpointConfig{{URL: bad.URL}, {URL: good.URL}}
	pool, err := NewPool(PoolConfig{
		Endpoints:           cfgs,
		HealthCheckInterval: time.Hour,
		MaxConsecutiveFails: 1,
		MaxRetries:          4,
	}, logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)

	n, err := pool.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestPool_NoEndpoints(t *testing.T) {
	_, err := NewPool(PoolConfig{}, nil)
	require.Error(t, err)
}

func TestPool_MarkUnhealthyOnServerError(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *RPCError) {
		return nil, &RPCError{Code: -32000, Message: "boom"}
	})
	defer srv.Close()

	pool := newTestPool(t, srv.URL)
	pool.config.MaxConsecutiveFails = 1
	_, err := pool.BlockNumber(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, pool.HealthyCount())
}
