package priceoracle

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/sentinel/infrastructure/datafeed"
	sentinelhex "github.com/R3E-Network/sentinel/infrastructure/hex"
	"github.com/R3E-Network/sentinel/infrastructure/testutil"
)

// ethCallResponse builds the latestRoundData() return payload for a
// fixed USD price with 8 decimals.
func ethCallResponse(price int64) string {
	buf := make([]byte, 320)
	hexBig := func(dst []byte, v int64) {
		for i := 0; i < 8; i++ {
			dst[31-i] = byte(v >> (8 * i))
		}
	}
	hexBig(buf[32*1:32*2], price)
	return sentinelhex.EncodeWithPrefix(buf)
}

func TestChainlinkOracle_USDPrice(t *testing.T) {
	srv := testutil.NewHTTPTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  ethCallResponse(320000000000), // $3200.00000000
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	svc, err := datafeed.NewService(datafeed.ServiceConfig{RPCURL: srv.URL, Network: "ethereum"})
	require.NoError(t, err)
	defer svc.Close()

	oracle := New(svc)
	price, ok := oracle.USDPrice("ETH")
	require.True(t, ok)
	require.InDelta(t, 3200.0, price, 0.01)
}

func TestChainlinkOracle_UnknownSymbol(t *testing.T) {
	srv := testutil.NewHTTPTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": ethCallResponse(100000000)}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	svc, err := datafeed.NewService(datafeed.ServiceConfig{RPCURL: srv.URL, Network: "ethereum"})
	require.NoError(t, err)
	defer svc.Close()

	oracle := New(svc)
	_, ok := oracle.USDPrice("NOTAREALTOKEN")
	require.False(t, ok)
}
