package chainrpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// hexQuantity formats a block number the way eth_getBlockByNumber and
// eth_getLogs expect it on the wire.
func hexQuantity(n uint64) string {
	return hexutil.EncodeUint64(n)
}

func hexToUint64(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return hexutil.DecodeUint64(s)
}

// hexToDecimalString converts a 0x-prefixed hex quantity (e.g. a
// balance) into a base-10 string, preserving full precision for
// amounts larger than a uint64.
func hexToDecimalString(s string) (string, error) {
	if s == "" {
		return "0", nil
	}
	big, err := hexutil.DecodeBig(s)
	if err != nil {
		return "", fmt.Errorf("decode hex quantity %q: %w", s, err)
	}
	return big.String(), nil
}

// decodeQuantity unmarshals a JSON string containing a 0x-prefixed hex
// quantity, such as the raw result of eth_blockNumber.
func decodeQuantity(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("decode quantity: %w", err)
	}
	return hexToUint64(s)
}
