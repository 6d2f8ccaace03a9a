package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// jsonRPCRequest and jsonRPCResponse mirror the wire shape used by
// infrastructure/chain/client.go's Call method, generalized from a
// single-endpoint client to per-endpoint dispatch inside the pool.
type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

const maxResponseBytes = 10 << 20 // 10MiB, generous for eth_getLogs batches

func (p *Pool) callRaw(ctx context.Context, ep *endpoint, method string, params []interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.cfg.URL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxResponseBytes)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// BlockNumber returns the chain's current block height.
func (p *Pool) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := p.Call(ctx, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}
	return decodeQuantity(raw)
}

// Block is the subset of eth_getBlockByNumber's result Sentinel needs.
type Block struct {
	Number       uint64         `json:"-"`
	Hash         string         `json:"hash"`
	ParentHash   string         `json:"parentHash"`
	Timestamp    uint64         `json:"-"`
	Transactions []BlockTransaction `json:"-"`
}

// BlockTransaction is one transaction embedded in a full block
// response (eth_getBlockByNumber with fullTx=true).
type BlockTransaction struct {
	Hash     string `json:"hash"`
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Input    string `json:"input"`
}

type rawBlock struct {
	Number       string             `json:"number"`
	Hash         string             `json:"hash"`
	ParentHash   string             `json:"parentHash"`
	Timestamp    string             `json:"timestamp"`
	Transactions []BlockTransaction `json:"transactions"`
}

// GetBlockByNumber fetches a full block (with transaction bodies) by
// height.
func (p *Pool) GetBlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	raw, err := p.Call(ctx, "eth_getBlockByNumber", []interface{}{hexQuantity(number), true})
	if err != nil {
		return nil, err
	}
	var rb rawBlock
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	blockNum, err := hexToUint64(rb.Number)
	if err != nil {
		return nil, fmt.Errorf("decode block number: %w", err)
	}
	ts, err := hexToUint64(rb.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("decode block timestamp: %w", err)
	}
	return &Block{
		Number:       blockNum,
		Hash:         rb.Hash,
		ParentHash:   rb.ParentHash,
		Timestamp:    ts,
		Transactions: rb.Transactions,
	}, nil
}

// TransactionReceipt is the subset of eth_getTransactionReceipt
// Sentinel's collectors need.
type TransactionReceipt struct {
	TxHash string `json:"transactionHash"`
	Status string `json:"status"`
	Logs   []Log  `json:"logs"`
}

// Log is a single EVM log entry as returned by eth_getLogs or embedded
// in a transaction receipt.
type Log struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
}

// GetTransactionReceipt fetches a transaction's receipt, including
// any logs it emitted.
func (p *Pool) GetTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	raw, err := p.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, fmt.Errorf("chainrpc: receipt not found for %s", txHash)
	}
	var rcpt TransactionReceipt
	if err := json.Unmarshal(raw, &rcpt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &rcpt, nil
}

// GetLogs fetches logs matching a filter. addresses/topics may be nil
// to mean "no filter".
func (p *Pool) GetLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []string, topics []string) ([]Log, error) {
	filter := map[string]interface{}{
		"fromBlock": hexQuantity(fromBlock),
		"toBlock":   hexQuantity(toBlock),
	}
	if len(addresses) > 0 {
		filter["address"] = addresses
	}
	if len(topics) > 0 {
		filter["topics"] = []interface{}{topics}
	}
	raw, err := p.Call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, err
	}
	var logs []Log
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	return logs, nil
}

// GetCode returns the deployed bytecode at an address at the latest
// block. An empty "0x" result means the address is not a contract.
// Results are cached: bytecode at an address doesn't change once
// deployed, so repeated lookups of the same counterparty (the common
// case for a DEX router or a frequently-hit contract) skip the RPC
// round trip.
func (p *Pool) GetCode(ctx context.Context, address string) (string, error) {
	cacheKey := p.network + ":code:" + address
	if v, ok := p.codeCache.Get(cacheKey); ok {
		return v.(string), nil
	}

	raw, err := p.Call(ctx, "eth_getCode", []interface{}{address, "latest"})
	if err != nil {
		return "", err
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return "", fmt.Errorf("decode code: %w", err)
	}
	p.codeCache.Set(cacheKey, code, 0)
	return code, nil
}

// IsContract reports whether address has deployed bytecode, per Open
// Question (b): the primary "is this a contract" signal, independent
// of the ERC20-path selector heuristic that decides how a transfer
// was triggered.
func (p *Pool) IsContract(ctx context.Context, address string) (bool, error) {
	code, err := p.GetCode(ctx, address)
	if err != nil {
		return false, err
	}
	return code != "" && code != "0x", nil
}

// GetBalance returns the native-currency balance of an address, as a
// decimal string in wei.
func (p *Pool) GetBalance(ctx context.Context, address string) (string, error) {
	raw, err := p.Call(ctx, "eth_getBalance", []interface{}{address, "latest"})
	if err != nil {
		return "", err
	}
	var hexVal string
	if err := json.Unmarshal(raw, &hexVal); err != nil {
		return "", fmt.Errorf("decode balance: %w", err)
	}
	return hexToDecimalString(hexVal)
}

// GetTransactionByHash fetches a transaction body by hash.
func (p *Pool) GetTransactionByHash(ctx context.Context, txHash string) (*BlockTransaction, error) {
	raw, err := p.Call(ctx, "eth_getTransactionByHash", []interface{}{txHash})
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, fmt.Errorf("chainrpc: transaction not found for %s", txHash)
	}
	var tx BlockTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &tx, nil
}
