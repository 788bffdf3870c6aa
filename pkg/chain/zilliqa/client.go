package zilliqa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"
)

// Client is the subset of the Zilliqa JSON-RPC API the adapter needs.
// Tests inject a fake.
type Client interface {
	MinimumGasPrice(ctx context.Context) (*big.Int, error)
	Nonce(ctx context.Context, address string) (uint64, error)
	CreateTransaction(ctx context.Context, payload *TxPayload) (string, error)
	Transaction(ctx context.Context, id string) (*TxInfo, error)
	ContractSubState(ctx context.Context, address, variable string, keys []string) (json.RawMessage, error)
}

// TxPayload is the wire shape handed to CreateTransaction.
type TxPayload struct {
	Version   uint32 `json:"version"`
	Nonce     uint64 `json:"nonce"`
	ToAddr    string `json:"toAddr"`
	Amount    string `json:"amount"`
	PubKey    string `json:"pubKey"`
	GasPrice  string `json:"gasPrice"`
	GasLimit  string `json:"gasLimit"`
	Code      string `json:"code,omitempty"`
	Data      string `json:"data,omitempty"`
	Signature string `json:"signature"`
	Priority  bool   `json:"priority"`
}

// TxInfo is the confirmed view of a submitted transaction.
type TxInfo struct {
	ID           string
	SenderPubKey string
	Nonce        uint64
	Success      bool
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("zilliqa rpc error %d: %s", e.Code, e.Message)
}

// rpcClient talks JSON-RPC 2.0 to a Zilliqa API endpoint.
type rpcClient struct {
	url  string
	http *http.Client
}

// NewClient creates a Client for the given API endpoint.
func NewClient(url string) Client {
	return &rpcClient{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *rpcClient) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(map[string]any{
		"id":      "1",
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

func (c *rpcClient) MinimumGasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "GetMinimumGasPrice", []string{}, &result); err != nil {
		return nil, err
	}
	price, ok := new(big.Int).SetString(result, 10)
	if !ok {
		return nil, fmt.Errorf("malformed gas price %q", result)
	}
	return price, nil
}

func (c *rpcClient) Nonce(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Balance string `json:"balance"`
		Nonce   uint64 `json:"nonce"`
	}
	if err := c.call(ctx, "GetBalance", []string{stripHexPrefix(address)}, &result); err != nil {
		return 0, err
	}
	return result.Nonce, nil
}

func (c *rpcClient) CreateTransaction(ctx context.Context, payload *TxPayload) (string, error) {
	var result struct {
		TranID string `json:"TranID"`
		Info   string `json:"Info"`
	}
	if err := c.call(ctx, "CreateTransaction", []*TxPayload{payload}, &result); err != nil {
		return "", err
	}
	if result.TranID == "" {
		return "", fmt.Errorf("no transaction id returned: %s", result.Info)
	}
	return result.TranID, nil
}

func (c *rpcClient) Transaction(ctx context.Context, id string) (*TxInfo, error) {
	var result struct {
		ID           string `json:"ID"`
		Nonce        string `json:"nonce"`
		SenderPubKey string `json:"senderPubKey"`
		Receipt      *struct {
			Success bool `json:"success"`
		} `json:"receipt"`
	}
	if err := c.call(ctx, "GetTransaction", []string{stripHexPrefix(id)}, &result); err != nil {
		return nil, err
	}
	if result.Receipt == nil {
		return nil, fmt.Errorf("transaction %s not yet confirmed", id)
	}
	nonce, err := strconv.ParseUint(result.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed nonce %q: %w", result.Nonce, err)
	}
	return &TxInfo{
		ID:           result.ID,
		SenderPubKey: stripHexPrefix(result.SenderPubKey),
		Nonce:        nonce,
		Success:      result.Receipt.Success,
	}, nil
}

func (c *rpcClient) ContractSubState(ctx context.Context, address, variable string, keys []string) (json.RawMessage, error) {
	var result json.RawMessage
	params := []any{stripHexPrefix(address), variable, keys}
	if err := c.call(ctx, "GetSmartContractSubState", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
