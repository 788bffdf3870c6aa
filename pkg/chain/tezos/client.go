package tezos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is the subset of the Tezos node RPC the adapter needs. Tests
// inject a fake.
type Client interface {
	Counter(ctx context.Context, address string) (uint64, error)
	HeadLevel(ctx context.Context) (uint64, error)
	Forge(ctx context.Context, contents []any) ([]byte, error)
	Inject(ctx context.Context, signedHex string) (string, error)
	FindOperation(ctx context.Context, opHash string, depth uint64) (level uint64, found bool, err error)
	RunView(ctx context.Context, contract, view string, input any) (json.RawMessage, error)
}

type rpcClient struct {
	url  string
	http *http.Client
}

// NewClient creates a Client for the given node endpoint.
func NewClient(url string) Client {
	return &rpcClient{
		url:  strings.TrimRight(url, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *rpcClient) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	return c.do(req, path, result)
}

func (c *rpcClient) post(ctx context.Context, path string, body, result any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, result)
}

func (c *rpcClient) do(req *http.Request, path string, result any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var detail json.RawMessage
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return fmt.Errorf("%s: node returned %d: %s", path, resp.StatusCode, detail)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *rpcClient) Counter(ctx context.Context, address string) (uint64, error) {
	var counter string
	path := fmt.Sprintf("/chains/main/blocks/head/context/contracts/%s/counter", address)
	if err := c.get(ctx, path, &counter); err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(counter, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed counter %q: %w", counter, err)
	}
	return value, nil
}

func (c *rpcClient) HeadLevel(ctx context.Context) (uint64, error) {
	var header struct {
		Level uint64 `json:"level"`
	}
	if err := c.get(ctx, "/chains/main/blocks/head/header", &header); err != nil {
		return 0, err
	}
	return header.Level, nil
}

func (c *rpcClient) Forge(ctx context.Context, contents []any) ([]byte, error) {
	var branch string
	if err := c.get(ctx, "/chains/main/blocks/head/hash", &branch); err != nil {
		return nil, err
	}

	var forgedHex string
	body := map[string]any{"branch": branch, "contents": contents}
	if err := c.post(ctx, "/chains/main/blocks/head/helpers/forge/operations", body, &forgedHex); err != nil {
		return nil, err
	}

	forged := make([]byte, len(forgedHex)/2)
	if _, err := fmt.Sscanf(forgedHex, "%x", &forged); err != nil {
		return nil, fmt.Errorf("malformed forged bytes: %w", err)
	}
	return forged, nil
}

func (c *rpcClient) Inject(ctx context.Context, signedHex string) (string, error) {
	var opHash string
	if err := c.post(ctx, "/injection/operation", signedHex, &opHash); err != nil {
		return "", err
	}
	return opHash, nil
}

// FindOperation scans the most recent depth blocks for the operation hash
// and returns the level of the block that includes it.
func (c *rpcClient) FindOperation(ctx context.Context, opHash string, depth uint64) (uint64, bool, error) {
	head, err := c.HeadLevel(ctx)
	if err != nil {
		return 0, false, err
	}

	for level := head; level > 0 && head-level < depth; level-- {
		var groups [][]string
		path := fmt.Sprintf("/chains/main/blocks/%d/operation_hashes", level)
		if err := c.get(ctx, path, &groups); err != nil {
			return 0, false, err
		}
		for _, group := range groups {
			for _, hash := range group {
				if hash == opHash {
					return level, true, nil
				}
			}
		}
	}
	return 0, false, nil
}

// RunView evaluates an on-chain michelson view against head.
func (c *rpcClient) RunView(ctx context.Context, contract, view string, input any) (json.RawMessage, error) {
	var result struct {
		Data json.RawMessage `json:"data"`
	}
	body := map[string]any{
		"contract":       contract,
		"view":           view,
		"input":          input,
		"chain_id":       "main",
		"unparsing_mode": "Readable",
	}
	if err := c.post(ctx, "/chains/main/blocks/head/helpers/scripts/run_script_view", body, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}
