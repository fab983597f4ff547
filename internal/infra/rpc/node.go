package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tranvu/ledgersync/internal/indexing/metrics"
)

// Node is a JSON-RPC-over-HTTP endpoint with a fixed request timeout.
type Node struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

var _ Client = (*Node)(nil)

// NewNode creates a node client. The timeout applies per request; exceeding
// it is treated like any other transport failure by the failover layer.
func NewNode(name, endpoint string, timeout time.Duration) *Node {
	return &Node{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name returns the node identifier used in logs and metrics.
func (n *Node) Name() string {
	return n.name
}

// Endpoint returns the node's URI.
func (n *Node) Endpoint() string {
	return n.endpoint
}

// Call makes a single JSON-RPC call.
func (n *Node) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(n.name, method).Inc()

	result, err := n.call(ctx, method, params)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(n.name).Inc()
		return nil, err
	}

	metrics.RPCLatency.WithLabelValues(n.name, method).Observe(time.Since(start).Seconds())
	return result, nil
}

func (n *Node) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// Close releases idle connections.
func (n *Node) Close() error {
	n.httpClient.CloseIdleConnections()
	return nil
}
