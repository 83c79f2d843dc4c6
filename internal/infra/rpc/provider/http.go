package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/walletguard/internal/metrics"
)

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 512

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
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
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call makes a single JSON-RPC call.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	start := time.Now()
	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      p.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordFailure(method)
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure(method)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.recordFailure(method)
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Body:       string(raw),
		}
	}

	var rpcResp response
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		p.recordFailure(method)
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if rpcResp.Error != nil {
		p.recordFailure(method)
		return nil, rpcResp.Error
	}

	p.recordSuccess(method, time.Since(start))
	return rpcResp.Result, nil
}

func (p *HTTPProvider) Name() string {
	return p.name
}

func (p *HTTPProvider) Health() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

// Close drops idle connections.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) recordSuccess(method string, latency time.Duration) {
	metrics.RPCCallsTotal.WithLabelValues(p.name, method, "ok").Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *HTTPProvider) recordFailure(method string) {
	metrics.RPCCallsTotal.WithLabelValues(p.name, method, "error").Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}
