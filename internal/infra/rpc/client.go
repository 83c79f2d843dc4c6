// Package rpc is the JSON-RPC client used to query an EVM node. Calls go to
// the configured endpoints in order, each with exponential-backoff retry.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vietddude/walletguard/internal/infra/rpc/provider"
	"github.com/vietddude/walletguard/internal/infra/rpc/routing"
)

// Client is the high-level interface for making RPC calls.
type Client struct {
	providers []provider.Provider
	retry     routing.RetryConfig
}

// NewClient builds a client over providers, tried in order.
func NewClient(retry routing.RetryConfig, providers ...provider.Provider) *Client {
	return &Client{providers: providers, retry: retry}
}

// Dial creates HTTP providers for urls.
func Dial(urls []string, timeout time.Duration, retry routing.RetryConfig) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("rpc: at least one url is required")
	}
	providers := make([]provider.Provider, 0, len(urls))
	for i, u := range urls {
		providers = append(providers, provider.NewHTTPProvider("rpc-"+strconv.Itoa(i), u, timeout))
	}
	return NewClient(retry, providers...), nil
}

// Call invokes method and decodes the result into out. out may be nil.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := routing.CallWithFailover(ctx, c.providers, method, params, c.retry)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// Health reports the status of every provider by name.
func (c *Client) Health() map[string]provider.HealthStatus {
	out := make(map[string]provider.HealthStatus, len(c.providers))
	for _, p := range c.providers {
		out[p.Name()] = p.Health()
	}
	return out
}

func (c *Client) Close() error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
