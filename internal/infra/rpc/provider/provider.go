// Package provider implements JSON-RPC endpoints.
//
// This package contains:
//   - Provider interface: one named RPC endpoint with health tracking
//   - HTTPProvider: JSON-RPC 2.0 over HTTP
//   - RPCError / StatusError: typed failures used by the retry policy
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Provider is a single RPC endpoint.
type Provider interface {
	// Name identifies the endpoint in logs (e.g. "primary", "fallback-1").
	Name() string

	// Call makes a single JSON-RPC request and returns the raw result.
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// Health returns current health metrics.
	Health() HealthStatus

	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// RPCError is an error object returned inside a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	StatusCode int
	RetryAfter string
	Body       string
}

func (e *StatusError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("http %d, retry after: %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}
