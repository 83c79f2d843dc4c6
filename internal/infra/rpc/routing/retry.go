// Package routing decides how RPC failures are handled: retried on the same
// provider, failed over to the next one, or returned as fatal.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/walletguard/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  4,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	// -32700 parse error, -32600 invalid request, -32601 method not found,
	// -32602 invalid params: the request itself is wrong.
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		}
	}

	var statusErr *provider.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusForbidden, http.StatusUnauthorized:
			return ActionFailover
		}
		if statusErr.StatusCode >= 500 {
			return ActionRetry
		}
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") ||
		strings.Contains(s, "quota") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "count exceeded") {
		return ActionFailover
	}

	// Network errors, timeouts and the rest.
	return ActionRetry
}

// CallWithRetry executes an RPC call with exponential backoff. Failover and
// fatal errors are returned without retrying.
func CallWithRetry(ctx context.Context, p provider.Provider, method string, params []any, cfg RetryConfig) (json.RawMessage, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	backoff := retry.WithCappedDuration(cfg.MaxDelay, retry.NewExponential(cfg.InitialDelay))
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	var result json.RawMessage
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		result, err = p.Call(ctx, method, params)
		if err == nil {
			return nil
		}
		if ClassifyError(err) == ActionRetry {
			slog.Debug("RPC call failed, retrying", "provider", p.Name(), "method", method, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CallWithFailover tries providers in order, each with retry. A fatal error
// stops the walk.
func CallWithFailover(ctx context.Context, providers []provider.Provider, method string, params []any, cfg RetryConfig) (json.RawMessage, error) {
	if len(providers) == 0 {
		return nil, errors.New("no rpc providers configured")
	}

	var lastErr error
	for _, p := range providers {
		result, err := CallWithRetry(ctx, p, method, params, cfg)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		action := ClassifyError(err)
		if action == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.Name(), err)
		}
		slog.Warn("RPC provider failed", "provider", p.Name(), "method", method, "action", action, "error", err)
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
