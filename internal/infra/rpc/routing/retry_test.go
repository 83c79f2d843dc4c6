package routing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/infra/rpc/provider"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{&provider.StatusError{StatusCode: 429}, ActionFailover},
		{&provider.StatusError{StatusCode: 403}, ActionFailover},
		{&provider.StatusError{StatusCode: 502}, ActionRetry},
		{errors.New("project rate limit exceeded"), ActionFailover},
		{errors.New("quota exceeded"), ActionFailover},
		{errors.New("daily request count exceeded"), ActionFailover},
		{&provider.RPCError{Code: -32600, Message: "invalid request"}, ActionFatal},
		{&provider.RPCError{Code: -32601, Message: "method not found"}, ActionFatal},
		{&provider.RPCError{Code: -32700, Message: "parse error"}, ActionFatal},
		{&provider.RPCError{Code: -32000, Message: "header not found"}, ActionRetry},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ClassifyError(tt.err), "%v", tt.err)
	}
}

type scripted struct {
	name  string
	errs  []error
	calls int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Call(context.Context, string, []any) (json.RawMessage, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return json.RawMessage(`"0x"`), nil
}

func (s *scripted) Health() provider.HealthStatus { return provider.HealthStatus{Available: true} }
func (s *scripted) Close() error                  { return nil }

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestCallWithRetry(t *testing.T) {
	p := &scripted{name: "a", errs: []error{errors.New("timeout"), errors.New("timeout")}}
	result, err := CallWithRetry(context.Background(), p, "eth_getCode", nil, fastRetry)
	require.NoError(t, err)
	assert.Equal(t, `"0x"`, string(result))
	assert.Equal(t, 3, p.calls)

	p = &scripted{name: "b", errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")}}
	_, err = CallWithRetry(context.Background(), p, "eth_getCode", nil, fastRetry)
	assert.EqualError(t, err, "timeout")
	assert.Equal(t, 3, p.calls)

	p = &scripted{name: "c", errs: []error{&provider.RPCError{Code: -32602, Message: "invalid params"}}}
	_, err = CallWithRetry(context.Background(), p, "eth_getCode", nil, fastRetry)
	assert.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestCallWithFailover(t *testing.T) {
	limited := &scripted{name: "limited", errs: []error{&provider.StatusError{StatusCode: 429}}}
	healthy := &scripted{name: "healthy"}

	_, err := CallWithFailover(context.Background(), []provider.Provider{limited, healthy}, "eth_getCode", nil, fastRetry)
	require.NoError(t, err)
	assert.Equal(t, 1, limited.calls)
	assert.Equal(t, 1, healthy.calls)

	broken := &scripted{name: "broken", errs: []error{&provider.RPCError{Code: -32601, Message: "method not found"}}}
	untouched := &scripted{name: "untouched"}
	_, err = CallWithFailover(context.Background(), []provider.Provider{broken, untouched}, "eth_nope", nil, fastRetry)
	assert.ErrorContains(t, err, "fatal error from provider broken")
	assert.Zero(t, untouched.calls)

	_, err = CallWithFailover(context.Background(), nil, "eth_getCode", nil, fastRetry)
	assert.Error(t, err)
}
