package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/infra/rpc/routing"
)

var testRetry = routing.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestClientFailsOverToHealthyEndpoint(t *testing.T) {
	var downCalls atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downCalls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x1"})
	}))
	defer up.Close()

	client, err := Dial([]string{down.URL, up.URL}, time.Second, testRetry)
	require.NoError(t, err)
	defer client.Close()

	var chainID string
	require.NoError(t, client.Call(context.Background(), &chainID, "eth_chainId"))
	assert.Equal(t, "0x1", chainID)
	assert.Equal(t, int32(2), downCalls.Load())

	health := client.Health()
	assert.Equal(t, 1.0, health["rpc-0"].ErrorRate)
	assert.True(t, health["rpc-1"].Available)
}

func TestClientDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"not":"a string"}}`))
	}))
	defer srv.Close()

	client, err := Dial([]string{srv.URL}, time.Second, testRetry)
	require.NoError(t, err)

	var out string
	err = client.Call(context.Background(), &out, "eth_getCode", "0x00", "latest")
	assert.ErrorContains(t, err, "eth_getCode: decode result")
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(nil, time.Second, testRetry)
	assert.Error(t, err)
}
