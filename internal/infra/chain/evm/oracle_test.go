package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/infra/rpc"
	"github.com/vietddude/walletguard/internal/infra/rpc/routing"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000c0de0001")
	userAddr     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

func newNode(t *testing.T, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_getCode", req.Method)
		require.Len(t, req.Params, 2)

		code := "0x"
		if strings.EqualFold(strings.Trim(string(req.Params[0]), `"`), contractAddr.Hex()) {
			code = "0x6080604052"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": code})
	}))
}

func TestOracle(t *testing.T) {
	var calls atomic.Int32
	node := newNode(t, &calls)
	defer node.Close()

	client, err := rpc.Dial([]string{node.URL}, time.Second, routing.DefaultRetryConfig)
	require.NoError(t, err)
	oracle, err := NewOracle(client, 16)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := oracle.IsContract(ctx, contractAddr)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = oracle.IsContract(ctx, contractAddr)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	ok, err = oracle.IsContract(ctx, userAddr)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = oracle.IsContract(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOracleError(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid argument"}}`))
	}))
	defer node.Close()

	client, err := rpc.Dial([]string{node.URL}, time.Second, routing.DefaultRetryConfig)
	require.NoError(t, err)
	oracle, err := NewOracle(client, 0)
	require.NoError(t, err)

	_, err = oracle.IsContract(context.Background(), userAddr)
	assert.ErrorContains(t, err, "invalid argument")
}
