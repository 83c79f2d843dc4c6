// Package evm answers code lookups against an EVM node.
package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 8192

// Caller is the JSON-RPC surface the oracle needs.
type Caller interface {
	Call(ctx context.Context, out any, method string, params ...any) error
}

// Oracle implements the engine's code oracle with eth_getCode.
type Oracle struct {
	client Caller
	cache  *lru.Cache[common.Address, struct{}]
}

func NewOracle(client Caller, cacheSize int) (*Oracle, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[common.Address, struct{}](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Oracle{client: client, cache: cache}, nil
}

// IsContract reports whether addr has code at the latest block. Only
// addresses with code are cached; an empty account can still be deployed to.
func (o *Oracle) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	if o.cache.Contains(addr) {
		return true, nil
	}
	var code hexutil.Bytes
	if err := o.client.Call(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return false, fmt.Errorf("get code of %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		return false, nil
	}
	o.cache.Add(addr, struct{}{})
	return true, nil
}
