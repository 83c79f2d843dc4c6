package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type contextKey struct{}

var callerContextKey = contextKey{}

func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFrom returns the authenticated caller of the request.
func CallerFrom(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerContextKey).(common.Address)
	return caller, ok
}
