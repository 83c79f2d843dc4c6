package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/units"
)

var errNoCaller = errors.New("unauthenticated")

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func addrParam(r *http.Request, name string) (common.Address, error) {
	return parseAddress(name, chi.URLParam(r, name))
}

func hashParam(r *http.Request, name string) (common.Hash, error) {
	b, err := hexutil.Decode(chi.URLParam(r, name))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid %s", name)
	}
	return common.BytesToHash(b), nil
}

func roleParam(r *http.Request) (domain.Role, error) {
	role, ok := domain.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		return "", fmt.Errorf("unknown role %q", chi.URLParam(r, "role"))
	}
	return role, nil
}

// parseAmount accepts a wei integer or an ether value with an "eth" suffix.
func parseAmount(name, s string) (*uint256.Int, error) {
	v, err := units.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}
