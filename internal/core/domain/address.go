package domain

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the null account.
var ZeroAddress = common.Address{}

// SortAddresses sorts addrs in ascending byte order, in place, and returns it.
func SortAddresses(addrs []common.Address) []common.Address {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}
