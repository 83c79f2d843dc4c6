// Package guardian keeps the per-wallet guardian sets used for social recovery.
package guardian

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	ErrGuardianIsOwner       = errors.New("GuardianIsOwner")
	ErrGuardianIsBlacklisted = errors.New("GuardianIsBlacklisted")
	ErrGuardianAlreadyExists = errors.New("GuardianAlreadyExists")
	ErrMaxGuardiansReached   = errors.New("MaxGuardiansReached")
	ErrGuardianNotFound      = errors.New("GuardianNotFound")
)

// Registry maps wallet id to its guardian set.
type Registry struct {
	sets map[common.Address]mapset.Set[common.Address]
}

func New() *Registry {
	return &Registry{sets: make(map[common.Address]mapset.Set[common.Address])}
}

// Add validates and inserts g into the wallet's set. Checks run in order:
// owner, blacklist, duplicate, capacity.
func (r *Registry) Add(wallet, owner, g common.Address, blacklisted bool, limit int) (func(), error) {
	switch {
	case g == owner:
		return nil, ErrGuardianIsOwner
	case blacklisted:
		return nil, ErrGuardianIsBlacklisted
	case r.Is(wallet, g):
		return nil, ErrGuardianAlreadyExists
	case r.Count(wallet) >= limit:
		return nil, ErrMaxGuardiansReached
	}
	set, ok := r.sets[wallet]
	if !ok {
		set = mapset.NewThreadUnsafeSet[common.Address]()
		r.sets[wallet] = set
	}
	set.Add(g)
	return func() { set.Remove(g) }, nil
}

// Remove deletes g from the wallet's set.
func (r *Registry) Remove(wallet, g common.Address) (func(), error) {
	if !r.Is(wallet, g) {
		return nil, ErrGuardianNotFound
	}
	set := r.sets[wallet]
	set.Remove(g)
	return func() { set.Add(g) }, nil
}

func (r *Registry) Is(wallet, addr common.Address) bool {
	set, ok := r.sets[wallet]
	return ok && set.Contains(addr)
}

func (r *Registry) Count(wallet common.Address) int {
	if set, ok := r.sets[wallet]; ok {
		return set.Cardinality()
	}
	return 0
}

// List returns the wallet's guardians in address order.
func (r *Registry) List(wallet common.Address) []common.Address {
	set, ok := r.sets[wallet]
	if !ok {
		return []common.Address{}
	}
	return domain.SortAddresses(set.ToSlice())
}

// Snapshot exports every non-empty set.
func (r *Registry) Snapshot() map[common.Address][]common.Address {
	out := make(map[common.Address][]common.Address, len(r.sets))
	for w, set := range r.sets {
		if set.Cardinality() > 0 {
			out[w] = domain.SortAddresses(set.ToSlice())
		}
	}
	return out
}

// Restore replaces every set.
func (r *Registry) Restore(sets map[common.Address][]common.Address) {
	r.sets = make(map[common.Address]mapset.Set[common.Address], len(sets))
	for w, members := range sets {
		r.sets[w] = mapset.NewThreadUnsafeSet(members...)
	}
}
