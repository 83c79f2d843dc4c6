// Package recovery implements the guardian-approved ownership transfer.
//
// A wallet has at most one live request. It starts INITIATED with the
// initiator's approval, collects further approvals while unexpired, and ends
// EXECUTED once the recorded quorum is met. Expired requests can be replaced
// by a fresh initiation.
package recovery

import (
	"errors"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	ErrNoActiveRecovery       = errors.New("NoActiveRecovery")
	ErrRecoveryAlreadyActive  = errors.New("RecoveryAlreadyActive")
	ErrAlreadyApproved        = errors.New("AlreadyApproved")
	ErrRecoveryExpired        = errors.New("RecoveryExpired")
	ErrInsufficientGuardians  = errors.New("InsufficientGuardians")
	ErrNewOwnerIsCurrentOwner = errors.New("NewOwnerIsCurrentOwner")
)

// Process stores the latest request of each wallet.
type Process struct {
	requests map[common.Address]*domain.RecoveryRequest
}

func New() *Process {
	return &Process{requests: make(map[common.Address]*domain.RecoveryRequest)}
}

func clone(r *domain.RecoveryRequest) *domain.RecoveryRequest {
	c := *r
	c.Approvals = append([]common.Address(nil), r.Approvals...)
	return &c
}

func (p *Process) put(wallet common.Address, r *domain.RecoveryRequest) func() {
	prev, had := p.requests[wallet]
	p.requests[wallet] = r
	return func() {
		if had {
			p.requests[wallet] = prev
		} else {
			delete(p.requests, wallet)
		}
	}
}

// Get returns a copy of the wallet's latest request, or nil.
func (p *Process) Get(wallet common.Address) *domain.RecoveryRequest {
	r, ok := p.requests[wallet]
	if !ok {
		return nil
	}
	return clone(r)
}

// Initiate opens a request approved by initiator. Fails while another request
// is still collecting approvals.
func (p *Process) Initiate(wallet, newOwner, initiator common.Address, quorum int, delay time.Duration, now int64) (*domain.RecoveryRequest, func(), error) {
	if cur, ok := p.requests[wallet]; ok && cur.Active(now) {
		return nil, nil, ErrRecoveryAlreadyActive
	}
	req := &domain.RecoveryRequest{
		WalletID:    wallet,
		NewOwner:    newOwner,
		InitiatedBy: initiator,
		InitiatedAt: now,
		ExpiresAt:   now + int64(delay/time.Second),
		Quorum:      quorum,
		Approvals:   []common.Address{initiator},
	}
	return clone(req), p.put(wallet, req), nil
}

// Approve records guardian's approval. The caller executes the request when
// the returned copy has reached its quorum.
func (p *Process) Approve(wallet, guardian common.Address, now int64) (*domain.RecoveryRequest, func(), error) {
	cur, ok := p.requests[wallet]
	if !ok || cur.Executed || cur.Cancelled {
		return nil, nil, ErrNoActiveRecovery
	}
	if cur.Expired(now) {
		return nil, nil, ErrRecoveryExpired
	}
	if mapset.NewThreadUnsafeSet(cur.Approvals...).Contains(guardian) {
		return nil, nil, ErrAlreadyApproved
	}
	next := clone(cur)
	next.Approvals = append(next.Approvals, guardian)
	return clone(next), p.put(wallet, next), nil
}

// QuorumReached reports whether r has enough approvals to execute.
func QuorumReached(r *domain.RecoveryRequest) bool {
	return r.ApprovalsCount() >= r.Quorum
}

// Execute marks the wallet's request executed.
func (p *Process) Execute(wallet common.Address, now int64) func() {
	next := clone(p.requests[wallet])
	next.Executed = true
	next.ExecutedAt = now
	return p.put(wallet, next)
}

// Cancel closes an active request.
func (p *Process) Cancel(wallet common.Address, now int64) (*domain.RecoveryRequest, func(), error) {
	cur, ok := p.requests[wallet]
	if !ok || !cur.Active(now) {
		return nil, nil, ErrNoActiveRecovery
	}
	next := clone(cur)
	next.Cancelled = true
	return clone(next), p.put(wallet, next), nil
}

// Withdraw drops guardian's approval from an active request. It reports
// whether an approval was removed.
func (p *Process) Withdraw(wallet, guardian common.Address, now int64) (bool, func()) {
	cur, ok := p.requests[wallet]
	if !ok || !cur.Active(now) {
		return false, func() {}
	}
	approvals := mapset.NewThreadUnsafeSet(cur.Approvals...)
	if !approvals.Contains(guardian) {
		return false, func() {}
	}
	next := clone(cur)
	next.Approvals = next.Approvals[:0]
	for _, a := range cur.Approvals {
		if a != guardian {
			next.Approvals = append(next.Approvals, a)
		}
	}
	return true, p.put(wallet, next)
}

// ActiveCount is the number of requests collecting approvals at now.
func (p *Process) ActiveCount(now int64) int {
	n := 0
	for _, r := range p.requests {
		if r.Active(now) {
			n++
		}
	}
	return n
}

// All exports every stored request in wallet order.
func (p *Process) All() []*domain.RecoveryRequest {
	ids := make([]common.Address, 0, len(p.requests))
	for id := range p.requests {
		ids = append(ids, id)
	}
	domain.SortAddresses(ids)
	out := make([]*domain.RecoveryRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(p.requests[id]))
	}
	return out
}

// Restore replaces all requests.
func (p *Process) Restore(reqs []*domain.RecoveryRequest) {
	p.requests = make(map[common.Address]*domain.RecoveryRequest, len(reqs))
	for _, r := range reqs {
		p.requests[r.WalletID] = clone(r)
	}
}
