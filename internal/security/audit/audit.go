// Package audit replays the security event stream and reports sequences the
// engine should never have produced.
package audit

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
)

// DefaultViolationThreshold is the number of integrity violations by one actor
// that raises a finding.
const DefaultViolationThreshold = 3

type Kind string

const (
	KindLevelDecrease       Kind = "security_level_decrease"
	KindNonceRegression     Kind = "nonce_regression"
	KindRecoveryBelowQuorum Kind = "recovery_below_quorum"
	KindRepeatedViolations  Kind = "repeated_integrity_violations"
	KindTransferWhileLocked Kind = "transfer_while_locked"
)

// Finding is one suspicious observation.
type Finding struct {
	Kind      Kind           `json:"kind"`
	Wallet    common.Address `json:"wallet"`
	Actor     common.Address `json:"actor"`
	EventID   string         `json:"event_id"`
	Timestamp int64          `json:"timestamp"`
	Detail    string         `json:"detail"`
}

// Checker keeps the per-wallet state needed to judge each event. It is not
// safe for concurrent use.
type Checker struct {
	threshold  int
	levels     map[common.Address]int
	nonces     map[common.Address]uint64
	locked     map[common.Address]bool
	quorums    map[common.Address]int
	violations map[common.Address]int
	findings   []Finding
}

// NewChecker returns a checker flagging actors at threshold integrity
// violations. threshold <= 0 uses DefaultViolationThreshold.
func NewChecker(threshold int) *Checker {
	if threshold <= 0 {
		threshold = DefaultViolationThreshold
	}
	return &Checker{
		threshold:  threshold,
		levels:     make(map[common.Address]int),
		nonces:     make(map[common.Address]uint64),
		locked:     make(map[common.Address]bool),
		quorums:    make(map[common.Address]int),
		violations: make(map[common.Address]int),
	}
}

// Check runs a fresh checker over events.
func Check(events []*domain.SecurityEvent, threshold int) []Finding {
	c := NewChecker(threshold)
	for _, ev := range events {
		c.Observe(ev)
	}
	return c.Findings()
}

// Findings returns everything reported so far.
func (c *Checker) Findings() []Finding {
	return append([]Finding(nil), c.findings...)
}

// Observe feeds one event and returns the findings it raised.
func (c *Checker) Observe(ev *domain.SecurityEvent) []Finding {
	before := len(c.findings)
	switch ev.Type {
	case domain.EventWalletCreated:
		if l, ok := intDetail(ev, "security_level"); ok {
			c.levels[ev.Wallet] = l
		}
	case domain.EventSecurityLevelUpdated:
		c.observeLevel(ev)
	case domain.EventWalletLocked:
		c.locked[ev.Wallet] = true
	case domain.EventWalletUnlocked:
		delete(c.locked, ev.Wallet)
	case domain.EventTransferExecuted, domain.EventTransferQueued:
		c.observeLocked(ev)
		c.observeNonce(ev)
	case domain.EventQueuedTxExecuted:
		c.observeLocked(ev)
	case domain.EventRecoveryInitiated:
		if q, ok := intDetail(ev, "quorum"); ok {
			c.quorums[ev.Wallet] = q
		}
	case domain.EventRecoveryExecuted:
		c.observeRecovery(ev)
	case domain.EventRecoveryCancelled:
		delete(c.quorums, ev.Wallet)
	case domain.EventIntegrityViolation:
		c.violations[ev.Actor]++
		if c.violations[ev.Actor] == c.threshold {
			c.report(KindRepeatedViolations, ev, fmt.Sprintf("%d integrity violations", c.threshold))
		}
	}
	return append([]Finding(nil), c.findings[before:]...)
}

func (c *Checker) observeLevel(ev *domain.SecurityEvent) {
	to, ok := intDetail(ev, "to")
	if !ok {
		return
	}
	prev, known := c.levels[ev.Wallet]
	if from, ok := intDetail(ev, "from"); ok && (!known || from > prev) {
		prev, known = from, true
	}
	if known && to < prev {
		c.report(KindLevelDecrease, ev, fmt.Sprintf("level %d -> %d", prev, to))
	}
	c.levels[ev.Wallet] = to
}

func (c *Checker) observeNonce(ev *domain.SecurityEvent) {
	raw, ok := ev.Details["nonce"]
	if !ok {
		return
	}
	nonce, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	if last, seen := c.nonces[ev.Wallet]; seen && nonce <= last {
		c.report(KindNonceRegression, ev, fmt.Sprintf("nonce %d after %d", nonce, last))
		return
	}
	c.nonces[ev.Wallet] = nonce
}

func (c *Checker) observeLocked(ev *domain.SecurityEvent) {
	if c.locked[ev.Wallet] {
		c.report(KindTransferWhileLocked, ev, string(ev.Type))
	}
}

func (c *Checker) observeRecovery(ev *domain.SecurityEvent) {
	approvals, ok := intDetail(ev, "approvals")
	if !ok {
		return
	}
	quorum, _ := intDetail(ev, "quorum")
	if recorded, ok := c.quorums[ev.Wallet]; ok && recorded > quorum {
		quorum = recorded
	}
	if approvals < quorum {
		c.report(KindRecoveryBelowQuorum, ev, fmt.Sprintf("%d approvals, quorum %d", approvals, quorum))
	}
	delete(c.quorums, ev.Wallet)
}

func (c *Checker) report(kind Kind, ev *domain.SecurityEvent, detail string) {
	c.findings = append(c.findings, Finding{
		Kind:      kind,
		Wallet:    ev.Wallet,
		Actor:     ev.Actor,
		EventID:   ev.ID,
		Timestamp: ev.Timestamp,
		Detail:    detail,
	})
}

func intDetail(ev *domain.SecurityEvent, key string) (int, bool) {
	v, err := strconv.Atoi(ev.Details[key])
	return v, err == nil
}
