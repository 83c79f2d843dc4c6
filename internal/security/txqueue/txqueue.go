// Package txqueue holds oversized transfers until their delay has elapsed.
package txqueue

import (
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	ErrNotFound        = errors.New("QueuedTransactionNotFound")
	ErrAlreadyQueued   = errors.New("TransactionAlreadyQueued")
	ErrAlreadyExecuted = errors.New("AlreadyExecuted")
	ErrCancelled       = errors.New("TransactionCancelled")
	ErrNotReady        = errors.New("TransactionNotReady")
)

// Hash derives the queue key: keccak256(from ‖ to ‖ amount ‖ token ‖ timestamp),
// with amount and timestamp as 32-byte big-endian words.
func Hash(from, to common.Address, amount *uint256.Int, token common.Address, timestamp int64) common.Hash {
	ts := uint256.NewInt(uint64(timestamp)).Bytes32()
	amt := amount.Bytes32()

	h := sha3.NewLegacyKeccak256()
	h.Write(from[:])
	h.Write(to[:])
	h.Write(amt[:])
	h.Write(token[:])
	h.Write(ts[:])
	return common.BytesToHash(h.Sum(nil))
}

// Queue stores queued transactions by hash. Executed and cancelled entries
// are kept so that repeated confirmations report why they fail.
type Queue struct {
	txs map[common.Hash]*domain.QueuedTransaction
}

func New() *Queue {
	return &Queue{txs: make(map[common.Hash]*domain.QueuedTransaction)}
}

func (q *Queue) put(tx *domain.QueuedTransaction) func() {
	prev, had := q.txs[tx.Hash]
	q.txs[tx.Hash] = tx
	return func() {
		if had {
			q.txs[tx.Hash] = prev
		} else {
			delete(q.txs, tx.Hash)
		}
	}
}

// Enqueue stores tx. The hash must not be in use.
func (q *Queue) Enqueue(tx *domain.QueuedTransaction) (func(), error) {
	if _, ok := q.txs[tx.Hash]; ok {
		return nil, ErrAlreadyQueued
	}
	return q.put(tx.Copy()), nil
}

// Get returns a copy of the queued transaction.
func (q *Queue) Get(hash common.Hash) (*domain.QueuedTransaction, error) {
	tx, ok := q.txs[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Copy(), nil
}

// Executable returns the transaction if it may be confirmed at now.
func (q *Queue) Executable(hash common.Hash, now int64) (*domain.QueuedTransaction, error) {
	tx, err := q.Pending(hash)
	if err != nil {
		return nil, err
	}
	if !tx.Ready(now) {
		return nil, ErrNotReady
	}
	return tx, nil
}

// Pending returns the transaction if it is neither executed nor cancelled.
func (q *Queue) Pending(hash common.Hash) (*domain.QueuedTransaction, error) {
	tx, ok := q.txs[hash]
	switch {
	case !ok:
		return nil, ErrNotFound
	case tx.Executed:
		return nil, ErrAlreadyExecuted
	case tx.Cancelled:
		return nil, ErrCancelled
	}
	return tx.Copy(), nil
}

// MarkExecuted flags the transaction as executed at now.
func (q *Queue) MarkExecuted(hash common.Hash, now int64) func() {
	tx := q.txs[hash].Copy()
	tx.Executed = true
	tx.ExecutedAt = now
	return q.put(tx)
}

// MarkCancelled flags the transaction as cancelled.
func (q *Queue) MarkCancelled(hash common.Hash) func() {
	tx := q.txs[hash].Copy()
	tx.Cancelled = true
	return q.put(tx)
}

// List returns the transactions of one wallet, oldest first.
func (q *Queue) List(wallet common.Address) []*domain.QueuedTransaction {
	var out []*domain.QueuedTransaction
	for _, tx := range q.txs {
		if tx.WalletID == wallet {
			out = append(out, tx.Copy())
		}
	}
	sortQueued(out)
	return out
}

// PendingCount is the number of transactions still awaiting confirmation.
func (q *Queue) PendingCount() int {
	n := 0
	for _, tx := range q.txs {
		if !tx.Executed && !tx.Cancelled {
			n++
		}
	}
	return n
}

// All exports every transaction, oldest first.
func (q *Queue) All() []*domain.QueuedTransaction {
	out := make([]*domain.QueuedTransaction, 0, len(q.txs))
	for _, tx := range q.txs {
		out = append(out, tx.Copy())
	}
	sortQueued(out)
	return out
}

// Restore replaces the queue contents.
func (q *Queue) Restore(txs []*domain.QueuedTransaction) {
	q.txs = make(map[common.Hash]*domain.QueuedTransaction, len(txs))
	for _, tx := range txs {
		q.txs[tx.Hash] = tx.Copy()
	}
}

func sortQueued(txs []*domain.QueuedTransaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].QueuedAt != txs[j].QueuedAt {
			return txs[i].QueuedAt < txs[j].QueuedAt
		}
		return txs[i].Hash.Cmp(txs[j].Hash) < 0
	})
}
