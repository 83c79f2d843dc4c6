// Package ledger owns per-wallet core state: owner index, balance, nonce,
// limits, lock and paused functions. Mutators change a single field and
// return an undo func restoring only that field; balances are undone by delta.
package ledger

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	ErrWalletNotFound      = errors.New("WalletNotFound")
	ErrWalletAlreadyExists = errors.New("WalletAlreadyExists")
	ErrInsufficientBalance = errors.New("InsufficientBalance")
	ErrNothingToWithdraw   = errors.New("NothingToWithdraw")
)

type Ledger struct {
	wallets map[common.Address]*domain.Wallet
	owners  map[common.Address]common.Address
	stray   *uint256.Int
}

func New() *Ledger {
	return &Ledger{
		wallets: make(map[common.Address]*domain.Wallet),
		owners:  make(map[common.Address]common.Address),
		stray:   new(uint256.Int),
	}
}

// Create registers a wallet owned by owner. The id is the creating account.
func (l *Ledger) Create(owner common.Address, dailyLimit *uint256.Int, level domain.SecurityLevel, now int64) (*domain.Wallet, func(), error) {
	if _, ok := l.owners[owner]; ok {
		return nil, nil, ErrWalletAlreadyExists
	}
	id := l.freeID(owner)
	w := &domain.Wallet{
		ID:              id,
		Owner:           owner,
		Exists:          true,
		DailyLimit:      new(uint256.Int).Set(dailyLimit),
		SecurityLevel:   level,
		PausedFunctions: make(map[domain.Function]bool),
		Balance:         new(uint256.Int),
		CreatedAt:       now,
	}
	l.wallets[id] = w
	l.owners[owner] = id
	return w.Copy(), func() {
		delete(l.wallets, id)
		delete(l.owners, owner)
	}, nil
}

// freeID returns creator itself unless a wallet it lost through recovery
// still carries that id; then it derives keccak256(creator ‖ n)[12:].
func (l *Ledger) freeID(creator common.Address) common.Address {
	if _, taken := l.wallets[creator]; !taken {
		return creator
	}
	var n [8]byte
	for i := uint64(1); ; i++ {
		binary.BigEndian.PutUint64(n[:], i)
		h := sha3.NewLegacyKeccak256()
		h.Write(creator[:])
		h.Write(n[:])
		id := common.BytesToAddress(h.Sum(nil)[12:])
		if _, taken := l.wallets[id]; !taken {
			return id
		}
	}
}

// Resolve maps a current owner to its wallet id.
func (l *Ledger) Resolve(owner common.Address) (common.Address, error) {
	id, ok := l.owners[owner]
	if !ok {
		return common.Address{}, ErrWalletNotFound
	}
	return id, nil
}

// HasWallet reports whether addr currently owns a wallet.
func (l *Ledger) HasWallet(addr common.Address) bool {
	_, ok := l.owners[addr]
	return ok
}

// ByOwner returns a copy of the wallet owned by owner.
func (l *Ledger) ByOwner(owner common.Address) (*domain.Wallet, error) {
	id, err := l.Resolve(owner)
	if err != nil {
		return nil, err
	}
	return l.Get(id)
}

// Get returns a copy of the wallet with the given id.
func (l *Ledger) Get(id common.Address) (*domain.Wallet, error) {
	w, ok := l.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return w.Copy(), nil
}

func (l *Ledger) Count() int { return len(l.wallets) }

func (l *Ledger) SetLocked(id common.Address, locked bool) func() {
	w := l.wallets[id]
	prev := w.Locked
	w.Locked = locked
	return func() { w.Locked = prev }
}

func (l *Ledger) SetFunctionPaused(id common.Address, fn domain.Function, paused bool) func() {
	w := l.wallets[id]
	prev := w.PausedFunctions[fn]
	set := func(v bool) {
		if v {
			w.PausedFunctions[fn] = true
		} else {
			delete(w.PausedFunctions, fn)
		}
	}
	set(paused)
	return func() { set(prev) }
}

func (l *Ledger) SetSecurityLevel(id common.Address, level domain.SecurityLevel) func() {
	w := l.wallets[id]
	prev := w.SecurityLevel
	w.SecurityLevel = level
	return func() { w.SecurityLevel = prev }
}

func (l *Ledger) SetDailyLimit(id common.Address, limit *uint256.Int) func() {
	w := l.wallets[id]
	prev := w.DailyLimit
	w.DailyLimit = new(uint256.Int).Set(limit)
	return func() { w.DailyLimit = prev }
}

// IncrementNonce bumps the replay counter.
func (l *Ledger) IncrementNonce(id common.Address) func() {
	w := l.wallets[id]
	w.Nonce++
	return func() { w.Nonce-- }
}

// Credit adds amount to the wallet balance.
func (l *Ledger) Credit(id common.Address, amount *uint256.Int) func() {
	w := l.wallets[id]
	delta := new(uint256.Int).Set(amount)
	w.Balance = new(uint256.Int).Add(w.Balance, delta)
	return func() { w.Balance = new(uint256.Int).Sub(w.Balance, delta) }
}

// Debit removes amount from the wallet balance.
func (l *Ledger) Debit(id common.Address, amount *uint256.Int) (func(), error) {
	w := l.wallets[id]
	if w.Balance.Lt(amount) {
		return nil, ErrInsufficientBalance
	}
	delta := new(uint256.Int).Set(amount)
	w.Balance = new(uint256.Int).Sub(w.Balance, delta)
	return func() { w.Balance = new(uint256.Int).Add(w.Balance, delta) }, nil
}

// SetOwner moves a wallet to newOwner and rewrites the owner index.
func (l *Ledger) SetOwner(id, newOwner common.Address) (func(), error) {
	if _, taken := l.owners[newOwner]; taken {
		return nil, ErrWalletAlreadyExists
	}
	w := l.wallets[id]
	prev := w.Owner
	delete(l.owners, prev)
	l.owners[newOwner] = id
	w.Owner = newOwner
	return func() {
		delete(l.owners, newOwner)
		l.owners[prev] = id
		w.Owner = prev
	}, nil
}

// AddStray books value received by the engine outside any wallet.
func (l *Ledger) AddStray(amount *uint256.Int) func() {
	delta := new(uint256.Int).Set(amount)
	l.stray = new(uint256.Int).Add(l.stray, delta)
	return func() { l.stray = new(uint256.Int).Sub(l.stray, delta) }
}

// TakeStray zeroes the stray balance and returns what it held.
func (l *Ledger) TakeStray() (*uint256.Int, func(), error) {
	if l.stray.IsZero() {
		return nil, nil, ErrNothingToWithdraw
	}
	taken := l.stray
	l.stray = new(uint256.Int)
	return new(uint256.Int).Set(taken), func() {
		l.stray = new(uint256.Int).Add(l.stray, taken)
	}, nil
}

func (l *Ledger) Stray() *uint256.Int { return new(uint256.Int).Set(l.stray) }

// TotalBalance sums every wallet balance.
func (l *Ledger) TotalBalance() *uint256.Int {
	total := new(uint256.Int)
	for _, w := range l.wallets {
		total.Add(total, w.Balance)
	}
	return total
}

// Wallets exports copies of every wallet in id order.
func (l *Ledger) Wallets() []*domain.Wallet {
	ids := make([]common.Address, 0, len(l.wallets))
	for id := range l.wallets {
		ids = append(ids, id)
	}
	domain.SortAddresses(ids)
	out := make([]*domain.Wallet, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.wallets[id].Copy())
	}
	return out
}

// Restore replaces the ledger contents and rebuilds the owner index.
func (l *Ledger) Restore(wallets []*domain.Wallet, stray *uint256.Int) {
	l.wallets = make(map[common.Address]*domain.Wallet, len(wallets))
	l.owners = make(map[common.Address]common.Address, len(wallets))
	for _, w := range wallets {
		c := w.Copy()
		l.wallets[c.ID] = c
		l.owners[c.Owner] = c.ID
	}
	l.stray = new(uint256.Int)
	if stray != nil {
		l.stray.Set(stray)
	}
}
