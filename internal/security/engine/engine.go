// Package engine is the wallet security engine: it composes access control,
// the wallet ledger, rate limiting, the transaction queue, guardians and
// recovery behind one serialized call surface.
//
// Every operation runs under the engine mutex and records an undo entry for
// each mutation. A failing operation replays its undo entries in reverse, so
// callers observe either the whole effect or none of it. Calls out to the host
// (native delivery, token pulls) release the mutex while the wallets the
// operation entered stay held: nothing else reads or writes a held wallet
// until the operation commits or reverts. Calls made from inside a host
// callback fail on a held wallet with ErrReentrantCall; other callers wait.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/access"
	"github.com/vietddude/walletguard/internal/security/guardian"
	"github.com/vietddude/walletguard/internal/security/ledger"
	"github.com/vietddude/walletguard/internal/security/policy"
	"github.com/vietddude/walletguard/internal/security/ratelimit"
	"github.com/vietddude/walletguard/internal/security/recovery"
	"github.com/vietddude/walletguard/internal/security/signer"
	"github.com/vietddude/walletguard/internal/security/txqueue"
)

const defaultSignerCacheSize = 4096

// Config wires the engine to its host.
type Config struct {
	// Self is the engine's own account; it is the spender of token allowances
	// and the sender of native deliveries.
	Self     common.Address
	Policy   *policy.Policy
	Clock    Clock
	Oracle   CodeOracle
	Host     Host
	Tokens   TokenLedger
	Sink     Sink
	Observer Observer
	// Faucet is set when the host is simulated.
	Faucet Faucet

	SignerCacheSize int
}

// Receipt is the result of a committed operation.
type Receipt struct {
	Events   []*domain.SecurityEvent   `json:"events"`
	QueuedTx *domain.QueuedTransaction `json:"queued_tx,omitempty"`
}

type Engine struct {
	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
	entered  map[common.Address]*call

	self     common.Address
	policy   *policy.Policy
	clock    Clock
	oracle   CodeOracle
	host     Host
	tokens   TokenLedger
	sink     Sink
	observer Observer
	faucet   Faucet
	verifier *signer.Verifier

	global     *access.State
	wallets    *ledger.Ledger
	limiter    *ratelimit.Limiter
	queue      *txqueue.Queue
	guardians  *guardian.Registry
	recoveries *recovery.Process
}

// New builds an empty, uninitialized engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Host == nil {
		return nil, errors.New("engine: host is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("engine: token ledger is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Oracle == nil {
		cfg.Oracle = nopOracle{}
	}
	if cfg.SignerCacheSize <= 0 {
		cfg.SignerCacheSize = defaultSignerCacheSize
	}
	verifier, err := signer.NewVerifier(cfg.SignerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("signer cache: %w", err)
	}

	e := &Engine{
		entered:    make(map[common.Address]*call),
		self:       cfg.Self,
		policy:     cfg.Policy,
		clock:      cfg.Clock,
		oracle:     cfg.Oracle,
		host:       cfg.Host,
		tokens:     cfg.Tokens,
		sink:       cfg.Sink,
		observer:   cfg.Observer,
		faucet:     cfg.Faucet,
		verifier:   verifier,
		global:     access.NewState(),
		wallets:    ledger.New(),
		limiter:    ratelimit.New(),
		queue:      txqueue.New(),
		guardians:  guardian.New(),
		recoveries: recovery.New(),
	}
	e.idle = sync.NewCond(&e.mu)
	return e, nil
}

// Policy returns the limit profiles the engine enforces.
func (e *Engine) Policy() *policy.Policy { return e.policy }

// Self returns the engine account.
func (e *Engine) Self() common.Address { return e.self }

// call is one in-progress operation. It holds the engine mutex except while
// inside external.
type call struct {
	e       *Engine
	ctx     context.Context
	op      string
	caller  common.Address
	now     int64
	wallet  common.Address
	undo    []func()
	guarded []common.Address
	events  []*domain.SecurityEvent
	queued  *domain.QueuedTransaction
}

// hostCallKey marks the context handed to the host, so engine calls made
// from a host callback can be told apart from concurrent callers.
type hostCallKey struct{}

// walletBusy reports a wallet held by another operation. It only escapes fn
// when the call has done nothing yet and may wait for the wallet.
type walletBusy struct {
	wallet common.Address
}

func (walletBusy) Error() string { return "wallet busy" }

// do runs fn as one operation. An operation that found its wallet held by a
// concurrent one waits for it to finish and starts over.
func (e *Engine) do(ctx context.Context, op string, caller common.Address, fn func(c *call) error) (*Receipt, error) {
	e.mu.Lock()
	for {
		c := &call{
			e:      e,
			ctx:    ctx,
			op:     op,
			caller: caller,
			now:    e.clock.Now().Unix(),
		}
		err := fn(c)
		var busy walletBusy
		if !errors.As(err, &busy) {
			return c.finish(err)
		}
		c.release()
		for e.entered[busy.wallet] != nil {
			e.idle.Wait()
		}
	}
}

func (c *call) record(undo func()) {
	c.undo = append(c.undo, undo)
}

func (c *call) emit(typ domain.EventType, wallet common.Address, details map[string]string) {
	c.events = append(c.events, &domain.SecurityEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Wallet:    wallet,
		Actor:     c.caller,
		Details:   details,
		Timestamp: c.now,
	})
}

// fromHost reports whether the call was made from inside a host callback.
func (c *call) fromHost() bool {
	return c.ctx.Value(hostCallKey{}) != nil
}

// enter holds wallet for the rest of the call. A wallet already held by
// another operation is a reentrant call when reached from a host callback or
// after this call changed anything; otherwise the call waits its turn.
func (c *call) enter(wallet common.Address) error {
	c.wallet = wallet
	holder := c.e.entered[wallet]
	switch {
	case holder == c:
		return nil
	case holder == nil:
		c.e.entered[wallet] = c
		c.guarded = append(c.guarded, wallet)
		return nil
	case c.fromHost() || len(c.undo) > 0 || len(c.guarded) > 0 || len(c.events) > 0:
		return ErrReentrantCall
	}
	return walletBusy{wallet: wallet}
}

// release lets go of every wallet the call holds.
func (c *call) release() {
	for _, w := range c.guarded {
		delete(c.e.entered, w)
	}
	if len(c.guarded) > 0 {
		c.e.idle.Broadcast()
	}
	c.guarded = nil
}

// external runs fn with the engine mutex released. fn receives a context
// marked as a host call.
func (c *call) external(fn func(ctx context.Context) error) error {
	e := c.e
	ctx := context.WithValue(c.ctx, hostCallKey{}, c.op)
	e.inflight++
	e.mu.Unlock()
	err := fn(ctx)
	e.mu.Lock()
	e.inflight--
	if e.inflight == 0 {
		e.idle.Broadcast()
	}
	return err
}

// collect pulls amount from the caller into the engine account. It must be
// the last step that can fail.
func (c *call) collect(amount *uint256.Int) error {
	if err := c.external(func(ctx context.Context) error {
		return c.e.host.Collect(ctx, c.caller, c.e.self, amount)
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrExternalCallFailed, err)
	}
	return nil
}

// callerIsContract asks the code oracle about the caller outside the mutex.
func (c *call) callerIsContract() (bool, error) {
	var contract bool
	err := c.external(func(ctx context.Context) error {
		var err error
		contract, err = c.e.oracle.IsContract(ctx, c.caller)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("code oracle: %w", err)
	}
	return contract, nil
}

// finish commits or reverts the call, releases the mutex and publishes events.
func (c *call) finish(err error) (*Receipt, error) {
	e := c.e
	var violation *domain.SecurityEvent
	if err != nil {
		for i := len(c.undo) - 1; i >= 0; i-- {
			c.undo[i]()
		}
		c.events = nil
		c.queued = nil
		if Classify(err) == CategoryIntegrity {
			c.emit(domain.EventIntegrityViolation, c.wallet, map[string]string{
				"operation": c.op,
				"error":     err.Error(),
			})
			violation = c.events[0]
			c.events = nil
		}
	}
	c.release()
	pending, active := e.queue.PendingCount(), e.recoveries.ActiveCount(c.now)
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.OperationDone(c.op, err)
		e.observer.StateChanged(pending, active)
	}
	if err != nil {
		if violation != nil {
			slog.Warn("Integrity violation",
				"operation", c.op,
				"caller", c.caller.Hex(),
				"wallet", c.wallet.Hex(),
				"error", err,
			)
			e.publish(c.ctx, []*domain.SecurityEvent{violation})
		}
		return nil, err
	}
	e.publish(c.ctx, c.events)
	return &Receipt{Events: c.events, QueuedTx: c.queued}, nil
}

func (e *Engine) publish(ctx context.Context, events []*domain.SecurityEvent) {
	if e.sink == nil || len(events) == 0 {
		return
	}
	if err := e.sink.EmitBatch(ctx, events); err != nil {
		slog.Error("Failed to emit security events", "count", len(events), "error", err)
	}
}

// openWallet resolves owner's wallet and runs the shared entry checks in
// order: reentrancy guard, global pause (when pausable), existence, lock,
// function pause. fn may be empty.
func (c *call) openWallet(owner common.Address, fn domain.Function, pausable bool) (*domain.Wallet, error) {
	id, resolveErr := c.e.wallets.Resolve(owner)
	if resolveErr == nil {
		if err := c.enter(id); err != nil {
			return nil, err
		}
	}
	if pausable {
		if err := c.e.global.RequireNotPaused(); err != nil {
			return nil, err
		}
	}
	if resolveErr != nil {
		return nil, resolveErr
	}
	w, err := c.e.wallets.Get(id)
	if err != nil {
		return nil, err
	}
	if w.Locked {
		return nil, ErrWalletLocked
	}
	if fn != "" && w.IsPaused(fn) {
		return nil, ErrFunctionPaused
	}
	return w, nil
}

func (c *call) config(w *domain.Wallet) domain.SecurityConfig {
	return c.e.policy.MustConfig(w.SecurityLevel)
}

func amountDetail(a *uint256.Int) string {
	return a.Dec()
}

// Snapshot exports the full engine state. It waits for in-flight external
// calls so that no half-applied operation is captured.
func (e *Engine) Snapshot() *domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
	snap := &domain.Snapshot{
		Version:    domain.SnapshotVersion,
		TakenAt:    e.clock.Now().Unix(),
		Global:     e.global.Snapshot(),
		Wallets:    e.wallets.Wallets(),
		Guardians:  e.guardians.Snapshot(),
		Recoveries: e.recoveries.All(),
		Windows:    e.limiter.Windows(),
		Queue:      e.queue.All(),
		Stray:      e.wallets.Stray(),
	}
	if e.faucet != nil {
		snap.Host = e.faucet.ExportState()
	}
	return snap
}

// Restore replaces the engine state with snap.
func (e *Engine) Restore(snap *domain.Snapshot) error {
	if snap.Version != domain.SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, snap.Version)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
	e.global.Restore(snap.Global)
	e.wallets.Restore(snap.Wallets, snap.Stray)
	e.guardians.Restore(snap.Guardians)
	e.recoveries.Restore(snap.Recoveries)
	e.limiter.Restore(snap.Windows)
	e.queue.Restore(snap.Queue)
	if e.faucet != nil && snap.Host != nil {
		e.faucet.ImportState(snap.Host)
	}
	return nil
}
