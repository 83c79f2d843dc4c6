// Package ratelimit bounds per-wallet transaction frequency and daily volume.
package ratelimit

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	ErrRateLimitExceeded = errors.New("RateLimitExceeded")
	ErrExceedsLimits     = errors.New("TransactionExceedsLimits")
)

// Info is the reset-adjusted view of a wallet's counters.
type Info struct {
	TxCount          int          `json:"tx_count"`
	MaxTxPerPeriod   int          `json:"max_tx_per_period"`
	WindowStart      int64        `json:"window_start"`
	WindowResetsAt   int64        `json:"window_resets_at"`
	LastTxTimestamp  int64        `json:"last_tx_timestamp"`
	SpentToday       *uint256.Int `json:"spent_today"`
	DailyLimit       *uint256.Int `json:"daily_limit"`
	DailyRemaining   *uint256.Int `json:"daily_remaining"`
	DailyWindowStart int64        `json:"daily_window_start"`
	DailyResetsAt    int64        `json:"daily_resets_at"`
}

// Limiter holds one RateLimitWindow per wallet. Mutating methods return an
// undo func that restores the previous window.
type Limiter struct {
	windows map[common.Address]*domain.RateLimitWindow
}

func New() *Limiter {
	return &Limiter{windows: make(map[common.Address]*domain.RateLimitWindow)}
}

func seconds(d time.Duration) int64 { return int64(d / time.Second) }

func clone(w *domain.RateLimitWindow) *domain.RateLimitWindow {
	c := *w
	c.SpentToday = new(uint256.Int).Set(w.SpentToday)
	return &c
}

// effective applies any window resets due at now to a copy of the stored window.
func (l *Limiter) effective(id common.Address, period time.Duration, now int64) *domain.RateLimitWindow {
	w, ok := l.windows[id]
	if !ok {
		return &domain.RateLimitWindow{
			WalletID:         id,
			WindowStart:      now,
			SpentToday:       new(uint256.Int),
			DailyWindowStart: now,
		}
	}
	e := clone(w)
	if now-e.WindowStart >= seconds(period) {
		e.TxCount = 0
		e.WindowStart = now
	}
	if now-e.DailyWindowStart >= seconds(domain.DailyWindow) {
		e.SpentToday.Clear()
		e.DailyWindowStart = now
	}
	return e
}

func (l *Limiter) set(id common.Address, w *domain.RateLimitWindow) func() {
	prev, had := l.windows[id]
	l.windows[id] = w
	return func() {
		if had {
			l.windows[id] = prev
		} else {
			delete(l.windows, id)
		}
	}
}

// Open starts fresh windows for a newly created wallet.
func (l *Limiter) Open(id common.Address, now int64) func() {
	return l.set(id, &domain.RateLimitWindow{
		WalletID:         id,
		WindowStart:      now,
		SpentToday:       new(uint256.Int),
		DailyWindowStart: now,
	})
}

// Check validates a transfer of amount against the frequency limit and then
// the daily limit without mutating anything.
func (l *Limiter) Check(id common.Address, cfg domain.SecurityConfig, dailyLimit, amount *uint256.Int, now int64) error {
	w := l.effective(id, cfg.RateLimitPeriod, now)
	if w.TxCount >= cfg.MaxTxPerPeriod {
		return ErrRateLimitExceeded
	}
	total, overflow := new(uint256.Int).AddOverflow(w.SpentToday, amount)
	if overflow || total.Gt(dailyLimit) {
		return ErrExceedsLimits
	}
	return nil
}

// Consume counts one transaction of amount. It returns the daily window start
// the spend was booked against, used to release a queued reservation. The
// undo takes back exactly this spend, leaving later changes in place.
func (l *Limiter) Consume(id common.Address, cfg domain.SecurityConfig, amount *uint256.Int, now int64) (int64, func()) {
	w := l.effective(id, cfg.RateLimitPeriod, now)
	w.TxCount++
	w.LastTxTimestamp = now
	w.SpentToday.Add(w.SpentToday, amount)
	restore := l.set(id, w)
	delta := new(uint256.Int).Set(amount)
	return w.DailyWindowStart, func() {
		cur, ok := l.windows[id]
		switch {
		case !ok:
		case cur == w:
			restore()
		default:
			next := clone(cur)
			if next.TxCount > 0 && next.WindowStart == w.WindowStart {
				next.TxCount--
			}
			if next.DailyWindowStart == w.DailyWindowStart {
				subFloor(next.SpentToday, delta)
			}
			l.windows[id] = next
		}
	}
}

// Release returns amount to the daily allowance if the spend was booked in
// the window that is still current. Nothing happens otherwise.
func (l *Limiter) Release(id common.Address, amount *uint256.Int, day int64, now int64) func() {
	w, ok := l.windows[id]
	if !ok || w.DailyWindowStart != day || now-day >= seconds(domain.DailyWindow) {
		return func() {}
	}
	next := clone(w)
	released := new(uint256.Int).Set(next.SpentToday)
	subFloor(next.SpentToday, amount)
	released.Sub(released, next.SpentToday)
	restore := l.set(id, next)
	return func() {
		cur, ok := l.windows[id]
		switch {
		case !ok:
		case cur == next:
			restore()
		case cur.DailyWindowStart == day:
			back := clone(cur)
			back.SpentToday.Add(back.SpentToday, released)
			l.windows[id] = back
		}
	}
}

func subFloor(v, amount *uint256.Int) {
	if v.Lt(amount) {
		v.Clear()
		return
	}
	v.Sub(v, amount)
}

// Info reports the effective counters at now without mutating.
func (l *Limiter) Info(id common.Address, cfg domain.SecurityConfig, dailyLimit *uint256.Int, now int64) Info {
	w := l.effective(id, cfg.RateLimitPeriod, now)
	remaining := new(uint256.Int)
	if dailyLimit.Gt(w.SpentToday) {
		remaining.Sub(dailyLimit, w.SpentToday)
	}
	return Info{
		TxCount:          w.TxCount,
		MaxTxPerPeriod:   cfg.MaxTxPerPeriod,
		WindowStart:      w.WindowStart,
		WindowResetsAt:   w.WindowStart + seconds(cfg.RateLimitPeriod),
		LastTxTimestamp:  w.LastTxTimestamp,
		SpentToday:       w.SpentToday,
		DailyLimit:       new(uint256.Int).Set(dailyLimit),
		DailyRemaining:   remaining,
		DailyWindowStart: w.DailyWindowStart,
		DailyResetsAt:    w.DailyWindowStart + seconds(domain.DailyWindow),
	}
}

// Windows exports every stored window in wallet order.
func (l *Limiter) Windows() []*domain.RateLimitWindow {
	ids := make([]common.Address, 0, len(l.windows))
	for id := range l.windows {
		ids = append(ids, id)
	}
	domain.SortAddresses(ids)
	out := make([]*domain.RateLimitWindow, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(l.windows[id]))
	}
	return out
}

// Restore replaces all windows.
func (l *Limiter) Restore(windows []*domain.RateLimitWindow) {
	l.windows = make(map[common.Address]*domain.RateLimitWindow, len(windows))
	for _, w := range windows {
		c := *w
		c.SpentToday = new(uint256.Int)
		if w.SpentToday != nil {
			c.SpentToday.Set(w.SpentToday)
		}
		l.windows[w.WalletID] = &c
	}
}
