// Package policy holds the per-security-level limit profiles.
//
// Profiles tighten as the level rises: a higher level never allows more
// transactions per period, a larger direct transfer or a larger daily limit
// than a lower one.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/units"
)

var (
	// ErrInvalidSecurityLevel is returned for levels outside [1,3].
	ErrInvalidSecurityLevel = errors.New("InvalidSecurityLevel")

	// ErrInvalidPolicy is returned when a profile set violates its invariants.
	ErrInvalidPolicy = errors.New("invalid security policy")
)

// Policy maps each security level to its SecurityConfig.
type Policy struct {
	levels [domain.MaxSecurityLevel + 1]domain.SecurityConfig
}

// DefaultProfiles returns the built-in profiles for levels 1..3.
func DefaultProfiles() []domain.SecurityConfig {
	return []domain.SecurityConfig{
		{
			Level:                domain.SecurityLevelBasic,
			MinGuardians:         3,
			MaxGuardians:         5,
			MinGuardianApprovals: 3,
			RecoveryDelay:        48 * time.Hour,
			LargeTxDelay:         24 * time.Hour,
			RateLimitPeriod:      time.Hour,
			MaxTxPerPeriod:       10,
			LargeTxThreshold:     units.Ether(100),
			MaxDailyLimit:        units.Ether(1000),
		},
		{
			Level:                domain.SecurityLevelEnhanced,
			MinGuardians:         3,
			MaxGuardians:         5,
			MinGuardianApprovals: 3,
			RecoveryDelay:        72 * time.Hour,
			LargeTxDelay:         48 * time.Hour,
			RateLimitPeriod:      time.Hour,
			MaxTxPerPeriod:       5,
			LargeTxThreshold:     units.Ether(50),
			MaxDailyLimit:        units.Ether(500),
		},
		{
			Level:                domain.SecurityLevelMaximum,
			MinGuardians:         3,
			MaxGuardians:         5,
			MinGuardianApprovals: 4,
			RecoveryDelay:        168 * time.Hour,
			LargeTxDelay:         72 * time.Hour,
			RateLimitPeriod:      time.Hour,
			MaxTxPerPeriod:       3,
			LargeTxThreshold:     units.Ether(10),
			MaxDailyLimit:        units.Ether(100),
		},
	}
}

// Default returns the policy built from DefaultProfiles.
func Default() *Policy {
	p, err := New(DefaultProfiles())
	if err != nil {
		panic(err)
	}
	return p
}

// New validates profiles and builds a Policy. Exactly one profile per level is required.
func New(profiles []domain.SecurityConfig) (*Policy, error) {
	if err := Validate(profiles); err != nil {
		return nil, err
	}
	p := &Policy{}
	for _, cfg := range profiles {
		p.levels[cfg.Level] = copyConfig(cfg)
	}
	return p, nil
}

// Validate checks that profiles cover every level and tighten monotonically.
func Validate(profiles []domain.SecurityConfig) error {
	var seen [domain.MaxSecurityLevel + 1]*domain.SecurityConfig
	for i := range profiles {
		cfg := &profiles[i]
		if !cfg.Level.Valid() {
			return fmt.Errorf("%w: level %d", ErrInvalidPolicy, cfg.Level)
		}
		if seen[cfg.Level] != nil {
			return fmt.Errorf("%w: duplicate level %d", ErrInvalidPolicy, cfg.Level)
		}
		if err := validateProfile(cfg); err != nil {
			return err
		}
		seen[cfg.Level] = cfg
	}

	for l := domain.MinSecurityLevel; l <= domain.MaxSecurityLevel; l++ {
		if seen[l] == nil {
			return fmt.Errorf("%w: missing level %d", ErrInvalidPolicy, l)
		}
		if l == domain.MinSecurityLevel {
			continue
		}
		prev, cur := seen[l-1], seen[l]
		if cur.MaxTxPerPeriod > prev.MaxTxPerPeriod {
			return fmt.Errorf("%w: level %d allows more transactions per period than level %d",
				ErrInvalidPolicy, l, l-1)
		}
		if cur.LargeTxThreshold.Gt(prev.LargeTxThreshold) {
			return fmt.Errorf("%w: level %d has a higher large-transaction threshold than level %d",
				ErrInvalidPolicy, l, l-1)
		}
		if cur.MaxDailyLimit.Gt(prev.MaxDailyLimit) {
			return fmt.Errorf("%w: level %d has a higher daily limit cap than level %d",
				ErrInvalidPolicy, l, l-1)
		}
	}
	return nil
}

func validateProfile(cfg *domain.SecurityConfig) error {
	switch {
	case cfg.MaxGuardians <= 0:
		return fmt.Errorf("%w: level %d max guardians must be positive", ErrInvalidPolicy, cfg.Level)
	case cfg.MinGuardians < 0 || cfg.MinGuardians > cfg.MaxGuardians:
		return fmt.Errorf("%w: level %d min guardians out of range", ErrInvalidPolicy, cfg.Level)
	case cfg.MinGuardianApprovals <= 0 || cfg.MinGuardianApprovals > cfg.MaxGuardians:
		return fmt.Errorf("%w: level %d guardian approvals out of range", ErrInvalidPolicy, cfg.Level)
	case cfg.RecoveryDelay <= 0 || cfg.LargeTxDelay <= 0 || cfg.RateLimitPeriod <= 0:
		return fmt.Errorf("%w: level %d delays must be positive", ErrInvalidPolicy, cfg.Level)
	case cfg.MaxTxPerPeriod <= 0:
		return fmt.Errorf("%w: level %d max tx per period must be positive", ErrInvalidPolicy, cfg.Level)
	case cfg.LargeTxThreshold == nil || cfg.MaxDailyLimit == nil:
		return fmt.Errorf("%w: level %d thresholds are required", ErrInvalidPolicy, cfg.Level)
	case cfg.MaxDailyLimit.IsZero():
		return fmt.Errorf("%w: level %d daily limit cap must be positive", ErrInvalidPolicy, cfg.Level)
	}
	return nil
}

// Config returns the profile for level.
func (p *Policy) Config(level domain.SecurityLevel) (domain.SecurityConfig, error) {
	if !level.Valid() {
		return domain.SecurityConfig{}, ErrInvalidSecurityLevel
	}
	return copyConfig(p.levels[level]), nil
}

// MustConfig is Config for levels already validated by the caller.
func (p *Policy) MustConfig(level domain.SecurityLevel) domain.SecurityConfig {
	cfg, err := p.Config(level)
	if err != nil {
		panic(err)
	}
	return cfg
}

// IsLarge reports whether amount must go through the transaction queue at level.
func (p *Policy) IsLarge(level domain.SecurityLevel, amount *uint256.Int) bool {
	return amount.Gt(p.levels[level].LargeTxThreshold)
}

// ClampDailyLimit caps limit at the level's maximum daily limit.
func (p *Policy) ClampDailyLimit(level domain.SecurityLevel, limit *uint256.Int) *uint256.Int {
	limitCap := p.levels[level].MaxDailyLimit
	if limit.Gt(limitCap) {
		return new(uint256.Int).Set(limitCap)
	}
	return new(uint256.Int).Set(limit)
}

// Profiles returns copies of all profiles ordered by level.
func (p *Policy) Profiles() []domain.SecurityConfig {
	out := make([]domain.SecurityConfig, 0, domain.MaxSecurityLevel)
	for l := domain.MinSecurityLevel; l <= domain.MaxSecurityLevel; l++ {
		out = append(out, copyConfig(p.levels[l]))
	}
	return out
}

func copyConfig(cfg domain.SecurityConfig) domain.SecurityConfig {
	cfg.LargeTxThreshold = new(uint256.Int).Set(cfg.LargeTxThreshold)
	cfg.MaxDailyLimit = new(uint256.Int).Set(cfg.MaxDailyLimit)
	return cfg
}
