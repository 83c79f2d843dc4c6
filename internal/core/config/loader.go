package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/chain"
	redisclient "github.com/vietddude/walletguard/internal/infra/redis"
	"github.com/vietddude/walletguard/internal/security/policy"
	"github.com/vietddude/walletguard/internal/units"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML with ${ENV} expansion, applies defaults and validates.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 20
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 40
	}
	if c.Server.AuthWindow == 0 {
		c.Server.AuthWindow = 5 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = redisclient.DefaultStream
	}
	if c.Engine.Host == "" {
		c.Engine.Host = string(chain.ModeSim)
	}
	if c.Engine.RPCTimeout == 0 {
		c.Engine.RPCTimeout = 10 * time.Second
	}
	if c.Engine.CodeCacheSize == 0 {
		c.Engine.CodeCacheSize = 8192
	}
	if c.Worker.SnapshotInterval == 0 {
		c.Worker.SnapshotInterval = time.Minute
	}
	if c.Worker.GCInterval == 0 {
		c.Worker.GCInterval = 5 * time.Minute
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *AppConfig) Validate() error {
	mode, err := chain.ParseMode(c.Engine.Host)
	if err != nil {
		return err
	}
	if mode == chain.ModeEVM && len(c.Engine.RPCURLs) == 0 {
		return fmt.Errorf("engine.rpc_urls is required for host %q", mode)
	}
	for name, addr := range map[string]string{"engine.self": c.Engine.Self, "engine.admin": c.Engine.Admin} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: invalid address %q", name, addr)
		}
	}
	for _, addr := range c.Engine.Contracts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("engine.contracts: invalid address %q", addr)
		}
	}
	if _, err := c.Engine.Profiles(); err != nil {
		return err
	}
	return nil
}

// Profiles returns the security level profiles: the built-in ones with any
// configured levels replacing their defaults.
func (e EngineConfig) Profiles() ([]domain.SecurityConfig, error) {
	profiles := policy.DefaultProfiles()
	for _, lc := range e.Levels {
		level := domain.SecurityLevel(lc.Level)
		if !level.Valid() {
			return nil, fmt.Errorf("%w: level %d", policy.ErrInvalidPolicy, lc.Level)
		}
		threshold, err := units.ParseEther(lc.LargeTxThreshold)
		if err != nil {
			return nil, fmt.Errorf("level %d large_tx_threshold: %w", lc.Level, err)
		}
		daily, err := units.ParseEther(lc.MaxDailyLimit)
		if err != nil {
			return nil, fmt.Errorf("level %d max_daily_limit: %w", lc.Level, err)
		}
		profiles[level-domain.MinSecurityLevel] = domain.SecurityConfig{
			Level:                level,
			MinGuardians:         lc.MinGuardians,
			MaxGuardians:         lc.MaxGuardians,
			MinGuardianApprovals: lc.MinGuardianApprovals,
			RecoveryDelay:        lc.RecoveryDelay,
			LargeTxDelay:         lc.LargeTxDelay,
			RateLimitPeriod:      lc.RateLimitPeriod,
			MaxTxPerPeriod:       lc.MaxTxPerPeriod,
			LargeTxThreshold:     threshold,
			MaxDailyLimit:        daily,
		}
	}
	if err := policy.Validate(profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Addresses parses a list of already validated hex addresses.
func Addresses(hexes []string) []common.Address {
	out := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, common.HexToAddress(h))
	}
	return out
}
