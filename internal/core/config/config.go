package config

import (
	"time"

	redisclient "github.com/vietddude/walletguard/internal/infra/redis"
	badgerstore "github.com/vietddude/walletguard/internal/infra/storage/badger"
	"github.com/vietddude/walletguard/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Badger   badgerstore.Config `yaml:"badger"`
	Redis    redisclient.Config `yaml:"redis"`
	Engine   EngineConfig       `yaml:"engine"`
	Worker   WorkerConfig       `yaml:"worker"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port        int           `yaml:"port"`
	GRPCPort    int           `yaml:"grpc_port"`  // 0 = disabled
	RateLimit   float64       `yaml:"rate_limit"` // requests per second per IP
	Burst       int           `yaml:"burst"`
	AuthWindow  time.Duration `yaml:"auth_window"` // accepted X-Timestamp skew
	CORSOrigins []string      `yaml:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// EngineConfig holds the security engine and host settings.
type EngineConfig struct {
	Self          string        `yaml:"self"`  // engine account, token spender
	Admin         string        `yaml:"admin"` // granted the admin roles on first start
	Host          string        `yaml:"host"`  // sim, evm
	RPCURLs       []string      `yaml:"rpc_urls"`
	RPCTimeout    time.Duration `yaml:"rpc_timeout"`
	CodeCacheSize int           `yaml:"code_cache_size"`
	Contracts     []string      `yaml:"contracts"` // accounts the sim host treats as contracts
	Levels        []LevelConfig `yaml:"security_levels"`
}

// LevelConfig overrides one security level profile. Amounts are decimal ether.
type LevelConfig struct {
	Level                int           `yaml:"level"`
	MinGuardians         int           `yaml:"min_guardians"`
	MaxGuardians         int           `yaml:"max_guardians"`
	MinGuardianApprovals int           `yaml:"min_guardian_approvals"`
	RecoveryDelay        time.Duration `yaml:"recovery_delay"`
	LargeTxDelay         time.Duration `yaml:"large_tx_delay"`
	RateLimitPeriod      time.Duration `yaml:"rate_limit_period"`
	MaxTxPerPeriod       int           `yaml:"max_tx_per_period"`
	LargeTxThreshold     string        `yaml:"large_tx_threshold"`
	MaxDailyLimit        string        `yaml:"max_daily_limit"`
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	EventRetention   time.Duration `yaml:"event_retention"` // 0 = infinite
	GCInterval       time.Duration `yaml:"gc_interval"`
}
