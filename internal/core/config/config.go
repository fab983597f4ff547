package config

import (
	"time"

	redisclient "github.com/tranvu/ledgersync/internal/infra/redis"
	"github.com/tranvu/ledgersync/internal/infra/rpc"
	"github.com/tranvu/ledgersync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	RPC      RPCConfig          `yaml:"rpc"`
	Sync     SyncConfig         `yaml:"sync"`
	Sources  SourcesConfig      `yaml:"sources"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RPCConfig holds chain access settings.
type RPCConfig struct {
	// Endpoint is the default JSON-RPC endpoint, used when failover is
	// disabled or the node registry is empty.
	Endpoint string `yaml:"endpoint"`

	Failover rpc.FailoverConfig `yaml:"failover"`
}

// SyncConfig holds scan loop settings.
type SyncConfig struct {
	// PollInterval is the steady-state delay between scan cycles.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxWindow caps the block span of a single eth_getLogs request.
	// Values above the hard cap are clamped.
	MaxWindow uint64 `yaml:"max_window"`
}

// SourcesConfig lists the contracts to mirror.
type SourcesConfig struct {
	Exchanges []ExchangeSourceConfig `yaml:"exchanges"`
	Tokens    []TokenSourceConfig    `yaml:"tokens"`
	Approvals []ApprovalSourceConfig `yaml:"approvals"`
}

// ExchangeSourceConfig is one exchange contract. It produces two scan
// sources, orders and agreements, each with its own checkpoint.
type ExchangeSourceConfig struct {
	Address    string `yaml:"address"`
	StartBlock uint64 `yaml:"start_block"`
}

// TokenSourceConfig is one token contract scanned for transfers. Legacy
// tokens carry an older ABI that only defines the Transfer event.
type TokenSourceConfig struct {
	Address    string `yaml:"address"`
	StartBlock uint64 `yaml:"start_block"`
	Legacy     bool   `yaml:"legacy"`
}

// ApprovalSourceConfig is one transfer-approval scan target. When Exchange is
// set, approval events are read from that escrow contract; when empty, they
// are read from the token contract itself.
type ApprovalSourceConfig struct {
	Token      string `yaml:"token"`
	Exchange   string `yaml:"exchange"`
	StartBlock uint64 `yaml:"start_block"`
}
