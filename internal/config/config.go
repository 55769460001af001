// Package config defines the top-level configuration for the artkey auction
// backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARTKEY_* environment variables.
type Config struct {
	Authority Authority    `toml:"authority"`
	Ledger    LedgerConfig `toml:"ledger"`
	Auction   AuctionConfig `toml:"auction"`
	Postgres  PostgresConfig `toml:"postgres"`
	Redis     RedisConfig  `toml:"redis"`
	S3        S3Config     `toml:"s3"`
	Crank     CrankConfig  `toml:"crank"`
	Server    ServerConfig `toml:"server"`
	Mode      string       `toml:"mode"`
	LogLevel  string       `toml:"log_level"`
}

// Authority holds the vault/collection-authority signing key. One of the
// key sources must be set.
type Authority struct {
	// SigningKey is the raw 64-byte ed25519 secret key, base58 or as a JSON
	// number array, matching the wallet export formats in the wild.
	SigningKey       string `toml:"signing_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword     string `toml:"key_password"`
}

// LedgerConfig holds RPC endpoints and collection addresses on the chain.
type LedgerConfig struct {
	RPCURL     string `toml:"rpc_url"`
	Commitment string `toml:"commitment"`
	// ArtCollection is the collection all competition assets belong to.
	ArtCollection string `toml:"art_collection"`
	// MembershipCollection grants free-vote eligibility.
	MembershipCollection string `toml:"membership_collection"`
	// FounderCollection also grants free-vote eligibility (past winners).
	FounderCollection string `toml:"founder_collection"`
}

// AuctionConfig holds the lifecycle policy: durations, prices, and the
// wallets on the receiving end of fees and revenue splits.
type AuctionConfig struct {
	EpochDuration   duration `toml:"epoch_duration"`
	AuctionDuration duration `toml:"auction_duration"`
	BaseVotePrice   int64    `toml:"base_vote_price"`
	ReserveBid      int64    `toml:"reserve_bid"`
	MintFee         int64    `toml:"mint_fee"`
	JoinFee         int64    `toml:"join_fee"`
	MintNamePrefix  string   `toml:"mint_name_prefix"`
	MetadataBaseURI string   `toml:"metadata_base_uri"`
	SnipeWindow     duration `toml:"snipe_window"`
	SnipeExtension  duration `toml:"snipe_extension"`
	TreasuryWallet  string   `toml:"treasury_wallet"`
	TeamWallet      string   `toml:"team_wallet"`
	GrowthWallet    string   `toml:"growth_wallet"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CrankConfig holds the lifecycle ticker parameters.
type CrankConfig struct {
	Interval duration `toml:"interval"`
	// RefundBatch caps how many failed refunds are retried per tick.
	RefundBatch int `toml:"refund_batch"`
	// LeaderLock enables the Redis lock so only one replica cranks.
	LeaderLock bool `toml:"leader_lock"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AdminAPIKey string   `toml:"admin_api_key"`
	// RateLimit is requests per wallet/IP per minute on mutating routes.
	RateLimit int `toml:"rate_limit"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "24h", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "24h" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			RPCURL:     "https://api.devnet.solana.com",
			Commitment: "confirmed",
		},
		Auction: AuctionConfig{
			EpochDuration:   duration{24 * time.Hour},
			AuctionDuration: duration{24 * time.Hour},
			BaseVotePrice:   1_000_000,
			ReserveBid:      200_000_000,
			MintFee:         50_000_000,
			JoinFee:         10_000_000,
			MintNamePrefix:  "ArtKey",
			SnipeWindow:     duration{5 * time.Minute},
			SnipeExtension:  duration{5 * time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "artkey",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "artkey-archive",
			ForcePathStyle: true,
		},
		Crank: CrankConfig{
			Interval:    duration{30 * time.Second},
			RefundBatch: 5,
			LeaderLock:  true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   60,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"crank":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, crank, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Every mode signs from the vault: the server for custody transfers,
	// refunds, and claims, the crank for settlement payouts.
	if c.Authority.SigningKey == "" && c.Authority.EncryptedKeyPath == "" {
		errs = append(errs, "authority: either signing_key or encrypted_key_path must be set")
	}
	if c.Authority.EncryptedKeyPath != "" && c.Authority.KeyPassword == "" {
		errs = append(errs, "authority: key_password is required when encrypted_key_path is set")
	}

	if c.Ledger.RPCURL == "" {
		errs = append(errs, "ledger: rpc_url must not be empty")
	}
	if c.Ledger.ArtCollection == "" {
		errs = append(errs, "ledger: art_collection must not be empty")
	}

	if c.Auction.EpochDuration.Duration <= 0 {
		errs = append(errs, "auction: epoch_duration must be > 0")
	}
	if c.Auction.AuctionDuration.Duration <= 0 {
		errs = append(errs, "auction: auction_duration must be > 0")
	}
	if c.Auction.BaseVotePrice <= 0 {
		errs = append(errs, "auction: base_vote_price must be > 0")
	}
	if c.Auction.ReserveBid <= 0 {
		errs = append(errs, "auction: reserve_bid must be > 0")
	}
	if c.Auction.TreasuryWallet == "" {
		errs = append(errs, "auction: treasury_wallet must not be empty")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Crank.Interval.Duration <= 0 {
		errs = append(errs, "crank: interval must be > 0")
	}
	if c.Crank.RefundBatch < 1 {
		errs = append(errs, "crank: refund_batch must be >= 1")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
