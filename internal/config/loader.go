package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARTKEY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARTKEY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Authority ──
	setStr(&cfg.Authority.SigningKey, "ARTKEY_AUTHORITY_SIGNING_KEY")
	setStr(&cfg.Authority.EncryptedKeyPath, "ARTKEY_AUTHORITY_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Authority.KeyPassword, "ARTKEY_AUTHORITY_KEY_PASSWORD")

	// ── Ledger ──
	setStr(&cfg.Ledger.RPCURL, "ARTKEY_LEDGER_RPC_URL")
	setStr(&cfg.Ledger.Commitment, "ARTKEY_LEDGER_COMMITMENT")
	setStr(&cfg.Ledger.ArtCollection, "ARTKEY_LEDGER_ART_COLLECTION")
	setStr(&cfg.Ledger.MembershipCollection, "ARTKEY_LEDGER_MEMBERSHIP_COLLECTION")
	setStr(&cfg.Ledger.FounderCollection, "ARTKEY_LEDGER_FOUNDER_COLLECTION")

	// ── Auction ──
	setDuration(&cfg.Auction.EpochDuration, "ARTKEY_AUCTION_EPOCH_DURATION")
	setDuration(&cfg.Auction.AuctionDuration, "ARTKEY_AUCTION_AUCTION_DURATION")
	setInt64(&cfg.Auction.BaseVotePrice, "ARTKEY_AUCTION_BASE_VOTE_PRICE")
	setInt64(&cfg.Auction.ReserveBid, "ARTKEY_AUCTION_RESERVE_BID")
	setInt64(&cfg.Auction.MintFee, "ARTKEY_AUCTION_MINT_FEE")
	setInt64(&cfg.Auction.JoinFee, "ARTKEY_AUCTION_JOIN_FEE")
	setStr(&cfg.Auction.MintNamePrefix, "ARTKEY_AUCTION_MINT_NAME_PREFIX")
	setStr(&cfg.Auction.MetadataBaseURI, "ARTKEY_AUCTION_METADATA_BASE_URI")
	setDuration(&cfg.Auction.SnipeWindow, "ARTKEY_AUCTION_SNIPE_WINDOW")
	setDuration(&cfg.Auction.SnipeExtension, "ARTKEY_AUCTION_SNIPE_EXTENSION")
	setStr(&cfg.Auction.TreasuryWallet, "ARTKEY_AUCTION_TREASURY_WALLET")
	setStr(&cfg.Auction.TeamWallet, "ARTKEY_AUCTION_TEAM_WALLET")
	setStr(&cfg.Auction.GrowthWallet, "ARTKEY_AUCTION_GROWTH_WALLET")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARTKEY_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "ARTKEY_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARTKEY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARTKEY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARTKEY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARTKEY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARTKEY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARTKEY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARTKEY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARTKEY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARTKEY_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARTKEY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARTKEY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARTKEY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARTKEY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARTKEY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARTKEY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARTKEY_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARTKEY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARTKEY_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARTKEY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARTKEY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARTKEY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARTKEY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARTKEY_S3_FORCE_PATH_STYLE")

	// ── Crank ──
	setDuration(&cfg.Crank.Interval, "ARTKEY_CRANK_INTERVAL")
	setInt(&cfg.Crank.RefundBatch, "ARTKEY_CRANK_REFUND_BATCH")
	setBool(&cfg.Crank.LeaderLock, "ARTKEY_CRANK_LEADER_LOCK")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARTKEY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARTKEY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARTKEY_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "ARTKEY_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimit, "ARTKEY_SERVER_RATE_LIMIT")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARTKEY_MODE")
	setStr(&cfg.LogLevel, "ARTKEY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
