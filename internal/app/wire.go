package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/vaultline/artkey/internal/blob/s3"
	"github.com/vaultline/artkey/internal/cache/redis"
	"github.com/vaultline/artkey/internal/config"
	"github.com/vaultline/artkey/internal/crypto"
	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
	"github.com/vaultline/artkey/internal/platform/solana"
	"github.com/vaultline/artkey/internal/service"
	"github.com/vaultline/artkey/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Epochs      domain.EpochStore
	Candidates  domain.CandidateStore
	Votes       domain.VoteStore
	Auctions    domain.AuctionStore
	Bids        domain.BidStore
	Predictions domain.PredictionStore
	Rewards     domain.RewardStore
	Founders    domain.FounderStore
	State       domain.StateStore

	// Caches
	Leaderboard domain.LeaderboardCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Ledger
	Ledger domain.LedgerClient
	Sender domain.AuthoritySender
	Assets domain.AssetService
	Minter domain.MintBuilder

	// Services
	EpochService    *service.EpochService
	VoteService     *service.VoteService
	RegistryService *service.RegistryService
	MintService     *service.MintService
	RewardService   *service.RewardService
	AuctionService  *service.AuctionService

	Metrics *metrics.Metrics

	// Health probes by dependency name.
	Probes map[string]func(ctx context.Context) error
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Probes:  make(map[string]func(ctx context.Context) error),
	}

	// ── PostgreSQL ──
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Epochs = postgres.NewEpochStore(pool)
	deps.Candidates = postgres.NewCandidateStore(pool)
	deps.Votes = postgres.NewVoteStore(pool)
	deps.Auctions = postgres.NewAuctionStore(pool)
	deps.Bids = postgres.NewBidStore(pool)
	deps.Predictions = postgres.NewPredictionStore(pool)
	deps.Rewards = postgres.NewRewardStore(pool)
	deps.Founders = postgres.NewFounderStore(pool)
	deps.State = postgres.NewStateStore(pool)
	deps.Probes["postgres"] = pool.Ping

	// ── Redis ──
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Leaderboard = redis.NewLeaderboardCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.Probes["redis"] = redisClient.Ping

	// ── Ledger ──
	rpc := solana.NewRPCClient(cfg.Ledger.RPCURL, cfg.Ledger.Commitment, logger)
	deps.Ledger = rpc

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawKey:           cfg.Authority.SigningKey,
		EncryptedKeyPath: cfg.Authority.EncryptedKeyPath,
		KeyPassword:      cfg.Authority.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: authority key: %w", err)
	}
	signer := solana.NewAuthoritySigner(rpc, key, logger)
	assetClient := solana.NewAssetClient(rpc, signer, cfg.Ledger.ArtCollection, logger)
	deps.Sender = signer
	deps.Assets = assetClient
	deps.Minter = assetClient

	// ── S3 settlement archive (optional) ──
	var archiver service.Archiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		archiver = s3blob.NewArchiver(s3Client, logger)
		deps.Probes["s3"] = s3Client.Health
	}

	// ── Services ──
	deps.EpochService = service.NewEpochService(
		deps.Epochs, deps.Candidates, deps.Auctions,
		deps.SignalBus, deps.Metrics, logger,
		service.EpochConfig{
			EpochDuration:   cfg.Auction.EpochDuration.Duration,
			AuctionDuration: cfg.Auction.AuctionDuration.Duration,
			ReserveBid:      cfg.Auction.ReserveBid,
		},
	)

	deps.VoteService = service.NewVoteService(
		deps.EpochService, deps.Candidates, deps.Votes, deps.Predictions, deps.State,
		deps.Ledger, deps.Leaderboard, deps.SignalBus, deps.Metrics, logger,
		service.VoteConfig{
			BaseVotePrice:        cfg.Auction.BaseVotePrice,
			TreasuryWallet:       cfg.Auction.TreasuryWallet,
			MembershipCollection: cfg.Ledger.MembershipCollection,
			FounderCollection:    cfg.Ledger.FounderCollection,
		},
	)

	deps.RegistryService = service.NewRegistryService(
		deps.EpochService, deps.Candidates, deps.Auctions, deps.State,
		deps.Ledger, deps.Assets, deps.Sender, deps.Leaderboard, deps.SignalBus, logger,
		service.RegistryConfig{
			JoinFee:        cfg.Auction.JoinFee,
			TreasuryWallet: cfg.Auction.TreasuryWallet,
			ArtCollection:  cfg.Ledger.ArtCollection,
		},
	)

	deps.MintService = service.NewMintService(
		deps.Minter, deps.Ledger, deps.Assets, deps.State, logger,
		service.MintConfig{
			MintFee:         cfg.Auction.MintFee,
			TreasuryWallet:  cfg.Auction.TreasuryWallet,
			ArtCollection:   cfg.Ledger.ArtCollection,
			MetadataBaseURI: cfg.Auction.MetadataBaseURI,
			NamePrefix:      cfg.Auction.MintNamePrefix,
		},
	)

	deps.RewardService = service.NewRewardService(
		deps.Predictions, deps.Rewards, deps.Votes, deps.Epochs,
		deps.Sender, deps.Metrics, logger,
	)

	deps.AuctionService = service.NewAuctionService(
		deps.Auctions, deps.Bids, deps.Epochs, deps.Founders, deps.State,
		deps.RewardService, deps.Assets, deps.Sender, deps.Ledger, archiver,
		deps.SignalBus, deps.Metrics, logger,
		service.AuctionConfig{
			TreasuryWallet: cfg.Auction.TreasuryWallet,
			TeamWallet:     cfg.Auction.TeamWallet,
			GrowthWallet:   cfg.Auction.GrowthWallet,
			SnipeWindow:    cfg.Auction.SnipeWindow.Duration,
			SnipeExtension: cfg.Auction.SnipeExtension.Duration,
		},
	)

	return deps, cleanup, nil
}
