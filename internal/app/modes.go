package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultline/artkey/internal/lifecycle"
	"github.com/vaultline/artkey/internal/server"
	"github.com/vaultline/artkey/internal/server/handler"
	"github.com/vaultline/artkey/internal/server/ws"
)

// shutdownGrace bounds how long the HTTP server drains on shutdown.
const shutdownGrace = 10 * time.Second

// ServerMode runs the HTTP API and WebSocket hub without the crank. A
// separate crank replica advances lifecycle state.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// CrankMode runs only the lifecycle crank: epoch boundaries, settlement,
// and refund retries.
func (a *App) CrankMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting crank mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newCrank(deps).Run(ctx)
	})
	return g.Wait()
}

// FullMode runs the API and the crank in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newCrank(deps).Run(ctx)
	})
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// newCrank assembles the lifecycle steps in their fixed order: end the
// epoch before settling so a just-expired epoch opens its auction on the
// same tick that its predecessor settles.
func (a *App) newCrank(deps *Dependencies) *lifecycle.Crank {
	steps := []lifecycle.Step{
		{Name: "end_epochs", Run: deps.EpochService.EndEpoch},
		{Name: "settle_auctions", Run: deps.AuctionService.Settle},
		{Name: "retry_refunds", Run: func(ctx context.Context) error {
			return deps.AuctionService.RetryRefunds(ctx, a.cfg.Crank.RefundBatch)
		}},
	}

	locks := deps.LockManager
	if !a.cfg.Crank.LeaderLock {
		locks = nil
	}
	return lifecycle.New(steps, a.cfg.Crank.Interval.Duration, locks, deps.Metrics, a.logger)
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// group when the server is enabled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	probes := make(map[string]handler.Pinger, len(deps.Probes))
	for name, probe := range deps.Probes {
		probes[name] = probe
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(probes),
		Epoch:    handler.NewEpochHandler(deps.EpochService),
		Mint:     handler.NewMintHandler(deps.MintService),
		Registry: handler.NewRegistryHandler(deps.RegistryService, deps.Founders),
		Vote:     handler.NewVoteHandler(deps.VoteService),
		Auction:  handler.NewAuctionHandler(deps.AuctionService),
		Reward:   handler.NewRewardHandler(deps.RewardService),
		Events:   handler.NewEventsHandler(deps.SignalBus),
		Admin:    handler.NewAdminHandler(deps.State),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminAPIKey: a.cfg.Server.AdminAPIKey,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, deps.Metrics, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
