package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/beetlebot/skitrip-cli/internal/adapters/live"
	"github.com/beetlebot/skitrip-cli/internal/adapters/mock"
	"github.com/beetlebot/skitrip-cli/internal/cache"
	"github.com/beetlebot/skitrip-cli/internal/catalog"
	"github.com/beetlebot/skitrip-cli/internal/config"
	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/cost"
	"github.com/beetlebot/skitrip-cli/internal/pricing"
)

// unpacedReveal stands in for "no pacing" on one-shot searches.
const unpacedReveal = time.Microsecond

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	modeFlag, _ := cmd.Flags().GetString("mode")
	pathFlag, _ := cmd.Flags().GetString("config")
	cfg := config.LoadFile(pathFlag).WithMode(modeFlag)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newPricingClient(cfg *config.Config) *pricing.Client {
	return pricing.NewClient(pricing.Options{
		Endpoint:    cfg.Pricing.Endpoint,
		APIKey:      cfg.Pricing.APIKey,
		Timeout:     cfg.Pricing.Timeout,
		MaxAttempts: cfg.Pricing.MaxAttempts,
		Backoff:     cfg.Pricing.Backoff,
	})
}

func buildRouter(cfg *config.Config) *core.Router {
	router := core.NewRouter(cfg)

	router.RegisterLodging(mock.NewLodgingAdapter(0))
	router.RegisterLodging(live.NewOracleAdapter(newPricingClient(cfg)))

	return router
}

// buildCache opens the configured price cache. A nil Cache means caching is
// off. closeFn releases the backend and is never nil.
func buildCache(ctx context.Context, cfg *config.Config) (c core.Cache, desc string, closeFn func(), err error) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case config.CacheFile:
		dir := cfg.Cache.Dir
		if dir == "" {
			if dir, err = config.DefaultCacheDir(); err != nil {
				return nil, "", noop, fmt.Errorf("cache dir: %w", err)
			}
		}
		fc, err := cache.NewFileCache(dir, cfg.Cache.TTL)
		if err != nil {
			return nil, "", noop, err
		}
		if n, err := fc.Prune(); err != nil {
			slog.Warn("price cache prune failed", "dir", dir, "error", err)
		} else if n > 0 {
			slog.Debug("pruned expired prices", "dir", dir, "removed", n)
		}
		return fc, fc.String(), noop, nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
		if err != nil {
			return nil, "", noop, err
		}
		return rc, rc.String(), func() { _ = rc.Close() }, nil
	default:
		return nil, config.CacheNone, noop, nil
	}
}

// buildLodging picks the router's lodging adapter and puts the price cache
// in front of it.
func buildLodging(ctx context.Context, cfg *config.Config, router *core.Router) (core.LodgingAdapter, func(), error) {
	adapter, err := router.Lodging()
	if err != nil {
		return nil, func() {}, err
	}
	c, desc, closeCache, err := buildCache(ctx, cfg)
	if err != nil {
		slog.Warn("price cache disabled", "backend", cfg.Cache.Backend, "error", err)
		return adapter, func() {}, nil
	}
	if c == nil {
		return adapter, closeCache, nil
	}
	slog.Debug("price cache enabled", "cache", desc, "provider", adapter.Name())
	return core.NewCachedLodging(adapter, c), closeCache, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.ZipPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// engineFactory returns a constructor for orchestrators sharing one catalog
// and lodging source.
func engineFactory(cfg *config.Config, cat *catalog.Catalog, lodging core.LodgingAdapter) func(paced bool) *core.Orchestrator {
	return func(paced bool) *core.Orchestrator {
		interval := cfg.Reveal.Interval
		if !paced {
			interval = unpacedReveal
		}
		return core.NewOrchestrator(core.Options{
			Catalog:        cat,
			Lodging:        lodging,
			Concurrency:    cfg.Pricing.Concurrency,
			RevealInterval: interval,
			DriveSpeedKmh:  cfg.Drive.AvgSpeedKmh,
			Fuel: cost.FuelInput{
				AvgSpeed: cfg.Fuel.AvgSpeedMph,
				MPG:      cfg.Fuel.MPG,
				GasPrice: cfg.Fuel.GasPrice,
			},
		})
	}
}

// runEngine starts o on a background loop. stop cancels it and waits.
func runEngine(ctx context.Context, o *core.Orchestrator) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
