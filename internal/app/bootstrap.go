package app

import (
	"context"
	"log/slog"

	"predmarket/internal/domain"
	"predmarket/internal/engine"
	"predmarket/internal/feed"
	"predmarket/internal/infra"
	"predmarket/internal/infra/storage"
	"predmarket/internal/ledger"
	"predmarket/internal/lifecycle"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Store     *storage.Store
	Ledger    *ledger.Ledger
	Engine    *engine.Engine
	Lifecycle *lifecycle.Service
	Feed      *feed.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, DB, engine, feed)
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping prediction market core...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Database.Path))

	b.Ledger = ledger.New(store)

	// 4. Matching engine, per configured mode
	var pub domain.EventPublisher
	var hub *feed.Hub
	if cfg.Feed.Enabled {
		hub = feed.NewHub()
		pub = hub
	}

	registry := engine.NewRegistry()
	bookStrategy := engine.NewBookStrategy(store, registry)
	if cfg.Engine.Mode == "store" {
		bookStrategy.Disable()
	}

	opts := []engine.Option{}
	if cfg.Engine.Fallback || cfg.Engine.Mode == "store" {
		opts = append(opts, engine.WithFallback(engine.NewStoreStrategy(store)))
	}
	if pub != nil {
		opts = append(opts, engine.WithPublisher(pub))
	}
	b.Engine = engine.New(store, b.Ledger, bookStrategy, opts...)

	// 5. Warm live books from persisted open orders
	if err := bookStrategy.Warm(ctx); err != nil {
		return err
	}

	b.Lifecycle = lifecycle.New(store, b.Ledger, b.Engine, pub, lifecycle.Config{
		SpreadTicks:          cfg.Market.SpreadTicks,
		SeedQuantity:         cfg.Market.SeedQuantity,
		PlatformUserID:       cfg.Market.PlatformUserID,
		StartingBalanceCents: cfg.Market.StartingBalanceCents,
	})

	// Seeding funds this account out-of-band per market; the starting
	// balance only matters for its first provisioning.
	if cfg.Market.PlatformUserID != "" {
		if _, err := b.Lifecycle.ProvisionAccount(ctx, cfg.Market.PlatformUserID, "platform"); err != nil {
			return err
		}
	}

	if hub != nil {
		b.Feed = feed.NewServer(cfg.Feed.Addr, hub)
	}

	slog.Info("✅ Engine ready", slog.String("mode", cfg.Engine.Mode))
	return nil
}
