package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/samirrijal/fuelroute/internal/adapters/googlemaps"
	"github.com/samirrijal/fuelroute/internal/adapters/http"
	"github.com/samirrijal/fuelroute/internal/adapters/memory"
	natsadapter "github.com/samirrijal/fuelroute/internal/adapters/nats"
	"github.com/samirrijal/fuelroute/internal/adapters/postgres"
	"github.com/samirrijal/fuelroute/internal/adapters/valkey"
	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/core/usecases"
	"github.com/samirrijal/fuelroute/internal/pkg/config"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
	"github.com/samirrijal/fuelroute/internal/pkg/telemetry"
)

func main() {
	// Local secrets such as FUELROUTE_ROUTING_API_KEY
	_ = godotenv.Load()

	cfg, err := config.Load("fuelroute-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	deps := &http.Dependencies{
		RequestTimeout:     time.Duration(cfg.Server.RequestTimeout) * time.Second,
		RateLimitPerMinute: cfg.Server.RateLimit,
		OpenAPIPath:        cfg.Server.OpenAPIPath,
	}

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running without cache", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
		deps.Cache = cache
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, plan events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Catalogue store
	var stations ports.StationRepository
	var store *memory.Catalogue
	switch cfg.Catalogue.Source {
	case "csv":
		store, err = memory.LoadFile(ctx, cfg.Catalogue.CSVPath)
		if err != nil {
			log.Fatalf("load catalogue %s: %v", cfg.Catalogue.CSVPath, err)
		}
		slog.Info("catalogue loaded into memory", "path", cfg.Catalogue.CSVPath, "stations", store.Len())
		stations = store
	default:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go reportPoolStats(ctx, db)
		stations = postgres.NewStationRepo(db)
		deps.DB = db
	}

	// Route provider
	routes, err := googlemaps.New(googlemaps.Options{
		APIKey:        cfg.Routing.APIKey,
		BaseURL:       cfg.Routing.BaseURL,
		RatePerSecond: cfg.Routing.RatePerSecond,
		Burst:         cfg.Routing.Burst,
		Timeout:       time.Duration(cfg.Routing.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("route provider: %v", err)
	}

	// Use cases
	catalogueSvc := usecases.NewCatalogueService(stations, cacheSvc, cfg.Catalogue.CacheTTL)
	planSvc := usecases.NewPlanService(routes, catalogueSvc, events, cacheSvc, optimizerConfig(cfg.Optimizer), cfg.Routing.CacheTTL)
	deps.Plans = planSvc
	deps.Catalogue = catalogueSvc

	// Reload the in-memory catalogue when a refresh is announced.
	if store != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("catalogue reload disabled", "error", err)
		} else {
			defer sub.Close()
			err := sub.SubscribeCatalogueUpdated(ctx, func(ctx context.Context, res *domain.ImportResult) error {
				fresh, err := memory.LoadFile(ctx, cfg.Catalogue.CSVPath)
				if err != nil {
					slog.Error("catalogue reload failed", "path", cfg.Catalogue.CSVPath, "error", err)
					return err
				}
				store.Replace(fresh)
				if err := catalogueSvc.Invalidate(ctx); err != nil {
					slog.Warn("catalogue cache invalidation failed", "error", err)
				}
				slog.Info("catalogue reloaded", "stations", store.Len(), "imported_at", res.CompletedAt)
				return nil
			})
			if err != nil {
				slog.Warn("catalogue reload subscription failed", "error", err)
			}
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Fuel Route API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "catalogue", cfg.Catalogue.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight plans up to the upstream budget to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Optimizer.UpstreamTimeout()+5*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func optimizerConfig(o config.OptimizerConfig) usecases.OptimizerConfig {
	return usecases.OptimizerConfig{
		MaxRangeMiles:          o.MaxRangeMiles,
		MilesPerGallon:         o.MilesPerGallon,
		TriggerFraction:        o.TriggerFraction,
		SearchHalfWidthDegrees: o.SearchHalfWidthDegrees,
		CandidateLimit:         o.CandidateLimit,
		PriceWeight:            o.ScorePriceWeight,
		DeviationWeight:        o.ScoreDeviationWeight,
		UpstreamTimeout:        o.UpstreamTimeout(),
	}
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
