package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	natsadapter "github.com/samirrijal/fuelroute/internal/adapters/nats"
	"github.com/samirrijal/fuelroute/internal/adapters/postgres"
	"github.com/samirrijal/fuelroute/internal/adapters/valkey"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/core/usecases"
	"github.com/samirrijal/fuelroute/internal/pkg/config"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
)

// ingestor loads an OPIS price export (CSV or XLSX) into Postgres:
//
//	ingestor [path]
//
// The path defaults to catalogue.csv_path.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("fuelroute-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	path := cfg.Catalogue.CSVPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewStationRepo(db)

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		log.Printf("valkey unavailable, cached candidates expire by TTL: %v", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		log.Printf("nats unavailable, no catalogue.updated event: %v", err)
	} else {
		defer pub.Close()
		events = pub
	}

	catalogue := usecases.NewCatalogueService(repo, cacheSvc, cfg.Catalogue.CacheTTL)
	importer := usecases.NewCatalogueImporter(repo, catalogue, events)

	log.Printf("importing %s", path)
	res, err := importer.Run(ctx, path)
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	log.Printf("done: %d stations, %d prices, %d rows skipped, %d stations without coordinates",
		res.Stations, res.Prices, res.Skipped, res.Unlocated)
}
