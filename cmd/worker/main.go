package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/fuelroute/internal/adapters/nats"
	"github.com/samirrijal/fuelroute/internal/adapters/postgres"
	"github.com/samirrijal/fuelroute/internal/adapters/valkey"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/core/usecases"
	"github.com/samirrijal/fuelroute/internal/pkg/config"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
	"github.com/samirrijal/fuelroute/internal/workflows"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("fuelroute-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewStationRepo(db)

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		log.Printf("valkey unavailable: %v", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		log.Printf("nats unavailable: %v", err)
	} else {
		defer pub.Close()
		events = pub
	}

	catalogue := usecases.NewCatalogueService(repo, cacheSvc, cfg.Catalogue.CacheTTL)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Cache and events are separate activities, so the importer gets neither.
	w.RegisterWorkflow(workflows.CatalogueRefreshWorkflow)
	w.RegisterActivity(&workflows.CatalogueActivities{
		Importer: usecases.NewCatalogueImporter(repo, nil, nil),
		Cache:    catalogue,
		Events:   events,
	})

	if spec := cfg.Catalogue.RefreshSchedule; spec != "" {
		sched := cron.New()
		_, err := sched.AddFunc(spec, func() {
			startRefresh(c, cfg.Temporal.TaskQueue, cfg.Catalogue.RefreshPath)
		})
		if err != nil {
			log.Fatalf("refresh schedule %q: %v", spec, err)
		}
		sched.Start()
		defer sched.Stop()
		log.Printf("catalogue refresh scheduled (%s) for %s", spec, cfg.Catalogue.RefreshPath)
	}

	log.Println("catalogue worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// startRefresh starts one refresh run. The workflow ID is derived from the
// minute so a schedule firing twice does not import twice.
func startRefresh(c client.Client, taskQueue, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := fmt.Sprintf("catalogue-refresh-%s", time.Now().UTC().Format("200601021504"))
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: taskQueue,
	}, workflows.CatalogueRefreshWorkflow, workflows.CatalogueRefreshInput{Path: path})
	if err != nil {
		log.Printf("start catalogue refresh: %v", err)
		return
	}
	log.Printf("catalogue refresh started: workflow=%s run=%s", run.GetID(), run.GetRunID())
}
