package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fuelroute/internal/core/usecases"
)

// Pinger is a backing service that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Plans     *usecases.PlanService
	Catalogue *usecases.CatalogueService
	NATS      *nats.Conn
	DB        Pinger
	Cache     Pinger

	// RequestTimeout bounds each API request. Zero means 30s.
	RequestTimeout time.Duration
	// RateLimitPerMinute caps requests per client IP. Zero disables limiting.
	RateLimitPerMinute int
	OpenAPIPath        string
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return d.RequestTimeout
}
