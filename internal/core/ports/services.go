package ports

import (
	"context"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// RouteProvider resolves a driving route between two free-form locations.
type RouteProvider interface {
	// GetRoute returns domain.ErrRouteNotFound when no path exists.
	GetRoute(ctx context.Context, start, end string) (*domain.Route, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPlanComputed(ctx context.Context, event *domain.PlanEvent) error
	PublishCatalogueUpdated(ctx context.Context, result *domain.ImportResult) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
