package ports

import (
	"context"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// StationRepository is the read path of the fuel price catalogue.
type StationRepository interface {
	// FindCandidates returns stations inside bounds that have coordinates and
	// at least one price, ordered by effective price ascending, then station
	// ID, truncated to limit.
	FindCandidates(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Candidate, error)
	GetByID(ctx context.Context, id int64) (*domain.Candidate, error)
}

// CatalogueWriter persists catalogue rows during ingestion.
type CatalogueWriter interface {
	UpsertStations(ctx context.Context, stations []domain.FuelStation) error
	InsertPrices(ctx context.Context, prices []domain.FuelPrice) error
}
