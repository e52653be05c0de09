// Package memory holds an in-process catalogue store backed by an R-tree.
// It serves the API when the catalogue is loaded from a CSV export instead
// of Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/rtree"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/pkg/opis"
)

type entry struct {
	station  domain.FuelStation
	minPrice domain.Price
	priced   bool
}

// Catalogue implements ports.StationRepository and ports.CatalogueWriter.
// Only located stations are indexed; it is safe for concurrent use.
type Catalogue struct {
	mu       sync.RWMutex
	tree     rtree.RTreeG[int64]
	stations map[int64]*entry
}

// NewCatalogue creates an empty Catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{stations: make(map[int64]*entry)}
}

// LoadFile creates a Catalogue from an OPIS export.
func LoadFile(ctx context.Context, path string) (*Catalogue, error) {
	parsed, err := opis.Open(path)
	if err != nil {
		return nil, err
	}
	c := NewCatalogue()
	if err := c.UpsertStations(ctx, parsed.Stations); err != nil {
		return nil, err
	}
	if err := c.InsertPrices(ctx, parsed.Prices); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace swaps in the contents of other, e.g. after a fresh LoadFile.
// other must not be used afterwards.
func (c *Catalogue) Replace(other *Catalogue) {
	other.mu.Lock()
	tree, stations := other.tree, other.stations
	other.mu.Unlock()

	c.mu.Lock()
	c.tree, c.stations = tree, stations
	c.mu.Unlock()
}

// Len returns the number of stations held.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stations)
}

// FindCandidates returns priced stations inside b, cheapest first.
func (c *Catalogue) FindCandidates(_ context.Context, b domain.Bounds, limit int) ([]domain.Candidate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Candidate
	c.tree.Search(
		[2]float64{b.MinLat, b.MinLng},
		[2]float64{b.MaxLat, b.MaxLng},
		func(_, _ [2]float64, id int64) bool {
			if e := c.stations[id]; e != nil && e.priced {
				out = append(out, domain.Candidate{Station: e.station, Price: e.minPrice})
			}
			return true
		},
	)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Station.ID < out[j].Station.ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByID returns a priced station.
func (c *Catalogue) GetByID(_ context.Context, id int64) (*domain.Candidate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.stations[id]
	if e == nil || !e.priced {
		return nil, domain.ErrStationNotFound
	}
	return &domain.Candidate{Station: e.station, Price: e.minPrice}, nil
}

// UpsertStations adds or updates stations. A known location is kept when
// the update has none.
func (c *Catalogue) UpsertStations(_ context.Context, stations []domain.FuelStation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range stations {
		e, ok := c.stations[s.ID]
		if !ok {
			e = &entry{}
			c.stations[s.ID] = e
		}

		old := e.station.Location
		if !s.Location.Valid && old.Valid {
			s.Location = old
		}
		e.station = s

		if old.Valid && old.Point != s.Location.Point {
			pt := point(old.Point)
			c.tree.Delete(pt, pt, s.ID)
		}
		if s.Location.Valid && (!old.Valid || old.Point != s.Location.Point) {
			pt := point(s.Location.Point)
			c.tree.Insert(pt, pt, s.ID)
		}
	}
	return nil
}

// InsertPrices records prices, keeping the minimum per station.
func (c *Catalogue) InsertPrices(_ context.Context, prices []domain.FuelPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range prices {
		e := c.stations[p.StationID]
		if e == nil {
			return fmt.Errorf("price for unknown station %d", p.StationID)
		}
		if !e.priced || p.Price < e.minPrice {
			e.minPrice = p.Price
			e.priced = true
		}
	}
	return nil
}

func point(p domain.GeoPoint) [2]float64 {
	return [2]float64{p.Lat, p.Lng}
}
