package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/pkg/geospatial"
	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
	"github.com/samirrijal/fuelroute/internal/pkg/telemetry"
)

// Cache key prefixes owned by the catalogue. Import runs drop both.
const (
	CandidateCachePrefix = "candidates:"
	StationCachePrefix   = "stations:"
)

// CandidateFinder answers "which priced stations are around this point".
type CandidateFinder interface {
	Query(ctx context.Context, center domain.GeoPoint, halfWidthDegrees float64, limit int) ([]domain.Candidate, error)
}

// CatalogueService is the read path of the fuel price catalogue.
type CatalogueService struct {
	stations ports.StationRepository
	cache    ports.CacheService
	cacheTTL int
}

// NewCatalogueService creates a new CatalogueService. cache may be nil.
func NewCatalogueService(stations ports.StationRepository, cache ports.CacheService, cacheTTL int) *CatalogueService {
	if cacheTTL <= 0 {
		cacheTTL = 300
	}
	return &CatalogueService{stations: stations, cache: cache, cacheTTL: cacheTTL}
}

// Query returns up to limit priced stations inside the degree box around
// center, cheapest first. An empty result is not an error.
func (s *CatalogueService) Query(ctx context.Context, center domain.GeoPoint, halfWidthDegrees float64, limit int) ([]domain.Candidate, error) {
	if err := geospatial.ValidatePoint(center); err != nil {
		return nil, err
	}
	if limit <= 0 || halfWidthDegrees <= 0 {
		return []domain.Candidate{}, nil
	}

	cacheKey := fmt.Sprintf("%s%.5f:%.5f:%.3f:%d", CandidateCachePrefix, center.Lat, center.Lng, halfWidthDegrees, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cands []domain.Candidate
			if err := json.Unmarshal(data, &cands); err == nil {
				metrics.CacheHits.WithLabelValues("candidates").Inc()
				return cands, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("candidates").Inc()
	}

	ctx, span := telemetry.StartSpan(ctx, "catalogue.query",
		attribute.Float64("center.lat", center.Lat),
		attribute.Float64("center.lng", center.Lng),
		attribute.Int("limit", limit),
	)
	start := time.Now()
	found, err := s.stations.FindCandidates(ctx, geospatial.DegreeBox(center, halfWidthDegrees), limit)
	metrics.CatalogueQueryDuration.Observe(time.Since(start).Seconds())
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	cands := normalizeCandidates(found, limit)

	if s.cache != nil {
		if data, err := json.Marshal(cands); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return cands, nil
}

// GetStation returns one station with its effective price.
func (s *CatalogueService) GetStation(ctx context.Context, id int64) (*domain.Candidate, error) {
	cacheKey := StationCachePrefix + "id:" + strconv.FormatInt(id, 10)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var c domain.Candidate
			if err := json.Unmarshal(data, &c); err == nil {
				metrics.CacheHits.WithLabelValues("station").Inc()
				return &c, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("station").Inc()
	}

	c, err := s.stations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(c); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return c, nil
}

// Invalidate drops every cached catalogue answer.
func (s *CatalogueService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePrefix(ctx, CandidateCachePrefix); err != nil {
		return err
	}
	return s.cache.DeletePrefix(ctx, StationCachePrefix)
}

// normalizeCandidates drops unlocated stations and enforces the
// (price, station ID) order and the limit, whatever the store returned.
func normalizeCandidates(in []domain.Candidate, limit int) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(in))
	for _, c := range in {
		if !c.Station.Location.Valid {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Station.ID < out[j].Station.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
