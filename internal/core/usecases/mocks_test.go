package usecases_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// --- Mock StationRepository ---

type mockStationRepo struct {
	findCandidatesFn func(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Candidate, error)
	getByIDFn        func(ctx context.Context, id int64) (*domain.Candidate, error)
	calls            int
}

func (m *mockStationRepo) FindCandidates(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Candidate, error) {
	m.calls++
	if m.findCandidatesFn != nil {
		return m.findCandidatesFn(ctx, bounds, limit)
	}
	return nil, nil
}

func (m *mockStationRepo) GetByID(ctx context.Context, id int64) (*domain.Candidate, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrStationNotFound
}

// fixedCatalogue answers box queries from a fixed station list.
func fixedCatalogue(cands ...domain.Candidate) *mockStationRepo {
	return &mockStationRepo{
		findCandidatesFn: func(_ context.Context, bounds domain.Bounds, limit int) ([]domain.Candidate, error) {
			var out []domain.Candidate
			for _, c := range cands {
				if p, ok := c.Station.Location.Get(); ok && bounds.Contains(p) {
					out = append(out, c)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
			if len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		},
	}
}

// --- Mock CandidateFinder ---

type mockFinder struct {
	queryFn func(ctx context.Context, center domain.GeoPoint, hw float64, limit int) ([]domain.Candidate, error)
	centers []domain.GeoPoint
}

func (m *mockFinder) Query(ctx context.Context, center domain.GeoPoint, hw float64, limit int) ([]domain.Candidate, error) {
	m.centers = append(m.centers, center)
	if m.queryFn != nil {
		return m.queryFn(ctx, center, hw, limit)
	}
	return nil, nil
}

// --- Mock RouteProvider ---

type mockRouteProvider struct {
	getRouteFn func(ctx context.Context, start, end string) (*domain.Route, error)
	calls      int
}

func (m *mockRouteProvider) GetRoute(ctx context.Context, start, end string) (*domain.Route, error) {
	m.calls++
	if m.getRouteFn != nil {
		return m.getRouteFn(ctx, start, end)
	}
	return nil, domain.ErrRouteNotFound
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	planFn      func(ctx context.Context, e *domain.PlanEvent) error
	catalogueFn func(ctx context.Context, r *domain.ImportResult) error
	plans       []*domain.PlanEvent
	imports     []*domain.ImportResult
}

func (m *mockPublisher) PublishPlanComputed(ctx context.Context, e *domain.PlanEvent) error {
	m.plans = append(m.plans, e)
	if m.planFn != nil {
		return m.planFn(ctx, e)
	}
	return nil
}

func (m *mockPublisher) PublishCatalogueUpdated(ctx context.Context, r *domain.ImportResult) error {
	m.imports = append(m.imports, r)
	if m.catalogueFn != nil {
		return m.catalogueFn(ctx, r)
	}
	return nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

// --- Fixtures ---

// degPerMile is the longitude step for one mile along the equator.
var degPerMile = 180 / (math.Pi * 3958.8)

// equatorRoute returns n+1 waypoints on the equator spaced stepMiles apart.
func equatorRoute(n int, stepMiles float64) []domain.Waypoint {
	pts := make([]domain.Waypoint, n+1)
	for i := range pts {
		pts[i] = domain.Waypoint{Lat: 0, Lng: float64(i) * stepMiles * degPerMile}
	}
	return pts
}

func station(id int64, name string, lat, lng float64, dollars float64) domain.Candidate {
	return domain.Candidate{
		Station: domain.FuelStation{
			ID:       id,
			Name:     name,
			State:    "TX",
			Location: domain.NewNullGeoPoint(&lat, &lng),
		},
		Price: domain.PriceFromDollars(dollars),
	}
}
