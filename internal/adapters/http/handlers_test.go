package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/fuelroute/internal/adapters/http"
	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/usecases"
)

// ---- Mocks ----

type mockRouteProvider struct {
	getRouteFn func(ctx context.Context, start, end string) (*domain.Route, error)
}

func (m *mockRouteProvider) GetRoute(ctx context.Context, start, end string) (*domain.Route, error) {
	if m.getRouteFn != nil {
		return m.getRouteFn(ctx, start, end)
	}
	return nil, domain.ErrRouteNotFound
}

type mockStationRepo struct {
	findCandidatesFn func(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Candidate, error)
	getByIDFn        func(ctx context.Context, id int64) (*domain.Candidate, error)
}

func (m *mockStationRepo) FindCandidates(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.Candidate, error) {
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

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

const step = 100.0001

var degPerMile = 180 / (math.Pi * 3958.8)

func station(id int64, name string, lat, lng, dollars float64) domain.Candidate {
	return domain.Candidate{
		Station: domain.FuelStation{ID: id, Name: name, State: "TX", Location: domain.NewNullGeoPoint(&lat, &lng)},
		Price:   domain.PriceFromDollars(dollars),
	}
}

// catalogueOf answers box queries from a fixed list.
func catalogueOf(cands ...domain.Candidate) *mockStationRepo {
	return &mockStationRepo{
		findCandidatesFn: func(_ context.Context, b domain.Bounds, limit int) ([]domain.Candidate, error) {
			var out []domain.Candidate
			for _, c := range cands {
				if p, ok := c.Station.Location.Get(); ok && b.Contains(p) {
					out = append(out, c)
				}
			}
			return out, nil
		},
		getByIDFn: func(_ context.Context, id int64) (*domain.Candidate, error) {
			for _, c := range cands {
				if c.Station.ID == id {
					return &c, nil
				}
			}
			return nil, domain.ErrStationNotFound
		},
	}
}

// equatorRoute returns n waypoints along the equator spaced step miles apart.
func equatorRoute(n int) *domain.Route {
	r := &domain.Route{DurationText: "8 hours 20 mins"}
	for i := 0; i < n; i++ {
		r.Waypoints = append(r.Waypoints, domain.Waypoint{Lat: 0, Lng: float64(i) * step * degPerMile})
	}
	r.TotalDistanceMeters = float64(n-1) * step * 1609.344
	return r
}

func routeOf(r *domain.Route) *mockRouteProvider {
	return &mockRouteProvider{
		getRouteFn: func(context.Context, string, string) (*domain.Route, error) { return r, nil },
	}
}

func makeDeps(routes *mockRouteProvider, stations *mockStationRepo, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	catalogue := usecases.NewCatalogueService(stations, nil, 0)
	d := &handler.Dependencies{
		Plans:     usecases.NewPlanService(routes, catalogue, nil, nil, usecases.DefaultOptimizerConfig(), 0),
		Catalogue: catalogue,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func get(t *testing.T, app *fiber.App, path string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

type apiError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

type optimalRoute struct {
	Route struct {
		Coordinates        []domain.GeoPoint `json:"coordinates"`
		TotalDistanceMiles float64           `json:"total_distance_miles"`
		Duration           string            `json:"duration"`
	} `json:"route"`
	FuelStops []struct {
		ID                int64           `json:"id"`
		Name              string          `json:"name"`
		Location          domain.GeoPoint `json:"location"`
		Price             float64         `json:"price"`
		DistanceFromStart float64         `json:"distance_from_start"`
	} `json:"fuel_stops"`
	Summary struct {
		TotalCost       float64  `json:"total_cost"`
		TotalGallons    float64  `json:"total_gallons"`
		NumberOfStops   int      `json:"number_of_stops"`
		CostEstimated   bool     `json:"cost_estimated"`
		RangeExceeded   bool     `json:"range_exceeded"`
		OriginFillPrice *float64 `json:"origin_fill_price"`
	} `json:"summary"`
}

// ---- Optimal route ----

func TestOptimalRoute_OneStop(t *testing.T) {
	stopLng := 4 * step * degPerMile
	app := setupApp(makeDeps(
		routeOf(equatorRoute(6)),
		catalogueOf(
			station(1, "PILOT", 0.1, stopLng, 3.00),
			station(2, "LOVES", 0.2, stopLng+0.1, 3.50),
		),
	))

	status, body := postJSON(t, app, "/v1/optimal-route", `{"start_location":"Dallas, TX","end_location":"Phoenix, AZ"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var got optimalRoute
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Route.Coordinates) != 6 {
		t.Errorf("expected 6 coordinates, got %d", len(got.Route.Coordinates))
	}
	if got.Route.TotalDistanceMiles != 500 {
		t.Errorf("expected 500 miles, got %v", got.Route.TotalDistanceMiles)
	}
	if got.Route.Duration != "8 hours 20 mins" {
		t.Errorf("unexpected duration %q", got.Route.Duration)
	}
	if len(got.FuelStops) != 1 {
		t.Fatalf("expected 1 stop, got %d", len(got.FuelStops))
	}
	stop := got.FuelStops[0]
	if stop.Name != "PILOT" || stop.Price != 3.0 {
		t.Errorf("unexpected stop %+v", stop)
	}
	if stop.DistanceFromStart != 400 {
		t.Errorf("expected stop at 400 miles, got %v", stop.DistanceFromStart)
	}
	if got.Summary.NumberOfStops != 1 || got.Summary.TotalGallons != 50 || got.Summary.TotalCost != 150 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	if !got.Summary.CostEstimated || got.Summary.RangeExceeded {
		t.Errorf("unexpected flags %+v", got.Summary)
	}
}

func TestOptimalRoute_SingleTank(t *testing.T) {
	app := setupApp(makeDeps(
		routeOf(equatorRoute(2)),
		catalogueOf(station(7, "ORIGIN", 0.05, 0.05, 3.00)),
	))

	status, body := postJSON(t, app, "/v1/optimal-route", `{"start_location":"A","end_location":"B"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var got optimalRoute
	json.Unmarshal(body, &got)
	if len(got.FuelStops) != 0 {
		t.Errorf("expected no stops, got %d", len(got.FuelStops))
	}
	if got.FuelStops == nil {
		t.Error("fuel_stops must be an empty list, not null")
	}
	if got.Summary.OriginFillPrice == nil || *got.Summary.OriginFillPrice != 3.0 {
		t.Errorf("expected origin fill price 3.0, got %v", got.Summary.OriginFillPrice)
	}
	if got.Summary.TotalCost != 30 {
		t.Errorf("expected total cost 30, got %v", got.Summary.TotalCost)
	}
}

func TestOptimalRoute_LegacyPath(t *testing.T) {
	app := setupApp(makeDeps(routeOf(equatorRoute(2)), catalogueOf()))

	status, body := postJSON(t, app, "/api/optimal-route", `{"start_location":"A","end_location":"B"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var got optimalRoute
	json.Unmarshal(body, &got)
	if got.Summary.CostEstimated {
		t.Error("no station near the origin: cost must not be estimated")
	}
}

func TestOptimalRoute_MissingFields(t *testing.T) {
	app := setupApp(makeDeps(routeOf(equatorRoute(2)), catalogueOf()))

	bodies := map[string]string{
		"no end":     `{"start_location":"Dallas, TX"}`,
		"no start":   `{"end_location":"Phoenix, AZ"}`,
		"blank":      `{"start_location":"  ","end_location":"Phoenix, AZ"}`,
		"empty obj":  `{}`,
		"empty body": ``,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			status, resp := postJSON(t, app, "/v1/optimal-route", body)
			if status != 400 {
				t.Fatalf("expected 400, got %d", status)
			}
			var e apiError
			json.Unmarshal(resp, &e)
			if e.Error != "Missing required fields: start_location, end_location" {
				t.Errorf("unexpected message %q", e.Error)
			}
			if e.Code != "bad_request" {
				t.Errorf("expected bad_request, got %s", e.Code)
			}
			if e.RequestID == "" {
				t.Error("expected request_id in error")
			}
		})
	}
}

func TestOptimalRoute_InvalidJSON(t *testing.T) {
	app := setupApp(makeDeps(routeOf(equatorRoute(2)), catalogueOf()))

	status, _ := postJSON(t, app, "/v1/optimal-route", `{"start_location":`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestOptimalRoute_UpstreamErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrRouteNotFound, 404, "not_found"},
		{fmt.Errorf("directions: %w", domain.ErrUpstreamUnavailable), 502, "upstream_unavailable"},
		{fmt.Errorf("%w: Get \"https://maps.example/json?key=SECRET\": context deadline exceeded", domain.ErrUpstreamTimeout), 504, "upstream_timeout"},
		{errors.New("boom"), 500, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			routes := &mockRouteProvider{
				getRouteFn: func(context.Context, string, string) (*domain.Route, error) { return nil, tc.err },
			}
			app := setupApp(makeDeps(routes, catalogueOf()))

			status, body := postJSON(t, app, "/v1/optimal-route", `{"start_location":"A","end_location":"B"}`)
			if status != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, status, body)
			}
			var e apiError
			json.Unmarshal(body, &e)
			if e.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, e.Code)
			}
			if tc.status >= 500 && strings.Contains(string(body), "SECRET") {
				t.Errorf("upstream error detail exposed: %s", body)
			}
		})
	}
}

func TestOptimalRoute_CatalogueUnavailable(t *testing.T) {
	stations := &mockStationRepo{
		findCandidatesFn: func(context.Context, domain.Bounds, int) ([]domain.Candidate, error) {
			return nil, fmt.Errorf("query: %w", domain.ErrUpstreamUnavailable)
		},
	}
	app := setupApp(makeDeps(routeOf(equatorRoute(6)), stations))

	status, _ := postJSON(t, app, "/v1/optimal-route", `{"start_location":"A","end_location":"B"}`)
	if status != 502 {
		t.Fatalf("expected 502, got %d", status)
	}
}

// ---- Stations ----

func TestNearbyStations_Success(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf(
		station(3, "C", 35.3, -97.3, 3.10),
		station(1, "A", 35.1, -97.1, 2.95),
		station(2, "B", 35.2, -97.2, 3.10),
		station(9, "FAR", 40, -90, 1.00),
	)))

	status, body := get(t, app, "/v1/stations/nearby?lat=35.2&lng=-97.2&limit=5")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var got []struct {
		ID       int64            `json:"id"`
		Price    float64          `json:"price"`
		Location *domain.GeoPoint `json:"location"`
	}
	json.Unmarshal(body, &got)
	if len(got) != 3 {
		t.Fatalf("expected 3 stations, got %d", len(got))
	}
	ids := []int64{got[0].ID, got[1].ID, got[2].ID}
	if ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("expected price then id order [1 2 3], got %v", ids)
	}
	if got[0].Location == nil || got[0].Price != 2.95 {
		t.Errorf("unexpected first station %+v", got[0])
	}
}

func TestNearbyStations_BadParams(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf()))

	for _, q := range []string{
		"",
		"?lat=35",
		"?lat=abc&lng=-97",
		"?lat=95&lng=-97",
		"?lat=35&lng=-97&half_width=10",
		"?lat=35&lng=-97&limit=1000",
	} {
		status, _ := get(t, app, "/v1/stations/nearby"+q)
		if status != 400 {
			t.Errorf("%q: expected 400, got %d", q, status)
		}
	}
}

func TestGetStation(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf(station(42, "WOODSHED", 36.5, -95.2, 3.007))))

	status, body := get(t, app, "/v1/stations/42")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var got struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}
	json.Unmarshal(body, &got)
	if got.Name != "WOODSHED" || got.Price != 3.007 {
		t.Errorf("unexpected station %+v", got)
	}

	if status, _ := get(t, app, "/v1/stations/43"); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
	if status, _ := get(t, app, "/v1/stations/abc"); status != 400 {
		t.Errorf("expected 400, got %d", status)
	}
}

// ---- System ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf()))

	status, body := get(t, app, "/v1/health")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestReady(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf(), func(d *handler.Dependencies) {
		d.DB = &mockPinger{}
		d.Cache = &mockPinger{}
	}))
	if status, body := get(t, app, "/v1/ready"); status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	app = setupApp(makeDeps(nil, catalogueOf(), func(d *handler.Dependencies) {
		d.DB = &mockPinger{err: errors.New("connection refused")}
	}))
	status, body := get(t, app, "/v1/ready")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	if !strings.Contains(string(body), "connection refused") {
		t.Errorf("expected failing check in body, got %s", body)
	}

	// A failing cache degrades the service without taking it out of rotation.
	app = setupApp(makeDeps(nil, catalogueOf(), func(d *handler.Dependencies) {
		d.DB = &mockPinger{}
		d.Cache = &mockPinger{err: errors.New("i/o timeout")}
	}))
	status, body = get(t, app, "/v1/ready")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"degraded"`) {
		t.Errorf("expected degraded status, got %s", body)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf()))

	if status, _ := get(t, app, "/ws"); status != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL_OptimalRoute(t *testing.T) {
	stopLng := 4 * step * degPerMile
	app := setupApp(makeDeps(routeOf(equatorRoute(6)), catalogueOf(station(1, "PILOT", 0.1, stopLng, 3.00))))

	query := `{"query":"{ optimalRoute(start: \"A\", end: \"B\") { fuel_stops { name price } summary { number_of_stops total_cost } } }"}`
	status, body := postJSON(t, app, "/graphql", query)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var got struct {
		Data struct {
			OptimalRoute struct {
				FuelStops []struct {
					Name  string  `json:"name"`
					Price float64 `json:"price"`
				} `json:"fuel_stops"`
				Summary struct {
					NumberOfStops int     `json:"number_of_stops"`
					TotalCost     float64 `json:"total_cost"`
				} `json:"summary"`
			} `json:"optimalRoute"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Errors) > 0 {
		t.Fatalf("unexpected errors: %s", body)
	}
	r := got.Data.OptimalRoute
	if r.Summary.NumberOfStops != 1 || r.Summary.TotalCost != 150 || r.FuelStops[0].Name != "PILOT" {
		t.Errorf("unexpected result %s", body)
	}
}

func TestGraphQL_StationsNear(t *testing.T) {
	app := setupApp(makeDeps(nil, catalogueOf(
		station(1, "A", 35.1, -97.1, 2.95),
		station(9, "FAR", 40, -90, 1.00),
	)))

	query := `{"query":"{ stationsNear(lat: 35.0, lng: -97.0) { id name price location { lat lng } } }"}`
	status, body := postJSON(t, app, "/graphql", query)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"name":"A"`) || strings.Contains(string(body), "FAR") {
		t.Errorf("unexpected result %s", body)
	}
}
