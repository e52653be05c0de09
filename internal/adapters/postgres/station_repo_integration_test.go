//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/fuelroute/internal/adapters/postgres"
	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/pkg/config"
)

// Test rows live far from any real station so they never mix with seed data.
const testIDBase = 990000000

// setupTestDB connects to the database named by the usual config and clears
// earlier test rows. Run "migrate up" first.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("fuelroute-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	cleanup := func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM fuel_prices WHERE truck_stop_id >= $1`, testIDBase)
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM truck_stops WHERE opis_id >= $1`, testIDBase)
	}
	cleanup()
	t.Cleanup(cleanup)

	return db
}

func seedStations(t *testing.T, repo *postgres.StationRepo) {
	lat := func(v float64) *float64 { return &v }
	ctx := context.Background()

	stations := []domain.FuelStation{
		{ID: testIDBase + 1, Name: "TEST A", State: "OK", Location: domain.NewNullGeoPoint(lat(-60.1), lat(-150.1))},
		{ID: testIDBase + 2, Name: "TEST B", State: "OK", Location: domain.NewNullGeoPoint(lat(-60.2), lat(-150.2))},
		{ID: testIDBase + 3, Name: "TEST UNLOCATED", State: "OK"},
	}
	if err := repo.UpsertStations(ctx, stations); err != nil {
		t.Fatalf("upsert stations: %v", err)
	}

	now := time.Now().UTC()
	prices := []domain.FuelPrice{
		{StationID: testIDBase + 1, Price: 3400, RecordedAt: now},
		{StationID: testIDBase + 1, Price: 3100, RecordedAt: now},
		{StationID: testIDBase + 2, Price: 3250, RecordedAt: now},
		{StationID: testIDBase + 3, Price: 2000, RecordedAt: now},
	}
	if err := repo.InsertPrices(ctx, prices); err != nil {
		t.Fatalf("insert prices: %v", err)
	}
}

func TestStationRepo_FindCandidates(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewStationRepo(db)
	seedStations(t, repo)

	box := domain.Bounds{MinLat: -60.5, MinLng: -150.5, MaxLat: -59.5, MaxLng: -149.5}
	got, err := repo.FindCandidates(context.Background(), box, 10)
	if err != nil {
		t.Fatalf("find candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Station.ID != testIDBase+1 || got[0].Price != 3100 {
		t.Errorf("expected cheapest first at 3.100, got %d at %s", got[0].Station.ID, got[0].Price)
	}
	if got[1].Station.ID != testIDBase+2 {
		t.Errorf("expected station %d second, got %d", testIDBase+2, got[1].Station.ID)
	}
}

func TestStationRepo_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewStationRepo(db)
	seedStations(t, repo)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, testIDBase+3)
	if err != nil {
		t.Fatalf("get station: %v", err)
	}
	if got.Station.Location.Valid {
		t.Error("expected unlocated station")
	}
	if got.Price != 2000 {
		t.Errorf("expected price 2.000, got %s", got.Price)
	}

	if _, err := repo.GetByID(ctx, testIDBase+99); !errors.Is(err, domain.ErrStationNotFound) {
		t.Errorf("expected ErrStationNotFound, got %v", err)
	}
}

func TestStationRepo_UpsertKeepsLocation(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewStationRepo(db)
	seedStations(t, repo)
	ctx := context.Background()

	if err := repo.UpsertStations(ctx, []domain.FuelStation{{ID: testIDBase + 1, Name: "TEST A RENAMED"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, testIDBase+1)
	if err != nil {
		t.Fatalf("get station: %v", err)
	}
	if got.Station.Name != "TEST A RENAMED" {
		t.Errorf("expected renamed station, got %q", got.Station.Name)
	}
	if !got.Station.Location.Valid {
		t.Error("expected coordinates to survive an update without them")
	}
}
