package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// StationRepo implements ports.StationRepository and ports.CatalogueWriter.
type StationRepo struct {
	db *DB
}

// NewStationRepo creates a new StationRepo.
func NewStationRepo(db *DB) *StationRepo {
	return &StationRepo{db: db}
}

// Effective price is the minimum price record, carried as thousandths so it
// scans straight into domain.Price.
const candidateColumns = `
	s.opis_id, s.name, s.address, s.city, s.state, s.rack_id,
	s.latitude, s.longitude,
	(MIN(p.price) * 1000)::BIGINT AS min_price`

// FindCandidates returns priced, located stations inside bounds.
func (r *StationRepo) FindCandidates(ctx context.Context, b domain.Bounds, limit int) ([]domain.Candidate, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+candidateColumns+`
		FROM truck_stops s
		JOIN fuel_prices p ON p.truck_stop_id = s.opis_id
		WHERE s.latitude IS NOT NULL AND s.longitude IS NOT NULL
		  AND s.latitude BETWEEN $1 AND $2
		  AND s.longitude BETWEEN $3 AND $4
		GROUP BY s.opis_id
		ORDER BY min_price ASC, s.opis_id ASC
		LIMIT $5
	`, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng, limit)
	if err != nil {
		return nil, storeError("find candidates", err)
	}
	defer rows.Close()

	cands := make([]domain.Candidate, 0, limit)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, storeError("scan candidate", err)
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("find candidates", err)
	}
	return cands, nil
}

// GetByID returns a station with its effective price. Stations without any
// price record are reported as not found.
func (r *StationRepo) GetByID(ctx context.Context, id int64) (*domain.Candidate, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+candidateColumns+`
		FROM truck_stops s
		JOIN fuel_prices p ON p.truck_stop_id = s.opis_id
		WHERE s.opis_id = $1
		GROUP BY s.opis_id
	`, id)

	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStationNotFound
	}
	if err != nil {
		return nil, storeError("get station", err)
	}
	return &c, nil
}

// UpsertStations inserts stations using pgx.Batch. Known stations keep their
// coordinates when the new row has none.
func (r *StationRepo) UpsertStations(ctx context.Context, stations []domain.FuelStation) error {
	batch := &pgx.Batch{}
	for _, s := range stations {
		var lat, lng *float64
		if p, ok := s.Location.Get(); ok {
			lat, lng = &p.Lat, &p.Lng
		}
		batch.Queue(`
			INSERT INTO truck_stops (opis_id, name, address, city, state, rack_id, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (opis_id) DO UPDATE
			SET name = EXCLUDED.name, address = EXCLUDED.address,
			    city = EXCLUDED.city, state = EXCLUDED.state, rack_id = EXCLUDED.rack_id,
			    latitude = COALESCE(EXCLUDED.latitude, truck_stops.latitude),
			    longitude = COALESCE(EXCLUDED.longitude, truck_stops.longitude),
			    updated_at = NOW()
		`, s.ID, s.Name, s.Address, s.City, s.State, s.RackID, lat, lng)
	}
	return r.sendBatch(ctx, batch, "upsert stations")
}

// InsertPrices appends price records using pgx.Batch.
func (r *StationRepo) InsertPrices(ctx context.Context, prices []domain.FuelPrice) error {
	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(`
			INSERT INTO fuel_prices (truck_stop_id, price, recorded_at)
			VALUES ($1, $2::NUMERIC / 1000, $3)
		`, p.StationID, int64(p.Price), p.RecordedAt)
	}
	return r.sendBatch(ctx, batch, "insert prices")
}

func (r *StationRepo) sendBatch(ctx context.Context, batch *pgx.Batch, op string) error {
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return storeError(op, err)
		}
	}
	return nil
}

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var (
		c        domain.Candidate
		lat, lng *float64
		price    int64
	)
	err := row.Scan(
		&c.Station.ID, &c.Station.Name, &c.Station.Address, &c.Station.City,
		&c.Station.State, &c.Station.RackID, &lat, &lng, &price,
	)
	if err != nil {
		return c, err
	}
	c.Station.Location = domain.NewNullGeoPoint(lat, lng)
	c.Price = domain.Price(price)
	return c, nil
}
