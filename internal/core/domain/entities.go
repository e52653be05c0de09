package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Price is a fixed-point fuel price in thousandths of a dollar (3 decimals).
type Price int64

// ParsePrice parses a decimal dollar amount such as "3.459".
func ParsePrice(s string) (Price, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse price %q: out of range", s)
	}
	return Price(math.Round(f * 1000)), nil
}

// PriceFromDollars converts a float dollar amount, rounding to 3 decimals.
func PriceFromDollars(d float64) Price {
	return Price(math.Round(d * 1000))
}

// Dollars returns the price as a float dollar amount.
func (p Price) Dollars() float64 {
	return float64(p) / 1000
}

func (p Price) String() string {
	return strconv.FormatFloat(p.Dollars(), 'f', 3, 64)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	v, err := ParsePrice(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// FuelStation is a truck stop from the fuel price catalogue.
type FuelStation struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Address  string       `json:"address"`
	City     string       `json:"city"`
	State    string       `json:"state"`
	RackID   int64        `json:"rack_id"`
	Location NullGeoPoint `json:"location"`
}

// FuelPrice is a single price record for a station. A station may have many.
type FuelPrice struct {
	StationID  int64     `json:"station_id"`
	Price      Price     `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Candidate pairs a station with its effective price: the minimum of all of
// its price records at query time.
type Candidate struct {
	Station FuelStation `json:"station"`
	Price   Price       `json:"price"`
}

// SelectedStop is a refuel decision along the route, in travel order.
type SelectedStop struct {
	Station FuelStation `json:"station"`
	Price   Price       `json:"price"`
	// Route distance covered since the previous stop (or the trip start).
	DistanceFromPreviousMiles float64 `json:"distance_from_previous_miles"`
	// Cumulative route distance at which the stop was chosen.
	DistanceFromStartMiles float64 `json:"distance_from_start_miles"`
}

// Route is what a route provider returns for a start/end pair.
type Route struct {
	Waypoints           []Waypoint `json:"waypoints"`
	TotalDistanceMeters float64    `json:"total_distance_meters"`
	DurationText        string     `json:"duration_text"`
}

// TripPlan is the result of a fuel-stop optimisation. It is built once and
// never mutated or persisted.
type TripPlan struct {
	StartLocation      string         `json:"start_location"`
	EndLocation        string         `json:"end_location"`
	Waypoints          []Waypoint     `json:"waypoints"`
	TotalDistanceMiles float64        `json:"total_distance_miles"`
	Duration           string         `json:"duration"`
	Stops              []SelectedStop `json:"stops"`
	TotalGallons       float64        `json:"total_gallons"`
	TotalCost          float64        `json:"total_cost"`
	StopCount          int            `json:"stop_count"`

	// OriginFillPrice is the price used when no stop was selected and the
	// whole trip is covered by the tank filled at the start.
	OriginFillPrice *Price `json:"origin_fill_price,omitempty"`
	// CostEstimated is false when no price could be attached to the trip.
	CostEstimated bool `json:"cost_estimated"`
	// RangeExceeded is set when some leg is longer than the vehicle range,
	// which happens when a search window had no candidates.
	RangeExceeded bool `json:"range_exceeded"`
}

// PlanEvent is published after a plan is computed.
type PlanEvent struct {
	StartLocation      string    `json:"start_location"`
	EndLocation        string    `json:"end_location"`
	TotalDistanceMiles float64   `json:"total_distance_miles"`
	TotalCost          float64   `json:"total_cost"`
	StopCount          int       `json:"stop_count"`
	StationIDs         []int64   `json:"station_ids"`
	RangeExceeded      bool      `json:"range_exceeded"`
	ComputedAt         time.Time `json:"computed_at"`
}

// ImportResult summarises a catalogue import run.
type ImportResult struct {
	Stations    int       `json:"stations"`
	Prices      int       `json:"prices"`
	Skipped     int       `json:"skipped"`
	Unlocated   int       `json:"unlocated"`
	CompletedAt time.Time `json:"completed_at"`
}
