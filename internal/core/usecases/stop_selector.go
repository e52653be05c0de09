package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/pkg/geospatial"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
)

// StopSelector walks a route polyline and picks refuel stops greedily.
//
// Distance is accumulated waypoint by waypoint. Once it reaches
// TriggerFraction*MaxRangeMiles the catalogue is queried around the current
// waypoint and every candidate is scored as
//
//	PriceWeight*price + DeviationWeight*distance(anchor, station)
//
// where anchor is the trip start or the previously selected station. The
// lowest score wins and resets both the anchor and the accumulated distance.
// When the search window is empty nothing is reset and the next waypoint
// searches again, so a leg can end up longer than the vehicle range.
type StopSelector struct {
	finder CandidateFinder
	cfg    OptimizerConfig
}

// NewStopSelector creates a new StopSelector.
func NewStopSelector(finder CandidateFinder, cfg OptimizerConfig) *StopSelector {
	return &StopSelector{finder: finder, cfg: cfg}
}

// Select returns the refuel stops along waypoints in travel order.
func (s *StopSelector) Select(ctx context.Context, waypoints []domain.Waypoint) ([]domain.SelectedStop, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: route needs at least 2 waypoints, got %d", domain.ErrInvalidInput, len(waypoints))
	}
	if err := s.cfg.validate(); err != nil {
		return nil, err
	}

	var (
		stops     []domain.SelectedStop
		anchor    = waypoints[0]
		acc       float64
		travelled float64
		trigger   = s.cfg.TriggerMiles()
		emptyHits int
	)

	for i := 1; i < len(waypoints); i++ {
		d, err := geospatial.DistanceMiles(waypoints[i-1], waypoints[i])
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i, err)
		}
		acc += d
		travelled += d

		if acc < trigger {
			continue
		}

		cands, err := s.finder.Query(ctx, waypoints[i], s.cfg.SearchHalfWidthDegrees, s.cfg.CandidateLimit)
		if err != nil {
			return nil, fmt.Errorf("query candidates at waypoint %d: %w", i, err)
		}

		best, ok := bestCandidate(anchor, cands, s.cfg)
		if !ok {
			emptyHits++
			continue
		}

		stops = append(stops, domain.SelectedStop{
			Station:                   best.Station,
			Price:                     best.Price,
			DistanceFromPreviousMiles: acc,
			DistanceFromStartMiles:    travelled,
		})
		anchor = best.Station.Location.Point
		acc = 0
	}

	if emptyHits > 0 {
		logging.FromContext(ctx).Debug("refuel search windows without candidates",
			"windows", emptyHits,
			"stops", len(stops),
		)
	}

	return stops, nil
}

// bestCandidate returns the lowest-scoring candidate. On equal scores the one
// seen first wins, which is the cheaper one given the catalogue order.
func bestCandidate(anchor domain.GeoPoint, cands []domain.Candidate, cfg OptimizerConfig) (domain.Candidate, bool) {
	var (
		best      domain.Candidate
		bestScore float64
		found     bool
	)
	for _, c := range cands {
		loc, ok := c.Station.Location.Get()
		if !ok {
			continue
		}
		dev, err := geospatial.DistanceMiles(anchor, loc)
		if err != nil {
			continue
		}
		score := cfg.PriceWeight*c.Price.Dollars() + cfg.DeviationWeight*dev
		if !found || score < bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}
