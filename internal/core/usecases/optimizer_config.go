package usecases

import (
	"fmt"
	"time"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// OptimizerConfig holds the vehicle and heuristic parameters used by the
// stop selector and the plan service.
type OptimizerConfig struct {
	MaxRangeMiles          float64
	MilesPerGallon         float64
	TriggerFraction        float64
	SearchHalfWidthDegrees float64
	CandidateLimit         int
	PriceWeight            float64
	DeviationWeight        float64

	// UpstreamTimeout bounds a whole Plan call. Zero means no extra deadline.
	UpstreamTimeout time.Duration
}

// DefaultOptimizerConfig returns the standard truck profile: 500 mile range,
// 10 mpg, search from 80% of range.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MaxRangeMiles:          500,
		MilesPerGallon:         10,
		TriggerFraction:        0.8,
		SearchHalfWidthDegrees: 0.5,
		CandidateLimit:         10,
		PriceWeight:            0.7,
		DeviationWeight:        0.3,
		UpstreamTimeout:        20 * time.Second,
	}
}

// TriggerMiles is the accumulated distance at which a refuel search starts.
func (c OptimizerConfig) TriggerMiles() float64 {
	return c.TriggerFraction * c.MaxRangeMiles
}

func (c OptimizerConfig) validate() error {
	if c.MaxRangeMiles <= 0 || c.MilesPerGallon <= 0 {
		return fmt.Errorf("%w: range and mileage must be positive", domain.ErrInvalidInput)
	}
	if c.TriggerFraction <= 0 || c.TriggerFraction > 1 {
		return fmt.Errorf("%w: trigger fraction %v out of (0, 1]", domain.ErrInvalidInput, c.TriggerFraction)
	}
	if c.SearchHalfWidthDegrees <= 0 || c.CandidateLimit <= 0 {
		return fmt.Errorf("%w: search window must be positive", domain.ErrInvalidInput)
	}
	return nil
}
