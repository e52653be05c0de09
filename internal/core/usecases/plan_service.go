package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/fuelroute/internal/core/domain"
	"github.com/samirrijal/fuelroute/internal/core/ports"
	"github.com/samirrijal/fuelroute/internal/pkg/geospatial"
	"github.com/samirrijal/fuelroute/internal/pkg/logging"
	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
	"github.com/samirrijal/fuelroute/internal/pkg/telemetry"
)

const routeCachePrefix = "route:"

// PlanService turns a start/end pair into a TripPlan with fuel stops.
// It holds no per-request state and is safe for concurrent use.
type PlanService struct {
	routes    ports.RouteProvider
	catalogue CandidateFinder
	selector  *StopSelector
	events    ports.EventPublisher
	cache     ports.CacheService
	cfg       OptimizerConfig
	routeTTL  int
}

// NewPlanService creates a new PlanService. events and cache may be nil.
func NewPlanService(
	routes ports.RouteProvider,
	catalogue CandidateFinder,
	events ports.EventPublisher,
	cache ports.CacheService,
	cfg OptimizerConfig,
	routeCacheTTL int,
) *PlanService {
	return &PlanService{
		routes:    routes,
		catalogue: catalogue,
		selector:  NewStopSelector(catalogue, cfg),
		events:    events,
		cache:     cache,
		cfg:       cfg,
		routeTTL:  routeCacheTTL,
	}
}

// Config returns the optimizer parameters the service was built with.
func (s *PlanService) Config() OptimizerConfig {
	return s.cfg
}

// Plan computes the route between start and end, the refuel stops along it
// and the fuel cost. Either a complete plan or an error is returned.
func (s *PlanService) Plan(ctx context.Context, start, end string) (*domain.TripPlan, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		metrics.PlansComputed.WithLabelValues("invalid_input").Inc()
		return nil, fmt.Errorf("%w: start_location and end_location are required", domain.ErrInvalidInput)
	}

	if s.cfg.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "plan",
		attribute.String("start", start),
		attribute.String("end", end),
	)
	plan, err := s.plan(ctx, start, end)
	if err != nil {
		err = upstreamError(ctx, err)
	}
	telemetry.EndSpan(span, err)

	if err != nil {
		metrics.PlansComputed.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	metrics.PlansComputed.WithLabelValues("ok").Inc()
	metrics.StopsPerPlan.Observe(float64(plan.StopCount))
	if plan.RangeExceeded {
		metrics.RangeExceeded.Inc()
		logging.FromContext(ctx).Warn("plan has a leg longer than vehicle range",
			"start", start,
			"end", end,
			"max_range_miles", s.cfg.MaxRangeMiles,
		)
	}

	s.publish(ctx, plan)
	return plan, nil
}

func (s *PlanService) plan(ctx context.Context, start, end string) (*domain.TripPlan, error) {
	route, err := s.fetchRoute(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if route == nil || len(route.Waypoints) < 2 {
		return nil, fmt.Errorf("%s to %s: %w", start, end, domain.ErrRouteNotFound)
	}

	stops, err := s.selector.Select(ctx, route.Waypoints)
	if err != nil {
		return nil, fmt.Errorf("select stops: %w", err)
	}
	if stops == nil {
		stops = []domain.SelectedStop{}
	}

	miles := geospatial.MetersToMiles(route.TotalDistanceMeters)
	gallons := miles / s.cfg.MilesPerGallon

	plan := &domain.TripPlan{
		StartLocation:      start,
		EndLocation:        end,
		Waypoints:          route.Waypoints,
		TotalDistanceMiles: miles,
		Duration:           route.DurationText,
		Stops:              stops,
		TotalGallons:       gallons,
		StopCount:          len(stops),
	}

	if len(stops) > 0 {
		plan.TotalCost = EstimateCost(gallons, s.cfg.MilesPerGallon, stops)
		plan.CostEstimated = true
	} else {
		// Single tank: price the whole trip at the best station around the start.
		origin := route.Waypoints[0]
		cands, err := s.catalogue.Query(ctx, origin, s.cfg.SearchHalfWidthDegrees, s.cfg.CandidateLimit)
		if err != nil {
			return nil, fmt.Errorf("query origin candidates: %w", err)
		}
		if best, ok := bestCandidate(origin, cands, s.cfg); ok {
			price := best.Price
			plan.OriginFillPrice = &price
			plan.TotalCost = gallons * price.Dollars()
			plan.CostEstimated = true
		}
	}

	exceeded, err := s.rangeExceeded(route.Waypoints, stops)
	if err != nil {
		return nil, err
	}
	plan.RangeExceeded = exceeded

	return plan, nil
}

func (s *PlanService) fetchRoute(ctx context.Context, start, end string) (*domain.Route, error) {
	cacheKey := routeCachePrefix + strings.ToLower(start) + "|" + strings.ToLower(end)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var route domain.Route
			if err := json.Unmarshal(data, &route); err == nil {
				metrics.CacheHits.WithLabelValues("route").Inc()
				return &route, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route").Inc()
	}

	ctx, span := telemetry.StartSpan(ctx, "route.fetch")
	route, err := s.routes.GetRoute(ctx, start, end)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}

	if s.cache != nil && route != nil && s.routeTTL > 0 {
		if data, err := json.Marshal(route); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.routeTTL)
		}
	}

	return route, nil
}

// rangeExceeded reports whether any leg, including the one from the last stop
// to the destination, is longer than the vehicle range.
func (s *PlanService) rangeExceeded(waypoints []domain.Waypoint, stops []domain.SelectedStop) (bool, error) {
	var lastStopAt float64
	for _, st := range stops {
		if st.DistanceFromPreviousMiles > s.cfg.MaxRangeMiles {
			return true, nil
		}
		lastStopAt = st.DistanceFromStartMiles
	}
	total, err := geospatial.PathMiles(waypoints)
	if err != nil {
		return false, err
	}
	return total-lastStopAt > s.cfg.MaxRangeMiles, nil
}

func (s *PlanService) publish(ctx context.Context, plan *domain.TripPlan) {
	if s.events == nil {
		return
	}

	ids := make([]int64, len(plan.Stops))
	for i, st := range plan.Stops {
		ids[i] = st.Station.ID
	}
	event := &domain.PlanEvent{
		StartLocation:      plan.StartLocation,
		EndLocation:        plan.EndLocation,
		TotalDistanceMiles: plan.TotalDistanceMiles,
		TotalCost:          plan.TotalCost,
		StopCount:          plan.StopCount,
		StationIDs:         ids,
		RangeExceeded:      plan.RangeExceeded,
		ComputedAt:         time.Now().UTC(),
	}

	if err := s.events.PublishPlanComputed(context.WithoutCancel(ctx), event); err != nil {
		logging.FromContext(ctx).Warn("failed to publish plan event", "error", err)
	}
}

// upstreamError maps an expired plan deadline to ErrUpstreamTimeout.
func upstreamError(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrUpstreamTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrRouteNotFound):
		return "route_not_found"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "error"
	}
}
