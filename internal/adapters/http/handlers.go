package http

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

const missingFieldsMessage = "Missing required fields: start_location, end_location"

var validate = validator.New(validator.WithRequiredStructEnabled())

type optimalRouteRequest struct {
	StartLocation string `json:"start_location" validate:"required,max=200"`
	EndLocation   string `json:"end_location" validate:"required,max=200"`
}

type routeDTO struct {
	Coordinates        []domain.GeoPoint `json:"coordinates"`
	TotalDistanceMiles float64           `json:"total_distance_miles"`
	Duration           string            `json:"duration"`
}

type fuelStopDTO struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Address           string          `json:"address"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	Location          domain.GeoPoint `json:"location"`
	Price             float64         `json:"price"`
	DistanceFromStart float64         `json:"distance_from_start"`
}

type summaryDTO struct {
	TotalCost       float64  `json:"total_cost"`
	TotalGallons    float64  `json:"total_gallons"`
	NumberOfStops   int      `json:"number_of_stops"`
	CostEstimated   bool     `json:"cost_estimated"`
	RangeExceeded   bool     `json:"range_exceeded"`
	OriginFillPrice *float64 `json:"origin_fill_price,omitempty"`
}

type optimalRouteResponse struct {
	Route     routeDTO      `json:"route"`
	FuelStops []fuelStopDTO `json:"fuel_stops"`
	Summary   summaryDTO    `json:"summary"`
}

type stationDTO struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Address  string           `json:"address"`
	City     string           `json:"city"`
	State    string           `json:"state"`
	RackID   int64            `json:"rack_id"`
	Location *domain.GeoPoint `json:"location"`
	Price    float64          `json:"price"`
}

type nearbyQuery struct {
	Lat       *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lng       *float64 `query:"lng" validate:"required,gte=-180,lte=180"`
	HalfWidth float64  `query:"half_width" validate:"gte=0,lte=5"`
	Limit     int      `query:"limit" validate:"gte=0,lte=100"`
}

// toResponse renders a plan in the public response shape. Money is rounded
// to cents, distances and volumes to two decimals.
func toResponse(plan *domain.TripPlan) optimalRouteResponse {
	resp := optimalRouteResponse{
		Route: routeDTO{
			Coordinates:        plan.Waypoints,
			TotalDistanceMiles: round2(plan.TotalDistanceMiles),
			Duration:           plan.Duration,
		},
		FuelStops: make([]fuelStopDTO, 0, len(plan.Stops)),
		Summary: summaryDTO{
			TotalCost:     round2(plan.TotalCost),
			TotalGallons:  round2(plan.TotalGallons),
			NumberOfStops: plan.StopCount,
			CostEstimated: plan.CostEstimated,
			RangeExceeded: plan.RangeExceeded,
		},
	}
	if resp.Route.Coordinates == nil {
		resp.Route.Coordinates = []domain.GeoPoint{}
	}
	if plan.OriginFillPrice != nil {
		p := plan.OriginFillPrice.Dollars()
		resp.Summary.OriginFillPrice = &p
	}
	for _, s := range plan.Stops {
		resp.FuelStops = append(resp.FuelStops, fuelStopDTO{
			ID:                s.Station.ID,
			Name:              s.Station.Name,
			Address:           s.Station.Address,
			City:              s.Station.City,
			State:             s.Station.State,
			Location:          s.Station.Location.Point,
			Price:             s.Price.Dollars(),
			DistanceFromStart: round2(s.DistanceFromStartMiles),
		})
	}
	return resp
}

func toStation(c domain.Candidate) stationDTO {
	dto := stationDTO{
		ID:      c.Station.ID,
		Name:    c.Station.Name,
		Address: c.Station.Address,
		City:    c.Station.City,
		State:   c.Station.State,
		RackID:  c.Station.RackID,
		Price:   c.Price.Dollars(),
	}
	if pt, ok := c.Station.Location.Get(); ok {
		dto.Location = &pt
	}
	return dto
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// OptimalRouteHandler plans fuel stops for a start/end pair.
func OptimalRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req optimalRouteRequest
		if body := c.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return errBadRequest(c, "invalid JSON body")
			}
		}
		req.StartLocation = strings.TrimSpace(req.StartLocation)
		req.EndLocation = strings.TrimSpace(req.EndLocation)

		if err := validate.Struct(req); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && onlyRequired(fieldErrs) {
				return errBadRequest(c, missingFieldsMessage)
			}
			return errBadRequest(c, "start_location and end_location must be at most 200 characters")
		}

		plan, err := deps.Plans.Plan(c.UserContext(), req.StartLocation, req.EndLocation)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(toResponse(plan))
	}
}

// NearbyStationsHandler lists priced stations in a degree box around a point,
// cheapest first.
func NearbyStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q nearbyQuery
		if err := c.QueryParser(&q); err != nil {
			return errBadRequest(c, "lat, lng, half_width and limit must be numbers")
		}
		if err := validate.Struct(q); err != nil {
			return errBadRequest(c, "lat (-90..90) and lng (-180..180) are required; half_width must be at most 5 and limit at most 100")
		}

		cfg := deps.Plans.Config()
		halfWidth := q.HalfWidth
		if halfWidth == 0 {
			halfWidth = cfg.SearchHalfWidthDegrees
		}
		limit := q.Limit
		if limit == 0 {
			limit = cfg.CandidateLimit
		}

		center := domain.GeoPoint{Lat: *q.Lat, Lng: *q.Lng}
		cands, err := deps.Catalogue.Query(c.UserContext(), center, halfWidth, limit)
		if err != nil {
			return errFromDomain(c, err)
		}

		out := make([]stationDTO, 0, len(cands))
		for _, cand := range cands {
			out = append(out, toStation(cand))
		}
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(out)
	}
}

// GetStationHandler returns a single station with its effective price.
func GetStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || id <= 0 {
			return errBadRequest(c, "station id must be a positive integer")
		}

		cand, err := deps.Catalogue.GetStation(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=600")
		return c.JSON(toStation(*cand))
	}
}

func onlyRequired(errs validator.ValidationErrors) bool {
	for _, fe := range errs {
		if fe.Tag() != "required" {
			return false
		}
	}
	return true
}
