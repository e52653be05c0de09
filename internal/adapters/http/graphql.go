package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. Resolvers
// return the REST response types, so both surfaces share field names.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.Int},
			"name":     &graphql.Field{Type: graphql.String},
			"address":  &graphql.Field{Type: graphql.String},
			"city":     &graphql.Field{Type: graphql.String},
			"state":    &graphql.Field{Type: graphql.String},
			"rack_id":  &graphql.Field{Type: graphql.Int},
			"location": &graphql.Field{Type: geoPointType},
			"price":    &graphql.Field{Type: graphql.Float},
		},
	})

	fuelStopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FuelStop",
		Fields: graphql.Fields{
			"id":                  &graphql.Field{Type: graphql.Int},
			"name":                &graphql.Field{Type: graphql.String},
			"address":             &graphql.Field{Type: graphql.String},
			"city":                &graphql.Field{Type: graphql.String},
			"state":               &graphql.Field{Type: graphql.String},
			"location":            &graphql.Field{Type: geoPointType},
			"price":               &graphql.Field{Type: graphql.Float},
			"distance_from_start": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"coordinates":          &graphql.Field{Type: graphql.NewList(geoPointType)},
			"total_distance_miles": &graphql.Field{Type: graphql.Float},
			"duration":             &graphql.Field{Type: graphql.String},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Summary",
		Fields: graphql.Fields{
			"total_cost":        &graphql.Field{Type: graphql.Float},
			"total_gallons":     &graphql.Field{Type: graphql.Float},
			"number_of_stops":   &graphql.Field{Type: graphql.Int},
			"cost_estimated":    &graphql.Field{Type: graphql.Boolean},
			"range_exceeded":    &graphql.Field{Type: graphql.Boolean},
			"origin_fill_price": &graphql.Field{Type: graphql.Float},
		},
	})

	optimalRouteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "OptimalRoute",
		Fields: graphql.Fields{
			"route":      &graphql.Field{Type: routeType},
			"fuel_stops": &graphql.Field{Type: graphql.NewList(fuelStopType)},
			"summary":    &graphql.Field{Type: summaryType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"optimalRoute": &graphql.Field{
				Type:        optimalRouteType,
				Description: "Plan fuel stops between two locations",
				Args: graphql.FieldConfigArgument{
					"start": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"end":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					start := p.Args["start"].(string)
					end := p.Args["end"].(string)
					plan, err := deps.Plans.Plan(p.Context, start, end)
					if err != nil {
						return nil, err
					}
					return toResponse(plan), nil
				},
			},
			"stationsNear": &graphql.Field{
				Type:        graphql.NewList(stationType),
				Description: "Priced stations in a degree box around a point, cheapest first",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"halfWidth": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.5},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.GeoPoint{
						Lat: p.Args["lat"].(float64),
						Lng: p.Args["lng"].(float64),
					}
					halfWidth := p.Args["halfWidth"].(float64)
					limit := p.Args["limit"].(int)
					cands, err := deps.Catalogue.Query(p.Context, center, halfWidth, limit)
					if err != nil {
						return nil, err
					}
					out := make([]stationDTO, 0, len(cands))
					for _, c := range cands {
						out = append(out, toStation(c))
					}
					return out, nil
				},
			},
			"station": &graphql.Field{
				Type:        stationType,
				Description: "Get a station by its OPIS ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(int)
					cand, err := deps.Catalogue.GetStation(p.Context, int64(id))
					if err != nil {
						return nil, err
					}
					return toStation(*cand), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
