package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to the station store.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinatesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinates",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Int},
			"y": &graphql.Field{Type: graphql.Int},
		},
	})

	stationFields := graphql.Fields{
		"name":      &graphql.Field{Type: graphql.String},
		"coords":    &graphql.Field{Type: coordinatesType},
		"racks":     &graphql.Field{Type: graphql.Int},
		"bikes":     &graphql.Field{Type: graphql.Int},
		"distance":  &graphql.Field{Type: graphql.Int},
		"bearing":   &graphql.Field{Type: graphql.Int},
		"populated": &graphql.Field{Type: graphql.Boolean},
	}

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Station",
		Fields: stationFields,
	})

	rankedFields := graphql.Fields{"rank": &graphql.Field{Type: graphql.Int}}
	for name, f := range stationFields {
		rankedFields[name] = &graphql.Field{Type: f.Type}
	}
	rankedStationType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "RankedStation",
		Fields: rankedFields,
	})

	pendingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pending",
		Fields: graphql.Fields{
			"stations": &graphql.Field{Type: graphql.Int},
			"location": &graphql.Field{Type: graphql.Boolean},
			"bikes":    &graphql.Field{Type: graphql.Boolean},
		},
	})

	statusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Status",
		Fields: graphql.Fields{
			"count":         &graphql.Field{Type: graphql.Int},
			"pending":       &graphql.Field{Type: pendingType},
			"location":      &graphql.Field{Type: coordinatesType},
			"selected":      &graphql.Field{Type: graphql.Int},
			"compass_ready": &graphql.Field{Type: graphql.Boolean},
		},
	})

	selectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Selection",
		Fields: graphql.Fields{
			"rank":    &graphql.Field{Type: graphql.Int},
			"slot":    &graphql.Field{Type: graphql.Int},
			"station": &graphql.Field{Type: stationType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stations": &graphql.Field{
				Type:        graphql.NewList(rankedStationType),
				Description: "Stations ordered by distance",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					stations := deps.Stations.Stations()
					pg := newPagination(p.Args["offset"].(int), p.Args["limit"].(int), len(stations))
					start, end := pg.bounds()
					return stationViews(stations[start:end], start), nil
				},
			},
			"station": &graphql.Field{
				Type:        rankedStationType,
				Description: "Get the station at a display rank",
				Args: graphql.FieldConfigArgument{
					"rank": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					rank := p.Args["rank"].(int)
					st, ok := deps.Stations.StationAt(rank)
					if !ok {
						return nil, nil
					}
					return newStationView(rank, st), nil
				},
			},
			"status": &graphql.Field{
				Type:        statusType,
				Description: "Table size, readiness flags, location and selection",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Stations.Status(), nil
				},
			},
			"selected": &graphql.Field{
				Type:        selectionType,
				Description: "The focused station, if any",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sel, ok := deps.Stations.Selected()
					if !ok {
						return nil, nil
					}
					return sel, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"select": &graphql.Field{
				Type:        selectionType,
				Description: "Focus the station at a display rank",
				Args: graphql.FieldConfigArgument{
					"rank": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if !deps.Stations.Select(p.Args["rank"].(int)) {
						return nil, errors.New("no station at rank")
					}
					sel, _ := deps.Stations.Selected()
					return sel, nil
				},
			},
			"step": &graphql.Field{
				Type:        selectionType,
				Description: "Move the selection by delta ranks",
				Args: graphql.FieldConfigArgument{
					"delta": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if !deps.Stations.Step(p.Args["delta"].(int)) {
						return nil, errors.New("station table is empty")
					}
					sel, _ := deps.Stations.Selected()
					return sel, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
