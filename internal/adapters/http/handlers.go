package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/core/usecases"
	"github.com/samirrijal/molbubble/internal/pkg/appmessage"
	"github.com/samirrijal/molbubble/internal/pkg/geometry"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
)

// StationView is a station together with its display rank.
type StationView struct {
	Rank      int                `json:"rank"`
	Name      string             `json:"name"`
	Coords    domain.Coordinates `json:"coords"`
	Racks     uint8              `json:"racks"`
	Bikes     uint8              `json:"bikes"`
	Distance  uint16             `json:"distance"`
	Bearing   int32              `json:"bearing"`
	Populated bool               `json:"populated"`
}

func newStationView(rank int, st domain.Station) StationView {
	return StationView{
		Rank:      rank,
		Name:      st.Name,
		Coords:    st.Coords,
		Racks:     st.Racks,
		Bikes:     st.Bikes,
		Distance:  st.Distance,
		Bearing:   st.Bearing,
		Populated: st.Populated,
	}
}

func stationViews(stations []domain.Station, offset int) []StationView {
	out := make([]StationView, len(stations))
	for i, st := range stations {
		out[i] = newStationView(offset+i, st)
	}
	return out
}

// CompassReading is the compass screen for the selected station.
type CompassReading struct {
	Rank     int            `json:"rank"`
	Station  domain.Station `json:"station"`
	Distance uint16         `json:"distance"`
	Bearing  int32          `json:"bearing"`
	Heading  int32          `json:"heading"`
	Needle   int32          `json:"needle"`
}

// observe refreshes the table gauges after a mutation.
func observe(deps *Dependencies) {
	st := deps.Stations.Status()
	metrics.ObservePending(st.Count, st.Pending)
}

// ListStationsHandler returns stations in display order.
func ListStationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stations := deps.Stations.Stations()

		pg := newPagination(c.QueryInt("offset", 0), c.QueryInt("limit", defaultPageLimit), len(stations))
		start, end := pg.bounds()
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: stationViews(stations[start:end], start), Pagination: pg})
	}
}

// GetStationHandler returns the station at a display rank.
func GetStationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rank, err := c.ParamsInt("rank")
		if err != nil {
			return errBadRequest(c, "rank must be an integer")
		}

		st, ok := deps.Stations.StationAt(rank)
		if !ok {
			return errNotFound(c, "no station at rank")
		}
		return c.JSON(newStationView(rank, st))
	}
}

// StatusHandler returns the table size, readiness flags, location and selection.
func StatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Stations.Status())
	}
}

type selectionRequest struct {
	Rank *int `json:"rank"`
	Step *int `json:"step"`
}

// SelectionHandler focuses a station by rank or moves the cursor by step.
func SelectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req selectionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		switch {
		case req.Rank != nil:
			if !deps.Stations.Select(*req.Rank) {
				return errNotFound(c, "no station at rank")
			}
		case req.Step != nil:
			if !deps.Stations.Step(*req.Step) {
				return errConflict(c, "station table is empty")
			}
		default:
			return errBadRequest(c, "rank or step is required")
		}

		sel, _ := deps.Stations.Selected()
		return c.JSON(sel)
	}
}

// CompassHandler points the needle at the selected station for a device heading.
func CompassHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		heading := c.QueryInt("heading", 0)
		if heading < 0 || heading >= domain.TrigMaxAngle {
			return errBadRequest(c, "heading must be in [0, 65536)")
		}

		if !deps.Stations.CompassReady() {
			return errConflict(c, "compass not ready: stations or location pending")
		}
		sel, ok := deps.Stations.Selected()
		if !ok {
			return errNotFound(c, "no station selected")
		}

		return c.JSON(CompassReading{
			Rank:     sel.Rank,
			Station:  sel.Station,
			Distance: sel.Station.Distance,
			Bearing:  sel.Station.Bearing,
			Heading:  int32(heading),
			Needle:   geometry.NeedleAngle(int32(heading), sel.Station.Bearing),
		})
	}
}

// RefreshHandler asks the companion to resend the bike counts.
func RefreshHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Inbox == nil {
			return errUnavailable(c, "outbox not available")
		}
		err := deps.Inbox.RequestRefresh(c.UserContext())
		if errors.Is(err, usecases.ErrRefreshThrottled) {
			return errTooManyRequests(c, err.Error())
		}
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("refresh request failed", "error", err)
			return errUnavailable(c, err.Error())
		}
		return c.Status(202).JSON(fiber.Map{"status": "requested"})
	}
}

type resizeCommand struct {
	Count int `json:"count"`
}

// ResizeCommandHandler announces a new station count.
func ResizeCommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cmd resizeCommand
		if err := c.BodyParser(&cmd); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if !deps.Stations.Resize(cmd.Count) {
			return errBadRequest(c, "count out of range")
		}
		observe(deps)
		return c.JSON(deps.Stations.Status())
	}
}

type stationCommand struct {
	Index int     `json:"index"`
	Name  *string `json:"name"`
	X     *int16  `json:"x"`
	Y     *int16  `json:"y"`
	Racks *uint8  `json:"racks"`
}

// StationCommandHandler applies a station detail record.
func StationCommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cmd stationCommand
		if err := c.BodyParser(&cmd); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		var fields []domain.StationFieldUpdate
		if cmd.Name != nil {
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldName, Text: *cmd.Name})
		}
		if cmd.X != nil {
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldX, Value: int32(*cmd.X)})
		}
		if cmd.Y != nil {
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldY, Value: int32(*cmd.Y)})
		}
		if cmd.Racks != nil {
			fields = append(fields, domain.StationFieldUpdate{Field: domain.FieldRacks, Value: int32(*cmd.Racks)})
		}

		if !deps.Stations.ApplyStationFields(cmd.Index, fields) {
			return errBadRequest(c, "index out of range")
		}
		observe(deps)
		return c.JSON(deps.Stations.Status())
	}
}

type bikesCommand struct {
	Start int   `json:"start"`
	Bikes []int `json:"bikes"`
}

// BikesCommandHandler applies a run of bike counts starting at start.
func BikesCommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cmd bikesCommand
		if err := c.BodyParser(&cmd); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(cmd.Bikes) == 0 {
			return errBadRequest(c, "bikes must not be empty")
		}
		bikes := make([]byte, len(cmd.Bikes))
		for i, b := range cmd.Bikes {
			if b < 0 || b > 255 {
				return errBadRequest(c, "bike counts must be in [0, 255]")
			}
			bikes[i] = byte(b)
		}
		if !deps.Stations.ApplyBulkBikes(cmd.Start, bikes) {
			return errBadRequest(c, "start out of range")
		}
		observe(deps)
		return c.JSON(deps.Stations.Status())
	}
}

type locationCommand struct {
	X *int16 `json:"x"`
	Y *int16 `json:"y"`
}

// LocationCommandHandler reports a user position. A missing coordinate
// keeps its last known value.
func LocationCommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cmd locationCommand
		if err := c.BodyParser(&cmd); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if cmd.X == nil && cmd.Y == nil {
			return errBadRequest(c, "x or y is required")
		}

		loc := deps.Stations.LastKnown()
		if cmd.X != nil {
			loc.X = *cmd.X
		}
		if cmd.Y != nil {
			loc.Y = *cmd.Y
		}
		deps.Stations.ApplyLocation(loc)
		observe(deps)
		return c.JSON(deps.Stations.Status())
	}
}

// MessageHandler accepts a raw AppMessage dictionary and dispatches it the
// same way as the NATS inbox.
func MessageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Inbox == nil {
			return errUnavailable(c, "inbox not available")
		}

		msg, err := appmessage.Decode(c.Body())
		if err != nil {
			metrics.InboxDecodeErrors.Inc()
			return errBadRequest(c, err.Error())
		}

		kind := deps.Inbox.Handle(msg)
		metrics.InboxMessages.WithLabelValues(string(kind)).Inc()
		if kind == domain.KindDropped {
			return errUnprocessable(c, "message dropped")
		}
		observe(deps)
		return c.JSON(fiber.Map{"kind": kind})
	}
}
