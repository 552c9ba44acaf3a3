package domain

import "math"

const (
	// MaxStationNameLength is the station name buffer size, terminator included.
	MaxStationNameLength = 32

	// TrigMaxAngle is one full turn in fixed-point angle units.
	TrigMaxAngle = 0x10000
)

// Station is one bike-share dock as known to the watch.
type Station struct {
	Name      string      `json:"name"`
	Coords    Coordinates `json:"coords"`
	Racks     uint8       `json:"racks"`
	Bikes     uint8       `json:"bikes"`
	Distance  uint16      `json:"distance"`
	Bearing   int32       `json:"bearing"`
	Populated bool        `json:"populated"`
}

// Pending tracks which categories of data have not fully arrived yet.
type Pending struct {
	Stations int  `json:"stations"`
	Location bool `json:"location"`
	Bikes    bool `json:"bikes"`
}

// InitialPending is the state of a session before the first count announcement.
func InitialPending() Pending {
	return Pending{Stations: math.MaxInt32, Location: true, Bikes: true}
}

// StationField identifies a field carried by a station detail record.
type StationField uint8

const (
	FieldName StationField = iota
	FieldX
	FieldY
	FieldRacks
)

// StationFieldUpdate assigns one field of a station. Text is used by
// FieldName; Value by the numeric fields.
type StationFieldUpdate struct {
	Field StationField
	Text  string
	Value int32
}

// BikeStation is a station as reported by the public bike-rental feed.
type BikeStation struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Spaces int     `json:"spaces"`
	Bikes  int     `json:"bikes"`
}
