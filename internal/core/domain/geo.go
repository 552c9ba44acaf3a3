package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates is a point in meters relative to the city-centre origin.
// X grows to the west and Y grows to the south.
type Coordinates struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
}
