package geospatial

import (
	"math"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

const (
	equatorialRadiusKm = 6378.1370
	polarRadiusKm      = 6356.7523
)

// Projector maps geographic coordinates onto a flat plane in meters around
// a fixed centre, using the geocentric Earth radius at the centre latitude.
type Projector struct {
	lat, lon float64
	cos      float64
	radiusKm float64
}

// NewProjector creates a projector centred on the given point.
func NewProjector(center domain.GeoPoint) *Projector {
	lat := toRad(center.Lat)
	sin, cos := math.Sin(lat), math.Cos(lat)

	// https://en.wikipedia.org/wiki/Earth_radius#Geocentric_radius
	eec := equatorialRadiusKm * equatorialRadiusKm * cos
	pps := polarRadiusKm * polarRadiusKm * sin
	r := math.Sqrt((eec*eec + pps*pps) / (eec*cos + pps*sin))

	return &Projector{lat: lat, lon: toRad(center.Lon), cos: cos, radiusKm: r}
}

// RadiusKm is the Earth radius used by the projection.
func (p *Projector) RadiusKm() float64 { return p.radiusKm }

// ToPlane projects a point. X grows to the west and Y grows to the south of
// the centre. Values beyond the int16 range are clamped.
func (p *Projector) ToPlane(pt domain.GeoPoint) domain.Coordinates {
	dlat := p.lat - toRad(pt.Lat)
	dlon := p.lon - toRad(pt.Lon)
	return domain.Coordinates{
		X: clamp16(math.Round(p.radiusKm * p.cos * dlon * 1000)),
		Y: clamp16(math.Round(p.radiusKm * dlat * 1000)),
	}
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
