package geometry

import (
	"math"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

const atanSteps = 1024

// atanTable[i] is atan(i/atanSteps) in fixed-point angle units, covering
// the first octant.
var atanTable [atanSteps + 1]int32

func init() {
	for i := range atanTable {
		rad := math.Atan(float64(i) / atanSteps)
		atanTable[i] = int32(math.Round(rad * domain.TrigMaxAngle / (2 * math.Pi)))
	}
}

// Atan2Lookup maps the displacement (x, y) to an angle in
// [0, TrigMaxAngle), measured from the positive x axis towards the
// positive y axis. Atan2Lookup(0, 0) is 0.
func Atan2Lookup(y, x int32) int32 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := abs64(int64(x)), abs64(int64(y))

	var a int32
	if ay <= ax {
		a = atanTable[ay*atanSteps/ax]
	} else {
		a = domain.TrigMaxAngle/4 - atanTable[ax*atanSteps/ay]
	}

	switch {
	case x >= 0 && y >= 0:
	case x < 0 && y >= 0:
		a = domain.TrigMaxAngle/2 - a
	case x < 0:
		a = domain.TrigMaxAngle/2 + a
	default:
		a = domain.TrigMaxAngle - a
	}
	return a & (domain.TrigMaxAngle - 1)
}

// Bearing returns the angle from one point to another with 0 pointing
// north (towards negative y).
func Bearing(from, to domain.Coordinates) int32 {
	dx := int32(to.X) - int32(from.X)
	dy := int32(to.Y) - int32(from.Y)
	return Atan2Lookup(dx, -dy)
}

// NeedleAngle is the compass needle rotation for a device heading and a
// target bearing.
func NeedleAngle(heading, bearing int32) int32 {
	a := (heading - bearing) % domain.TrigMaxAngle
	if a < 0 {
		a += domain.TrigMaxAngle
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
