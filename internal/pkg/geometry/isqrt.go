// Package geometry provides the fixed-point distance and angle helpers used
// to place stations relative to the user.
package geometry

import (
	"math"

	"github.com/samirrijal/molbubble/internal/core/domain"
)

// Sqrt32 returns floor(sqrt(n)) by trying each result bit from the top.
func Sqrt32(n uint32) uint16 {
	c := uint32(0x8000)
	g := uint32(0x8000)
	for {
		if g*g > n {
			g ^= c
		}
		c >>= 1
		if c == 0 {
			return uint16(g)
		}
		g |= c
	}
}

// Distance returns the straight-line distance in meters between two
// points, saturating at the largest representable value.
func Distance(from, to domain.Coordinates) uint16 {
	dx := int64(to.X) - int64(from.X)
	dy := int64(to.Y) - int64(from.Y)
	sq := dx*dx + dy*dy
	if sq > math.MaxUint32 {
		sq = math.MaxUint32
	}
	return Sqrt32(uint32(sq))
}
