package geometry_test

import (
	"math"
	"testing"

	"github.com/samirrijal/molbubble/internal/core/domain"
	"github.com/samirrijal/molbubble/internal/pkg/geometry"
)

func TestSqrt32_PerfectSquares(t *testing.T) {
	for k := uint32(0); k <= 65535; k++ {
		if got := geometry.Sqrt32(k * k); uint32(got) != k {
			t.Fatalf("Sqrt32(%d) = %d, want %d", k*k, got, k)
		}
	}
}

func TestSqrt32_FloorAndMonotonic(t *testing.T) {
	var prev uint16
	for n := uint64(0); n <= math.MaxUint32; n += 9973 {
		got := geometry.Sqrt32(uint32(n))
		want := uint16(math.Floor(math.Sqrt(float64(n))))
		if got != want {
			t.Fatalf("Sqrt32(%d) = %d, want %d", n, got, want)
		}
		if got < prev {
			t.Fatalf("Sqrt32 not monotonic at %d: %d < %d", n, got, prev)
		}
		prev = got
	}
	if got := geometry.Sqrt32(math.MaxUint32); got != 65535 {
		t.Errorf("Sqrt32(MaxUint32) = %d, want 65535", got)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		from, to domain.Coordinates
		want     uint16
	}{
		{"same point", domain.Coordinates{}, domain.Coordinates{}, 0},
		{"3-4-5", domain.Coordinates{}, domain.Coordinates{X: 30, Y: 40}, 50},
		{"negative", domain.Coordinates{X: 10, Y: 10}, domain.Coordinates{X: -20, Y: -30}, 50},
		{"saturates", domain.Coordinates{X: -32768, Y: -32768}, domain.Coordinates{X: 32767, Y: 32767}, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := geometry.Distance(tt.from, tt.to); got != tt.want {
				t.Errorf("Distance = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAtan2Lookup_Axes(t *testing.T) {
	tests := []struct {
		y, x int32
		want int32
	}{
		{0, 0, 0},
		{0, 1, 0},
		{1, 1, domain.TrigMaxAngle / 8},
		{1, 0, domain.TrigMaxAngle / 4},
		{0, -1, domain.TrigMaxAngle / 2},
		{-1, 0, 3 * domain.TrigMaxAngle / 4},
	}
	for _, tt := range tests {
		if got := geometry.Atan2Lookup(tt.y, tt.x); got != tt.want {
			t.Errorf("Atan2Lookup(%d, %d) = %d, want %d", tt.y, tt.x, got, tt.want)
		}
	}
}

func TestAtan2Lookup_FullCircle(t *testing.T) {
	const radius = 1000.0
	const steps = 360
	prev := int32(-1)
	for i := 0; i < steps; i++ {
		rad := 2 * math.Pi * float64(i) / steps
		x := int32(math.Round(radius * math.Cos(rad)))
		y := int32(math.Round(radius * math.Sin(rad)))
		got := geometry.Atan2Lookup(y, x)
		if got < 0 || got >= domain.TrigMaxAngle {
			t.Fatalf("angle %d out of range", got)
		}

		exact := math.Atan2(float64(y), float64(x))
		if exact < 0 {
			exact += 2 * math.Pi
		}
		want := int32(math.Round(exact * domain.TrigMaxAngle / (2 * math.Pi)))
		diff := (got - want) % domain.TrigMaxAngle
		if diff > domain.TrigMaxAngle/2 {
			diff -= domain.TrigMaxAngle
		} else if diff < -domain.TrigMaxAngle/2 {
			diff += domain.TrigMaxAngle
		}
		if diff > 64 || diff < -64 {
			t.Fatalf("Atan2Lookup(%d, %d) = %d, want about %d", y, x, got, want)
		}

		if i > 0 && got < prev {
			t.Fatalf("Atan2Lookup not monotonic at step %d: %d < %d", i, got, prev)
		}
		prev = got
	}
}

func TestBearing_NorthIsZero(t *testing.T) {
	user := domain.Coordinates{X: 100, Y: 100}
	tests := []struct {
		name string
		to   domain.Coordinates
		want int32
	}{
		{"north", domain.Coordinates{X: 100, Y: 0}, 0},
		{"west", domain.Coordinates{X: 200, Y: 100}, domain.TrigMaxAngle / 4},
		{"south", domain.Coordinates{X: 100, Y: 200}, domain.TrigMaxAngle / 2},
		{"east", domain.Coordinates{X: 0, Y: 100}, 3 * domain.TrigMaxAngle / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := geometry.Bearing(user, tt.to); got != tt.want {
				t.Errorf("Bearing = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNeedleAngle(t *testing.T) {
	if got := geometry.NeedleAngle(100, 50); got != 50 {
		t.Errorf("NeedleAngle(100, 50) = %d, want 50", got)
	}
	if got := geometry.NeedleAngle(0, domain.TrigMaxAngle/4); got != 3*domain.TrigMaxAngle/4 {
		t.Errorf("NeedleAngle(0, quarter) = %d", got)
	}
	if got := geometry.NeedleAngle(domain.TrigMaxAngle/2, domain.TrigMaxAngle/2); got != 0 {
		t.Errorf("NeedleAngle(half, half) = %d, want 0", got)
	}
}
