package planes

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/mesh3d"
)

func TestIDSequence_Monotonic(t *testing.T) {
	seq := NewIDSequence(0)
	seen := map[Symbol]bool{}
	var last uint64
	for i := 0; i < 100; i++ {
		s := seq.Next()
		assert.Equal(t, byte('P'), s.Chr)
		assert.False(t, seen[s], "symbol %s reused", s)
		if i > 0 {
			assert.Greater(t, s.Index, last)
		}
		seen[s] = true
		last = s.Index
	}
	assert.Equal(t, uint64(100), seq.Peek())
}

func TestSymbol_TextRoundTrip(t *testing.T) {
	s := Symbol{Chr: 'P', Index: 42}
	assert.Equal(t, "P42", s.String())

	b, err := json.Marshal(Plane{ID: s, Normal: r3.Vec{Z: 1}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":"P42"`)

	var p Plane
	require.NoError(t, json.Unmarshal(b, &p))
	assert.Equal(t, s, p.ID)

	_, err = ParseSymbol("P")
	assert.Error(t, err)
	_, err = ParseSymbol("Pxx")
	assert.Error(t, err)
}

func TestPlane_GeometricEqual(t *testing.T) {
	ground := Plane{Normal: r3.Vec{Z: 1}, Distance: 0}

	tests := []struct {
		name  string
		other Plane
		want  bool
	}{
		{"identical", ground, true},
		{"antiparallel", Plane{Normal: r3.Vec{Z: -1}, Distance: 0}, true},
		{"antiparallel negated distance", Plane{Normal: r3.Vec{Z: -1}, Distance: -0.1}, true},
		{"too far", Plane{Normal: r3.Vec{Z: 1}, Distance: 0.5}, false},
		{"tilted", Plane{Normal: r3.Unit(r3.Vec{X: 0.3, Z: 1}), Distance: 0}, false},
		{"perpendicular", Plane{Normal: r3.Vec{X: 1}, Distance: 0}, false},
		{"within half a degree", Plane{Normal: tilted(0.5)}, true},
		{"antiparallel within half a degree", Plane{Normal: r3.Scale(-1, tilted(0.5))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ground.GeometricEqual(tt.other, 0.011, 0.2))
			assert.Equal(t, tt.want, tt.other.GeometricEqual(ground, 0.011, 0.2))
		})
	}
}

// tilted returns the unit z axis rotated by deg degrees about x.
func tilted(deg float64) r3.Vec {
	rad := deg * math.Pi / 180
	return r3.Vec{Y: math.Sin(rad), Z: math.Cos(rad)}
}

func TestPlane_GeometricEqual_SmallTiltIsNotEqual(t *testing.T) {
	ground := Plane{Normal: r3.Vec{Z: 1}, Distance: 1}

	tests := []struct {
		name string
		deg  float64
		want bool
	}{
		{"0.5 degrees", 0.5, true},
		{"1 degree", 1, false},
		{"5 degrees", 5, false},
		{"5 degrees antiparallel", 185, false},
		{"180 degrees", 180, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := Plane{Normal: tilted(tt.deg), Distance: 1}
			assert.Equal(t, tt.want, ground.GeometricEqual(other, 0.011, 0.2))
		})
	}
}

func TestPlane_CloneIsDeep(t *testing.T) {
	p := Plane{LandmarkIDs: []mesh3d.LandmarkID{1, 2}, TriangleIDs: []int{7}}
	c := p.Clone()
	c.LandmarkIDs[0] = 99
	c.TriangleIDs[0] = 99
	assert.Equal(t, mesh3d.LandmarkID(1), p.LandmarkIDs[0])
	assert.Equal(t, 7, p.TriangleIDs[0])
	assert.Nil(t, ClonePlanes(nil))
}

func TestPlane_ResidualRMS(t *testing.T) {
	p := Plane{Normal: r3.Vec{Z: 1}, Distance: 1, LandmarkIDs: []mesh3d.LandmarkID{1, 2, 3}}
	pos := mesh3d.LandmarkMap{1: {Z: 1.1}, 2: {Z: 0.9}}

	rms, ok := p.ResidualRMS(pos)
	require.True(t, ok)
	assert.InDelta(t, 0.1, rms, 1e-12)

	_, ok = p.ResidualRMS(mesh3d.LandmarkMap{})
	assert.False(t, ok)
	assert.False(t, math.IsNaN(rms))
}
