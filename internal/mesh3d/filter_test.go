package mesh3d

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
)

var unitTri = tri([3]LandmarkID{1, 2, 3}, [3]r3.Vec{{}, {X: 1}, {Y: 1}})

func TestIsBadTriangle(t *testing.T) {
	identity := geometry.IdentityPose()
	needle := tri([3]LandmarkID{1, 2, 3}, [3]r3.Vec{{}, {X: 1}, {Y: 0.05}})
	// Camera at origin looking along +z; triangle mostly extends in depth.
	deep := tri([3]LandmarkID{1, 2, 3}, [3]r3.Vec{{Z: 1}, {X: 0.1, Z: 3}, {Y: 0.1, Z: 2}})

	tests := []struct {
		name string
		poly Polygon
		th   Thresholds
		want bool
	}{
		{"all disabled", needle, ThresholdsFromSentinels(-1, -1, -1), false},
		{"side ratio passes", unitTri, ThresholdsFromSentinels(0.1, -1, -1), false},
		{"side ratio near limit", unitTri, ThresholdsFromSentinels(0.7071, -1, -1), false},
		{"side ratio above limit", unitTri, ThresholdsFromSentinels(0.7072, -1, -1), true},
		{"side ratio fails", needle, ThresholdsFromSentinels(0.1, -1, -1), true},
		{"max side passes", unitTri, ThresholdsFromSentinels(-1, -1, 10), false},
		{"max side fails", unitTri, ThresholdsFromSentinels(-1, -1, 0.5), true},
		{"elongation fails", deep, ThresholdsFromSentinels(-1, 0.5, -1), true},
		{"elongation passes fronto-parallel", tri([3]LandmarkID{1, 2, 3}, [3]r3.Vec{{Z: 2}, {X: 1, Z: 2}, {Y: 1, Z: 2}}), ThresholdsFromSentinels(-1, 0.5, -1), false},
		{"point triangle fails side ratio", tri([3]LandmarkID{1, 2, 3}, [3]r3.Vec{{}, {}, {}}), ThresholdsFromSentinels(0.1, -1, -1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBadTriangle(tt.poly, identity, tt.th); got != tt.want {
				t.Errorf("IsBadTriangle = %v, want %v", got, tt.want)
			}
		})
	}
}

// Relaxing any threshold never turns an accepted triangle into a rejected one.
func TestIsBadTriangle_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pose := geometry.Pose{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, Translation: r3.Vec{Z: -4}}
	rv := func() r3.Vec {
		return r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64() * 2}
	}

	for i := 0; i < 500; i++ {
		poly := tri([3]LandmarkID{1, 2, 3}, [3]r3.Vec{rv(), rv(), rv()})
		ratio, elong, side := rng.Float64(), rng.Float64()*2, rng.Float64()*2+0.1
		strict := ThresholdsFromSentinels(ratio, elong, side)
		if IsBadTriangle(poly, pose, strict) {
			continue
		}

		relaxed := []Thresholds{
			ThresholdsFromSentinels(ratio*0.5, elong, side),
			ThresholdsFromSentinels(ratio, elong*0.5, side),
			ThresholdsFromSentinels(ratio, elong, side*2),
			ThresholdsFromSentinels(-1, elong, side),
			ThresholdsFromSentinels(ratio, -1, side),
			ThresholdsFromSentinels(ratio, elong, -1),
		}
		for j, th := range relaxed {
			if IsBadTriangle(poly, pose, th) {
				t.Fatalf("triangle %v accepted with %+v but rejected with relaxed set %d", poly, strict, j)
			}
		}
	}
}

func TestFilterOutBadTriangles(t *testing.T) {
	m := NewMesh()
	m.AddPolygon(unitTri)
	m.AddPolygon(tri([3]LandmarkID{2, 4, 3}, [3]r3.Vec{{X: 1}, {X: 5, Y: 5}, {Y: 1}}))

	out := FilterOutBadTriangles(m, geometry.IdentityPose(), ThresholdsFromSentinels(-1, -1, 2))
	if out.NumPolygons() != 1 {
		t.Fatalf("FilterOutBadTriangles kept %d polygons, want 1", out.NumPolygons())
	}
	if _, ok := out.VertexPosition(4); ok {
		t.Error("vertex 4 should only be referenced by the rejected polygon")
	}
	if m.NumPolygons() != 2 {
		t.Error("input mesh modified")
	}
}
