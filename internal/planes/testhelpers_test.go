package planes

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/histogram"
	"github.com/banshee-data/planemesh/internal/mesh3d"
)

func testConfig() Config {
	return Config{
		PolygonNormalTolerance:    0.011,
		PolygonDistanceTolerance:  0.10,
		HorizontalTolerance:       0.011,
		WallTolerance:             0.0165,
		OnlyUseNonClusteredPoints: true,
		Height: HeightHistogramConfig{
			Bins: 512, Min: -0.75, Max: 3.0,
			KernelSize: 5, WindowSize: 3,
			PeakPer: 0.5, MinSupport: 50,
			MinSeparation: geometry.Enabled(0.1),
			MaxPeaks:      3,
		},
		Wall: WallHistogramConfig{
			Theta:          histogram.Axis{Bins: 40, Min: 0, Max: math.Pi},
			Distance:       histogram.Axis{Bins: 40, Min: -6, Max: 6},
			KernelSize:     3,
			MaxPeaks:       2,
			MinSupport:     20,
			MinBinDistance: 5,
		},
	}
}

// addGrid adds a 9x9 vertex grid of 0.25 m cells spanned by u and v from
// origin, with landmark ids starting at base.
func addGrid(m *mesh3d.Mesh, base mesh3d.LandmarkID, origin, u, v r3.Vec) {
	const n = 9
	id := func(i, j int) mesh3d.LandmarkID { return base + mesh3d.LandmarkID(i*n+j) }
	pos := func(i, j int) r3.Vec {
		return r3.Add(origin, r3.Add(r3.Scale(0.25*float64(i), u), r3.Scale(0.25*float64(j), v)))
	}
	vtx := func(i, j int) mesh3d.Vertex { return mesh3d.Vertex{LandmarkID: id(i, j), Position: pos(i, j)} }

	for i := 0; i < n-1; i++ {
		for j := 0; j < n-1; j++ {
			m.AddPolygon(mesh3d.Polygon{vtx(i, j), vtx(i+1, j), vtx(i, j+1)})
			m.AddPolygon(mesh3d.Polygon{vtx(i+1, j), vtx(i+1, j+1), vtx(i, j+1)})
		}
	}
}

// roomMesh is a 2x2 m floor at z=0 plus a 2x2 m wall at x=2.
func roomMesh() *mesh3d.Mesh {
	m := mesh3d.NewMesh()
	addGrid(m, 1000, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	addGrid(m, 2000, r3.Vec{X: 2}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	return m
}
