package mesher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/config"
	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/mesh3d"
)

// idFrame maps pixel (id, 0) to landmark id.
type idFrame map[mesh3d.Pixel]mesh3d.LandmarkID

func (f idFrame) FindLandmarkID(px mesh3d.Pixel) mesh3d.LandmarkID {
	if id, ok := f[px]; ok {
		return id
	}
	return mesh3d.InvalidLandmarkID
}

func pixelOf(id mesh3d.LandmarkID) mesh3d.Pixel { return mesh3d.Pixel{U: float64(id)} }

// scene accumulates landmarks and triangles of a synthetic room.
type scene struct {
	lmks  mesh3d.LandmarkMap
	tris  []mesh3d.Triangle2D
	frame idFrame
}

func newScene() *scene {
	return &scene{lmks: mesh3d.LandmarkMap{}, frame: idFrame{}}
}

// addGrid adds a 9x9 grid of 0.25 m cells spanned by u and v.
func (s *scene) addGrid(base mesh3d.LandmarkID, origin, u, v r3.Vec) {
	const n = 9
	id := func(i, j int) mesh3d.LandmarkID { return base + mesh3d.LandmarkID(i*n+j) }
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lid := id(i, j)
			s.lmks[lid] = r3.Add(origin, r3.Add(r3.Scale(0.25*float64(i), u), r3.Scale(0.25*float64(j), v)))
			s.frame[pixelOf(lid)] = lid
		}
	}
	tri := func(a, b, c mesh3d.LandmarkID) mesh3d.Triangle2D {
		return mesh3d.Triangle2D{pixelOf(a), pixelOf(b), pixelOf(c)}
	}
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-1; j++ {
			s.tris = append(s.tris,
				tri(id(i, j), id(i+1, j), id(i, j+1)),
				tri(id(i+1, j), id(i+1, j+1), id(i, j+1)))
		}
	}
}

// roomScene is a 2x2 m floor at z=0 (ids 1000+) and a 2x2 m wall at x=2
// (ids 2000+).
func roomScene() *scene {
	s := newScene()
	s.addGrid(1000, r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	s.addGrid(2000, r3.Vec{X: 2}, r3.Vec{Y: 1}, r3.Vec{Z: 1})
	return s
}

func (s *scene) input(frameID uint64) FrameInput {
	return FrameInput{
		FrameID:   frameID,
		Timestamp: time.Unix(0, int64(frameID)*int64(100*time.Millisecond)),
		Pose:      geometry.IdentityPose(),
		Landmarks: s.lmks,
		Triangles: s.tris,
		Frame:     s.frame,
	}
}

func testTuning() *config.TuningConfig {
	tc := config.DefaultTuningConfig()
	disabled := -1.0
	tc.MinElongationRatio = &disabled
	return tc
}

func newTestMesher(t *testing.T, tc *config.TuningConfig) *Mesher {
	t.Helper()
	cfg, err := ConfigFromTuning(tc)
	require.NoError(t, err)
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}
