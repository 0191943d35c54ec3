package mesh3d

import (
	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// UpdatePolygonMeshToTimeHorizon rebuilds m against the active landmark
// window. Vertices present in lmks take their latest position. A polygon
// with a vertex outside the window is dropped when reduceToHorizon is set,
// otherwise kept with the stale position. Survivors are re-filtered with
// the elongation test disabled.
func UpdatePolygonMeshToTimeHorizon(m *Mesh, lmks LandmarkMap, pose geometry.Pose, minSideRatio, maxSide geometry.Threshold, reduceToHorizon bool) *Mesh {
	th := Thresholds{
		MinSideRatio:       minSideRatio,
		MinElongationRatio: geometry.Disabled(),
		MaxSide:            maxSide,
	}

	kept := NewMesh()
	var dropped int
	for _, poly := range m.Polygons() {
		keep := true
		for i, v := range poly {
			pos, ok := lmks[v.LandmarkID]
			if !ok {
				if reduceToHorizon {
					keep = false
					break
				}
				continue
			}
			poly[i].Position = pos
		}
		if !keep {
			dropped++
			continue
		}
		kept.AddPolygon(poly)
	}
	out := FilterOutBadTriangles(kept, pose, th)

	monitoring.Diagf("[mesh3d] time horizon: %d -> %d polygons (out of window=%d, refiltered=%d)",
		m.NumPolygons(), out.NumPolygons(), dropped, kept.NumPolygons()-out.NumPolygons())
	return out
}

// Populate3DMeshTimeHorizon adds the new triangulation to m and then
// reconciles the result with the landmark window.
func Populate3DMeshTimeHorizon(m *Mesh, triangles []Triangle2D, lmks LandmarkMap, frame Frame, pose geometry.Pose, th Thresholds, reduceToHorizon bool) (*Mesh, BuildStats) {
	stats := Populate3DMesh(m, triangles, lmks, frame, pose, th)
	return UpdatePolygonMeshToTimeHorizon(m, lmks, pose, th.MinSideRatio, th.MaxSide, reduceToHorizon), stats
}
