package mesh3d

import (
	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// Pixel is an image coordinate.
type Pixel struct {
	U, V float64
}

// Triangle2D is a triangle of the image-space triangulation.
type Triangle2D [PolygonDimension]Pixel

// Frame resolves image pixels to the landmarks observed there.
// FindLandmarkID returns InvalidLandmarkID when no landmark matches.
type Frame interface {
	FindLandmarkID(px Pixel) LandmarkID
}

// BuildStats counts the outcome of Populate3DMesh.
type BuildStats struct {
	Added      int
	Rejected   int
	Unresolved int
}

// Populate3DMesh lifts every 2D triangle into 3D using the landmark map and
// adds the ones passing the quality filter to m. Triangles with a landmark
// missing from lmks are logged and discarded. A pixel that resolves to no
// landmark at all breaks the triangulation contract and panics with a
// *geometry.PreconditionError.
func Populate3DMesh(m *Mesh, triangles []Triangle2D, lmks LandmarkMap, frame Frame, pose geometry.Pose, th Thresholds) BuildStats {
	var stats BuildStats
	for ti, tri := range triangles {
		poly := make(Polygon, 0, PolygonDimension)
		for _, px := range tri {
			id := frame.FindLandmarkID(px)
			if id == InvalidLandmarkID {
				geometry.Preconditionf("Populate3DMesh", "triangle %d: pixel (%.2f, %.2f) has no landmark", ti, px.U, px.V)
			}
			pos, ok := lmks[id]
			if !ok {
				monitoring.Opsf("[mesh3d] landmark %d of triangle %d not found in landmark map, discarding triangle", id, ti)
				break
			}
			poly = append(poly, Vertex{LandmarkID: id, Position: pos})
		}
		if len(poly) != PolygonDimension {
			stats.Unresolved++
			continue
		}
		if IsBadTriangle(poly, pose, th) {
			stats.Rejected++
			continue
		}
		m.AddPolygon(poly)
		stats.Added++
	}
	monitoring.Diagf("[mesh3d] populate: %d triangles, added=%d rejected=%d unresolved=%d",
		len(triangles), stats.Added, stats.Rejected, stats.Unresolved)
	return stats
}
