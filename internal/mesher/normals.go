package mesher

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/monitoring"
	"github.com/banshee-data/planemesh/internal/planes"
)

// OptionalNormal is the unit normal of one polygon. OK is false for
// collinear triangles.
type OptionalNormal struct {
	Normal r3.Vec
	OK     bool
}

// CalculateNormals returns one entry per mesh polygon, in polygon order.
func (m *Mesher) CalculateNormals() []OptionalNormal {
	out := make([]OptionalNormal, m.mesh.NumPolygons())
	for i := range out {
		poly, _ := m.mesh.Polygon(i)
		out[i].Normal, out[i].OK = geometry.TriangleNormal(poly[0].Position, poly[1].Position, poly[2].Position)
	}
	return out
}

// NormalSummary counts the mesh polygons by orientation. Horizontal and
// Wall use the segmenter's eligibility tolerances against Vertical.
type NormalSummary struct {
	Valid      int `json:"valid"`
	Degenerate int `json:"degenerate"`
	Horizontal int `json:"horizontal"`
	Wall       int `json:"wall"`
}

// SummarizeNormals classifies the polygon normals of the mesh.
func (m *Mesher) SummarizeNormals() NormalSummary {
	all := m.CalculateNormals()
	valid := make([]r3.Vec, 0, len(all))
	for _, n := range all {
		if n.OK {
			valid = append(valid, n.Normal)
		}
	}
	seg := m.cfg.Segmenter
	return NormalSummary{
		Valid:      len(valid),
		Degenerate: len(all) - len(valid),
		Horizontal: len(geometry.ClusterNormalsAroundAxis(geometry.Vertical, valid, seg.HorizontalTolerance)),
		Wall:       len(geometry.ClusterNormalsPerpendicularToAxis(geometry.Vertical, valid, seg.WallTolerance)),
	}
}

// TriangleCluster is a group of mesh polygons sharing a direction.
type TriangleCluster struct {
	ID          int
	Direction   r3.Vec
	TriangleIDs []int
}

// TriangleClusters returns one cluster per tracked plane holding the
// triangles found on it by the last segmentation pass.
func (m *Mesher) TriangleClusters() []TriangleCluster {
	out := make([]TriangleCluster, 0, len(m.planes))
	for i, p := range m.planes {
		out = append(out, TriangleCluster{
			ID:          i,
			Direction:   p.Normal,
			TriangleIDs: slices.Clone(p.TriangleIDs),
		})
	}
	return out
}

// ExtractLandmarkIDsFromTriangleClusters returns the landmark ids of all
// triangles in clusters, without duplicates. When stereo augmentation is
// enabled only ids present in window are returned.
func (m *Mesher) ExtractLandmarkIDsFromTriangleClusters(clusters []TriangleCluster, window mesh3d.LandmarkMap) []mesh3d.LandmarkID {
	var ids []mesh3d.LandmarkID
	for _, c := range clusters {
		for _, ti := range c.TriangleIDs {
			poly, ok := m.mesh.Polygon(ti)
			if !ok {
				monitoring.Opsf("[mesher] cluster %d references missing triangle %d", c.ID, ti)
				continue
			}
			ids = planes.AppendLandmarkIDs(ids, poly, m.cfg.AddExtraLandmarksFromStereo, window)
		}
	}
	return ids
}
