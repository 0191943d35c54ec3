package mesher

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/planes"
)

// PlaneSnapshot is a tracked plane with its fit quality against the
// current mesh.
type PlaneSnapshot struct {
	planes.Plane
	ResidualRMS float64 `json:"residual_rms"`
	HasResidual bool    `json:"has_residual"`
}

// ClusterSnapshot holds the landmarks of the triangles found on one tracked
// plane.
type ClusterSnapshot struct {
	PlaneID     planes.Symbol       `json:"plane_id"`
	Direction   r3.Vec              `json:"direction"`
	LandmarkIDs []mesh3d.LandmarkID `json:"lmk_ids"`
}

// Snapshot is a by-value copy of the mesher state after one frame.
type Snapshot struct {
	FrameID   uint64                                       `json:"frame_id"`
	Timestamp time.Time                                    `json:"timestamp"`
	Vertices  []mesh3d.Vertex                              `json:"vertices"`
	Polygons  [][mesh3d.PolygonDimension]mesh3d.LandmarkID `json:"polygons"`
	Planes    []PlaneSnapshot                              `json:"planes"`
	Clusters  []ClusterSnapshot                            `json:"clusters"`
	Normals   NormalSummary                                `json:"normals"`
	Stats     mesh3d.BuildStats                            `json:"stats"`
	Outcomes  []planes.Outcome                             `json:"-"`
}

// NewPlanes counts the planes created by the association that produced
// this snapshot.
func (s *Snapshot) NewPlanes() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Kind == planes.OutcomeNew {
			n++
		}
	}
	return n
}

// Snapshot copies the current mesh and tracked planes.
func (m *Mesher) Snapshot(frameID uint64, ts time.Time) Snapshot {
	verts := m.mesh.Vertices()
	positions := make(mesh3d.LandmarkMap, len(verts))
	for _, v := range verts {
		positions[v.LandmarkID] = v.Position
	}

	ps := make([]PlaneSnapshot, 0, len(m.planes))
	for _, p := range m.planes {
		rms, ok := p.ResidualRMS(positions)
		ps = append(ps, PlaneSnapshot{Plane: p.Clone(), ResidualRMS: rms, HasResidual: ok})
	}

	clusters := m.TriangleClusters()
	cs := make([]ClusterSnapshot, 0, len(clusters))
	for i, c := range clusters {
		cs = append(cs, ClusterSnapshot{
			PlaneID:     m.planes[c.ID].ID,
			Direction:   c.Direction,
			LandmarkIDs: m.ExtractLandmarkIDsFromTriangleClusters(clusters[i:i+1], m.window),
		})
	}

	return Snapshot{
		FrameID:   frameID,
		Timestamp: ts,
		Vertices:  verts,
		Polygons:  m.mesh.PolygonIDs(),
		Planes:    ps,
		Clusters:  cs,
		Normals:   m.SummarizeNormals(),
		Stats:     m.lastStats,
		Outcomes:  m.LastOutcomes(),
	}
}
