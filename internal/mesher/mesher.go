// Package mesher owns the scene mesh and the tracked planes and exposes
// the per-frame operations that update them. A Mesher is not safe for
// concurrent use; every public method either completes or leaves the
// state untouched.
package mesher

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/monitoring"
	"github.com/banshee-data/planemesh/internal/planes"
)

// StereoPoint is a keypoint triangulated from the stereo pair, in the left
// camera frame.
type StereoPoint struct {
	LandmarkID mesh3d.LandmarkID
	Position   r3.Vec
	Valid      bool
}

// FrameInput is everything the mesher consumes for one keyframe.
type FrameInput struct {
	FrameID   uint64
	Timestamp time.Time
	Pose      geometry.Pose

	// Landmarks is the estimator's active window in world coordinates.
	Landmarks mesh3d.LandmarkMap
	Triangles []mesh3d.Triangle2D
	Frame     mesh3d.Frame
	Stereo    []StereoPoint
}

// Mesher is the composition root of mesh building and plane tracking.
type Mesher struct {
	cfg    Config
	seg    *planes.Segmenter
	mesh   *mesh3d.Mesh
	planes []planes.Plane
	ids    *planes.IDSequence
	// window is the landmark window of the last clustering pass.
	window mesh3d.LandmarkMap

	lastStats    mesh3d.BuildStats
	lastOutcomes []planes.Outcome
}

// New returns an empty Mesher.
func New(cfg Config) (*Mesher, error) {
	seg, err := planes.NewSegmenter(cfg.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("create segmenter: %w", err)
	}
	return &Mesher{
		cfg:  cfg,
		seg:  seg,
		mesh: mesh3d.NewMesh(),
		ids:  planes.NewIDSequence(0),
	}, nil
}

// Config returns the configuration the Mesher was built with.
func (m *Mesher) Config() Config { return m.cfg }

// UpdateMesh3D adds the frame's triangulation to the mesh and reconciles
// the mesh with the landmark window. When stereo augmentation is enabled
// the stereo-only points extend the landmark map used for this frame.
func (m *Mesher) UpdateMesh3D(in FrameInput) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("update mesh for frame %d: %w", in.FrameID, err)
		}
	}()
	defer geometry.RecoverPrecondition(&err)

	if in.Frame == nil {
		geometry.Preconditionf("UpdateMesh3D", "nil frame")
	}
	if err := in.Pose.Validate(); err != nil {
		return fmt.Errorf("%w: %v", geometry.ErrPrecondition, err)
	}

	lmks := in.Landmarks
	if m.cfg.AddExtraLandmarksFromStereo {
		lmks = AppendNonVIOStereoPoints(in.Landmarks, in.Stereo, in.Pose)
	}

	next, stats := mesh3d.Populate3DMeshTimeHorizon(m.mesh.Clone(), in.Triangles, lmks, in.Frame, in.Pose,
		m.cfg.Triangles, m.cfg.ReduceMeshToTimeHorizon)

	m.mesh = next
	m.lastStats = stats
	monitoring.Diagf("[mesher] frame %d: %d triangles in, added=%d rejected=%d unresolved=%d, mesh has %d polygons %d vertices",
		in.FrameID, len(in.Triangles), stats.Added, stats.Rejected, stats.Unresolved,
		next.NumPolygons(), next.NumVertices())
	return nil
}

// AppendNonVIOStereoPoints returns a copy of vio extended with the valid
// stereo points, transformed to world coordinates with pose. Points already
// present in vio are never overwritten.
func AppendNonVIOStereoPoints(vio mesh3d.LandmarkMap, stereo []StereoPoint, pose geometry.Pose) mesh3d.LandmarkMap {
	out := vio.Clone()
	for _, sp := range stereo {
		if !sp.Valid || sp.LandmarkID == mesh3d.InvalidLandmarkID {
			continue
		}
		if _, ok := out[sp.LandmarkID]; ok {
			continue
		}
		out[sp.LandmarkID] = pose.TransformFrom(sp.Position)
	}
	return out
}

// ClusterPlanesFromMesh refreshes the membership of the tracked planes,
// extracts candidate planes from the mesh and adds the ones no tracked
// plane accounts for. window restricts plane membership to estimator
// landmarks when stereo augmentation is enabled.
func (m *Mesher) ClusterPlanesFromMesh(window mesh3d.LandmarkMap) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cluster planes: %w", err)
		}
	}()
	defer geometry.RecoverPrecondition(&err)

	tracked := planes.ClonePlanes(m.planes)
	ids := *m.ids

	cands := m.seg.Segment(m.mesh, tracked, &ids, window)
	res := planes.Associate(cands, tracked, m.cfg.PlaneNormalTolerance, m.cfg.PlaneDistanceTolerance, m.cfg.DoDoubleAssociation)
	m.seg.UpdateMembershipFromMesh(m.mesh, res.Unassociated, window)
	for _, p := range res.Unassociated {
		monitoring.Opsf("[mesher] new plane %s", p)
	}

	m.planes = append(tracked, res.Unassociated...)
	m.ids = &ids
	m.window = window
	m.lastOutcomes = res.Outcomes
	monitoring.Diagf("[mesher] %d candidates, %d new, %d tracked planes, next id %d",
		len(cands), len(res.Unassociated), len(m.planes), m.ids.Peek())
	return nil
}

// Planes returns a copy of the tracked planes.
func (m *Mesher) Planes() []planes.Plane { return planes.ClonePlanes(m.planes) }

// Mesh returns a copy of the mesh.
func (m *Mesher) Mesh() *mesh3d.Mesh { return m.mesh.Clone() }

// LastOutcomes returns the association outcomes of the latest
// ClusterPlanesFromMesh call.
func (m *Mesher) LastOutcomes() []planes.Outcome {
	return append([]planes.Outcome(nil), m.lastOutcomes...)
}

// VerticesMesh returns the mesh vertices in insertion order.
func (m *Mesher) VerticesMesh() []mesh3d.Vertex { return m.mesh.Vertices() }

// PolygonsMesh returns the mesh polygons as landmark id triples.
func (m *Mesher) PolygonsMesh() [][mesh3d.PolygonDimension]mesh3d.LandmarkID {
	return m.mesh.PolygonIDs()
}
