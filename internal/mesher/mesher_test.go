package mesher

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/monitoring"
	"github.com/banshee-data/planemesh/internal/planes"
)

func TestUpdateMesh3D_BuildsMesh(t *testing.T) {
	m := newTestMesher(t, testTuning())
	s := roomScene()

	require.NoError(t, m.UpdateMesh3D(s.input(1)))
	assert.Equal(t, 256, m.Mesh().NumPolygons())
	assert.Len(t, m.VerticesMesh(), 162)
	assert.Len(t, m.PolygonsMesh(), 256)

	// Same triangulation again refreshes instead of duplicating.
	require.NoError(t, m.UpdateMesh3D(s.input(2)))
	assert.Equal(t, 256, m.Mesh().NumPolygons())
}

func TestUpdateMesh3D_TimeHorizon(t *testing.T) {
	m := newTestMesher(t, testTuning())
	s := roomScene()
	require.NoError(t, m.UpdateMesh3D(s.input(1)))

	floorOnly := mesh3d.LandmarkMap{}
	for id, p := range s.lmks {
		if id < 2000 {
			floorOnly[id] = p
		}
	}
	in := s.input(2)
	in.Landmarks = floorOnly
	in.Triangles = nil
	require.NoError(t, m.UpdateMesh3D(in))

	assert.Equal(t, 128, m.Mesh().NumPolygons())
	for _, v := range m.VerticesMesh() {
		assert.Less(t, v.LandmarkID, mesh3d.LandmarkID(2000))
	}
}

func TestUpdateMesh3D_PreconditionLeavesStateUntouched(t *testing.T) {
	m := newTestMesher(t, testTuning())
	s := roomScene()
	require.NoError(t, m.UpdateMesh3D(s.input(1)))
	before := m.Mesh()

	t.Run("unknown pixel", func(t *testing.T) {
		in := roomScene().input(2)
		in.Triangles = append(in.Triangles, mesh3d.Triangle2D{pixelOf(1000), pixelOf(1001), {U: -5, V: -5}})

		err := m.UpdateMesh3D(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, geometry.ErrPrecondition))
		var pe *geometry.PreconditionError
		assert.True(t, errors.As(err, &pe))
		assert.Equal(t, "Populate3DMesh", pe.Op)
		assert.True(t, before.Equal(m.Mesh()))
	})

	t.Run("nil frame", func(t *testing.T) {
		in := s.input(3)
		in.Frame = nil
		err := m.UpdateMesh3D(in)
		assert.ErrorIs(t, err, geometry.ErrPrecondition)
		assert.True(t, before.Equal(m.Mesh()))
	})

	t.Run("invalid pose", func(t *testing.T) {
		in := s.input(4)
		in.Pose.Rotation[0] = 2
		err := m.UpdateMesh3D(in)
		assert.ErrorIs(t, err, geometry.ErrPrecondition)
		assert.True(t, before.Equal(m.Mesh()))
	})
}

func TestAppendNonVIOStereoPoints(t *testing.T) {
	vio := mesh3d.LandmarkMap{1: {X: 1, Y: 1, Z: 1}}
	pose := geometry.IdentityPose()
	pose.Translation = r3.Vec{X: 1}

	stereo := []StereoPoint{
		{LandmarkID: 1, Position: r3.Vec{X: 9, Y: 9, Z: 9}, Valid: true},
		{LandmarkID: 2, Position: r3.Vec{Z: 1}, Valid: true},
		{LandmarkID: 3, Position: r3.Vec{Z: 2}, Valid: false},
		{LandmarkID: mesh3d.InvalidLandmarkID, Position: r3.Vec{Z: 3}, Valid: true},
	}

	got := AppendNonVIOStereoPoints(vio, stereo, pose)

	assert.Equal(t, mesh3d.LandmarkMap{
		1: {X: 1, Y: 1, Z: 1},
		2: {X: 1, Z: 1},
	}, got)
	assert.Len(t, vio, 1, "input map must not be modified")
}

func TestUpdateMesh3D_StereoAugmentation(t *testing.T) {
	tc := testTuning()
	on := true
	tc.AddExtraLmksFromStereo = &on
	m := newTestMesher(t, tc)

	s := roomScene()
	in := s.input(1)
	// Move one floor landmark out of the estimator window into stereo.
	withheld := mesh3d.LandmarkID(1000)
	vio := s.lmks.Clone()
	delete(vio, withheld)
	in.Landmarks = vio
	in.Stereo = []StereoPoint{{LandmarkID: withheld, Position: s.lmks[withheld], Valid: true}}

	require.NoError(t, m.UpdateMesh3D(in))
	_, ok := m.Mesh().VertexPosition(withheld)
	assert.True(t, ok, "stereo landmark should reach the mesh")

	require.NoError(t, m.ClusterPlanesFromMesh(vio))
	for _, p := range m.Planes() {
		assert.NotContains(t, p.LandmarkIDs, withheld, "plane %s holds a landmark outside the window", p.ID)
	}
}

func TestClusterPlanesFromMesh_LogsNextPlaneID(t *testing.T) {
	var diag bytes.Buffer
	monitoring.SetLogWriters(monitoring.LogWriters{Diag: &diag})
	t.Cleanup(func() { monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr}) })

	m := newTestMesher(t, testTuning())
	require.NoError(t, m.UpdateMesh3D(roomScene().input(1)))
	require.NoError(t, m.ClusterPlanesFromMesh(nil))

	assert.Contains(t, diag.String(), "2 tracked planes, next id 2")
}

func TestClusterPlanesFromMesh(t *testing.T) {
	m := newTestMesher(t, testTuning())
	s := roomScene()
	require.NoError(t, m.UpdateMesh3D(s.input(1)))

	require.NoError(t, m.ClusterPlanesFromMesh(nil))
	ps := m.Planes()
	require.Len(t, ps, 2)
	assert.Equal(t, planes.ClusterGround, ps[0].Cluster)
	assert.Equal(t, planes.ClusterWall, ps[1].Cluster)
	assert.Len(t, ps[0].LandmarkIDs, 81)
	assert.NotEmpty(t, ps[1].LandmarkIDs)

	outcomes := m.LastOutcomes()
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, planes.OutcomeNew, o.Kind)
	}

	// The same scene produces no additional planes.
	require.NoError(t, m.UpdateMesh3D(s.input(2)))
	require.NoError(t, m.ClusterPlanesFromMesh(nil))
	ps2 := m.Planes()
	require.Len(t, ps2, 2)
	assert.Equal(t, ps[0].ID, ps2[0].ID)
	assert.Equal(t, ps[1].ID, ps2[1].ID)
	assert.Len(t, ps2[0].LandmarkIDs, 81)
}

func TestPlanes_ReturnsCopies(t *testing.T) {
	m := newTestMesher(t, testTuning())
	require.NoError(t, m.UpdateMesh3D(roomScene().input(1)))
	require.NoError(t, m.ClusterPlanesFromMesh(nil))

	ps := m.Planes()
	ps[0].LandmarkIDs[0] = -42
	ps[0].Distance = 99
	assert.NotEqual(t, 99.0, m.Planes()[0].Distance)
	assert.NotEqual(t, mesh3d.LandmarkID(-42), m.Planes()[0].LandmarkIDs[0])
}

func TestCalculateNormals(t *testing.T) {
	m := newTestMesher(t, testTuning())
	require.NoError(t, m.UpdateMesh3D(roomScene().input(1)))

	normals := m.CalculateNormals()
	require.Len(t, normals, 256)
	for i, n := range normals {
		require.True(t, n.OK, "polygon %d", i)
		if i < 128 {
			assert.InDelta(t, 1, n.Normal.Z, 1e-9)
		} else {
			assert.InDelta(t, 1, n.Normal.X, 1e-9)
		}
	}
}

func TestExtractLandmarkIDsFromTriangleClusters(t *testing.T) {
	m := newTestMesher(t, testTuning())
	require.NoError(t, m.UpdateMesh3D(roomScene().input(1)))
	require.NoError(t, m.ClusterPlanesFromMesh(nil))

	clusters := m.TriangleClusters()
	require.Len(t, clusters, 2)

	floor := m.ExtractLandmarkIDsFromTriangleClusters(clusters[:1], nil)
	assert.Len(t, floor, 81)

	all := m.ExtractLandmarkIDsFromTriangleClusters(clusters, nil)
	assert.Greater(t, len(all), len(floor))
	assert.Subset(t, all, floor)

	seen := map[mesh3d.LandmarkID]bool{}
	for _, id := range all {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	missing := []TriangleCluster{{ID: 7, TriangleIDs: []int{100000}}}
	assert.Empty(t, m.ExtractLandmarkIDsFromTriangleClusters(missing, nil))
}

func TestExtractLandmarkIDsFromTriangleClusters_RestrictedToWindow(t *testing.T) {
	tc := testTuning()
	on := true
	tc.AddExtraLmksFromStereo = &on
	m := newTestMesher(t, tc)
	s := roomScene()
	require.NoError(t, m.UpdateMesh3D(s.input(1)))

	cluster := []TriangleCluster{{ID: 0, TriangleIDs: []int{0}}}
	window := mesh3d.LandmarkMap{1000: {}, 1001: {}}

	got := m.ExtractLandmarkIDsFromTriangleClusters(cluster, window)
	assert.ElementsMatch(t, []mesh3d.LandmarkID{1000, 1001}, got)
}
