package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/meshdb"
	"github.com/banshee-data/planemesh/internal/mesher"
	"github.com/banshee-data/planemesh/internal/pipeline"
	"github.com/banshee-data/planemesh/internal/planes"
)

type fakeSource struct {
	snap   *mesher.Snapshot
	status pipeline.Status
}

func (f *fakeSource) Latest() (mesher.Snapshot, bool) {
	if f.snap == nil {
		return mesher.Snapshot{}, false
	}
	return *f.snap, true
}

func (f *fakeSource) Status() pipeline.Status { return f.status }

func testSnapshot() *mesher.Snapshot {
	ground := planes.Plane{
		ID:          planes.Symbol{Chr: 'P', Index: 0},
		Normal:      r3.Vec{Z: 1},
		LandmarkIDs: []mesh3d.LandmarkID{1, 2, 3},
		Cluster:     planes.ClusterGround,
		TriangleIDs: []int{0},
	}
	return &mesher.Snapshot{
		FrameID:   7,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Vertices: []mesh3d.Vertex{
			{LandmarkID: 1, Position: r3.Vec{X: 0, Y: 0}},
			{LandmarkID: 2, Position: r3.Vec{X: 1, Y: 0}},
			{LandmarkID: 3, Position: r3.Vec{X: 0, Y: 1}},
			{LandmarkID: 4, Position: r3.Vec{X: 3, Y: -2, Z: 1}},
		},
		Polygons: [][mesh3d.PolygonDimension]mesh3d.LandmarkID{{1, 2, 3}},
		Planes:   []mesher.PlaneSnapshot{{Plane: ground, HasResidual: true}},
		Clusters: []mesher.ClusterSnapshot{
			{PlaneID: ground.ID, Direction: ground.Normal, LandmarkIDs: []mesh3d.LandmarkID{1, 2, 3}},
			{PlaneID: planes.Symbol{Chr: 'P', Index: 1}, Direction: r3.Vec{X: 1}, LandmarkIDs: []mesh3d.LandmarkID{3, 4}},
		},
	}
}

func newTestServer(t *testing.T, src Source, db *meshdb.DB) *WebServer {
	t.Helper()
	ws, err := NewWebServer(WebServerConfig{Address: ":0", Source: src, DB: db})
	if err != nil {
		t.Fatalf("NewWebServer: %v", err)
	}
	return ws
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	src := &fakeSource{status: pipeline.Status{Running: true, Processed: 3}}
	ws := newTestServer(t, src, nil)

	w := get(t, ws.Handler(), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status   string          `json:"status"`
		Pipeline pipeline.Status `json:"pipeline"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || !body.Pipeline.Running || body.Pipeline.Processed != 3 {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestMeshAndPlanes_NoSnapshot(t *testing.T) {
	ws := newTestServer(t, &fakeSource{}, nil)

	for _, path := range []string{"/api/mesh", "/api/planes", "/api/planes/landmarks", "/debug/mesh", "/debug/planes"} {
		w := get(t, ws.Handler(), path)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "no snapshot yet") {
			t.Errorf("%s: body = %q", path, w.Body.String())
		}
	}
}

func TestMesh(t *testing.T) {
	ws := newTestServer(t, &fakeSource{snap: testSnapshot()}, nil)

	w := get(t, ws.Handler(), "/api/mesh")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body struct {
		FrameID  uint64                 `json:"frame_id"`
		Vertices []mesh3d.Vertex        `json:"vertices"`
		Polygons [][3]mesh3d.LandmarkID `json:"polygons"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.FrameID != 7 || len(body.Vertices) != 4 || len(body.Polygons) != 1 {
		t.Errorf("unexpected mesh body: %+v", body)
	}
}

func TestPlanes(t *testing.T) {
	ws := newTestServer(t, &fakeSource{snap: testSnapshot()}, nil)

	w := get(t, ws.Handler(), "/api/planes")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Planes []struct {
			ID     string `json:"id"`
			Normal r3.Vec `json:"normal"`
		} `json:"planes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Planes) != 1 || body.Planes[0].ID != "P0" || body.Planes[0].Normal.Z != 1 {
		t.Errorf("unexpected planes body: %s", w.Body.String())
	}
}

func TestPlaneLandmarks(t *testing.T) {
	ws := newTestServer(t, &fakeSource{snap: testSnapshot()}, nil)

	type body struct {
		Clusters    []mesher.ClusterSnapshot `json:"clusters"`
		LandmarkIDs []mesh3d.LandmarkID      `json:"landmark_ids"`
	}
	decode := func(t *testing.T, w *httptest.ResponseRecorder) body {
		t.Helper()
		var b body
		if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return b
	}

	tests := []struct {
		name     string
		target   string
		status   int
		clusters int
		want     []mesh3d.LandmarkID
	}{
		{"all planes", "/api/planes/landmarks", http.StatusOK, 2, []mesh3d.LandmarkID{1, 2, 3, 4}},
		{"one plane", "/api/planes/landmarks?plane_id=P1", http.StatusOK, 1, []mesh3d.LandmarkID{3, 4}},
		{"unknown plane", "/api/planes/landmarks?plane_id=P9", http.StatusNotFound, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, ws.Handler(), tt.target)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			b := decode(t, w)
			if len(b.Clusters) != tt.clusters {
				t.Errorf("clusters = %d, want %d", len(b.Clusters), tt.clusters)
			}
			if diff := cmp.Diff(tt.want, b.LandmarkIDs); diff != "" {
				t.Errorf("landmark_ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ws := newTestServer(t, &fakeSource{snap: testSnapshot()}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/mesh", nil)
	w := httptest.NewRecorder()
	ws.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestCharts(t *testing.T) {
	ws := newTestServer(t, &fakeSource{snap: testSnapshot()}, nil)

	for _, path := range []string{"/debug/mesh", "/debug/planes"} {
		w := get(t, ws.Handler(), path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, w.Code)
		}
		if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
			t.Errorf("%s: Content-Type = %q", path, w.Header().Get("Content-Type"))
		}
		if !strings.Contains(w.Body.String(), echartsAssetsPrefix) {
			t.Errorf("%s: page does not reference the assets host", path)
		}
	}
}

func TestVertexSeries(t *testing.T) {
	names, series, extent := vertexSeries(*testSnapshot())

	if len(names) != 2 || names[0] != "unclustered" || names[1] != "P0 (ground)" {
		t.Errorf("names = %v", names)
	}
	if len(series[0]) != 1 {
		t.Errorf("unclustered points = %d, want 1", len(series[0]))
	}
	if len(series[1]) != 3 {
		t.Errorf("P0 points = %d, want 3", len(series[1]))
	}
	if extent != 3 {
		t.Errorf("extent = %v, want 3", extent)
	}
}

func TestSessionRoutes(t *testing.T) {
	db, err := meshdb.Open(filepath.Join(t.TempDir(), "mesh.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rec, err := meshdb.NewRecorder(db, "monitor test")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if err := rec.HandleSnapshot(*testSnapshot()); err != nil {
		t.Fatalf("HandleSnapshot: %v", err)
	}
	sid := rec.SessionID()

	ws := newTestServer(t, &fakeSource{}, db)
	h := ws.Handler()

	w := get(t, h, "/api/sessions")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), sid) {
		t.Errorf("sessions: %d %s", w.Code, w.Body.String())
	}

	w = get(t, h, "/api/sessions/frames?session_id="+sid)
	var frames []meshdb.FrameRow
	if err := json.Unmarshal(w.Body.Bytes(), &frames); err != nil {
		t.Fatalf("decode frames: %v", err)
	}
	if len(frames) != 1 || frames[0].FrameID != 7 || frames[0].PlaneCount != 1 {
		t.Errorf("frames = %+v", frames)
	}

	w = get(t, h, "/api/sessions/planes?session_id="+sid+"&plane_id=P0")
	var history []meshdb.PlaneRow
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Cluster != "ground" {
		t.Errorf("history = %+v", history)
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"frames missing session", "/api/sessions/frames", http.StatusBadRequest},
		{"frames bad limit", "/api/sessions/frames?session_id=" + sid + "&limit=x", http.StatusBadRequest},
		{"planes missing selector", "/api/sessions/planes?session_id=" + sid, http.StatusBadRequest},
		{"planes bad frame", "/api/sessions/planes?session_id=" + sid + "&frame_id=-1", http.StatusBadRequest},
		{"planes by frame", "/api/sessions/planes?session_id=" + sid + "&frame_id=7", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := get(t, h, tt.target); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSessionRoutesAbsentWithoutDB(t *testing.T) {
	ws := newTestServer(t, &fakeSource{}, nil)
	if w := get(t, ws.Handler(), "/api/sessions"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
