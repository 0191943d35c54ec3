// Package monitor serves the latest mesh and plane state over HTTP as JSON
// and as go-echarts debug pages.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/meshdb"
	"github.com/banshee-data/planemesh/internal/mesher"
	"github.com/banshee-data/planemesh/internal/monitoring"
	"github.com/banshee-data/planemesh/internal/pipeline"
	"github.com/banshee-data/planemesh/internal/version"
)

// Source provides the state shown by the monitor. pipeline.Stage
// implements it.
type Source interface {
	Latest() (mesher.Snapshot, bool)
	Status() pipeline.Status
}

// WebServer handles the HTTP interface.
type WebServer struct {
	address string
	source  Source
	db      *meshdb.DB
	server  *http.Server
	handler http.Handler
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Source  Source
	// DB is optional. When set, recorded sessions are served and the SQL
	// console is mounted under /debug/tailsql/.
	DB *meshdb.DB
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address: config.Address,
		source:  config.Source,
		db:      config.DB,
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.handler = mux
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.handler }

// Start serves until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Opsf("[monitor] starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	monitoring.Opsf("[monitor] shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Opsf("[monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Opsf("[monitor] HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", ws.handleHealth)
	mux.HandleFunc("/api/mesh", ws.handleMesh)
	mux.HandleFunc("/api/planes", ws.handlePlanes)
	mux.HandleFunc("/api/planes/landmarks", ws.handlePlaneLandmarks)
	mux.HandleFunc("/debug/mesh", ws.handleMeshChart)
	mux.HandleFunc("/debug/planes", ws.handlePlanesChart)

	debug := tsweb.Debugger(mux)
	debug.URL("/debug/mesh", "Mesh top view, coloured by plane")
	debug.URL("/debug/planes", "Tracked plane support")
	debug.KVFunc("Frames processed", func() any { return ws.source.Status().Processed })
	debug.KVFunc("Frames failed", func() any { return ws.source.Status().Failed })

	if ws.db != nil {
		mux.HandleFunc("/api/sessions", ws.handleSessions)
		mux.HandleFunc("/api/sessions/frames", ws.handleSessionFrames)
		mux.HandleFunc("/api/sessions/planes", ws.handleSessionPlanes)
		if err := ws.db.AttachAdminRoutes(debug); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Opsf("[monitor] JSON encoding error: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) requireGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func (ws *WebServer) latest(w http.ResponseWriter) (mesher.Snapshot, bool) {
	snap, ok := ws.source.Latest()
	if !ok {
		ws.writeJSONError(w, http.StatusNotFound, "no snapshot yet")
	}
	return snap, ok
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := ws.source.Status()
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  version.Get(),
		"pipeline": st,
	})
}

type meshResponse struct {
	FrameID   uint64      `json:"frame_id"`
	Timestamp time.Time   `json:"timestamp"`
	Vertices  interface{} `json:"vertices"`
	Polygons  interface{} `json:"polygons"`
	Normals   interface{} `json:"normals"`
}

func (ws *WebServer) handleMesh(w http.ResponseWriter, r *http.Request) {
	if !ws.requireGET(w, r) {
		return
	}
	snap, ok := ws.latest(w)
	if !ok {
		return
	}
	ws.writeJSON(w, http.StatusOK, meshResponse{
		FrameID:   snap.FrameID,
		Timestamp: snap.Timestamp,
		Vertices:  snap.Vertices,
		Polygons:  snap.Polygons,
		Normals:   snap.Normals,
	})
}

func (ws *WebServer) handlePlanes(w http.ResponseWriter, r *http.Request) {
	if !ws.requireGET(w, r) {
		return
	}
	snap, ok := ws.latest(w)
	if !ok {
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"frame_id": snap.FrameID,
		"planes":   snap.Planes,
	})
}

// handlePlaneLandmarks returns the landmark ids of the triangles on each
// tracked plane, or on one plane when plane_id is given. landmark_ids is
// the union over the returned clusters.
func (ws *WebServer) handlePlaneLandmarks(w http.ResponseWriter, r *http.Request) {
	if !ws.requireGET(w, r) {
		return
	}
	snap, ok := ws.latest(w)
	if !ok {
		return
	}

	clusters := snap.Clusters
	if planeID := r.URL.Query().Get("plane_id"); planeID != "" {
		clusters = nil
		for _, c := range snap.Clusters {
			if c.PlaneID.String() == planeID {
				clusters = append(clusters, c)
			}
		}
		if len(clusters) == 0 {
			ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("plane %q not tracked", planeID))
			return
		}
	}

	seen := make(map[mesh3d.LandmarkID]struct{})
	union := make([]mesh3d.LandmarkID, 0)
	for _, c := range clusters {
		for _, id := range c.LandmarkIDs {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				union = append(union, id)
			}
		}
	}
	if clusters == nil {
		clusters = []mesher.ClusterSnapshot{}
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"frame_id":     snap.FrameID,
		"clusters":     clusters,
		"landmark_ids": union,
	})
}

func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !ws.requireGET(w, r) {
		return
	}
	sessions, err := ws.db.ListSessions()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, sessions)
}

// handleSessionFrames lists recorded frames.
// Query params:
//   - session_id (required)
//   - limit (optional, default 100)
func (ws *WebServer) handleSessionFrames(w http.ResponseWriter, r *http.Request) {
	if !ws.requireGET(w, r) {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'session_id' parameter")
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	frames, err := ws.db.ListFrames(sessionID, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, frames)
}

// handleSessionPlanes returns either the planes of one frame (frame_id)
// or the history of one plane (plane_id).
func (ws *WebServer) handleSessionPlanes(w http.ResponseWriter, r *http.Request) {
	if !ws.requireGET(w, r) {
		return
	}
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'session_id' parameter")
		return
	}

	var (
		rows []meshdb.PlaneRow
		err  error
	)
	switch {
	case q.Get("plane_id") != "":
		rows, err = ws.db.PlaneHistory(sessionID, q.Get("plane_id"))
	case q.Get("frame_id") != "":
		frameID, perr := strconv.ParseUint(q.Get("frame_id"), 10, 64)
		if perr != nil {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'frame_id' parameter")
			return
		}
		rows, err = ws.db.ListPlanes(sessionID, frameID)
	default:
		ws.writeJSONError(w, http.StatusBadRequest, "one of 'frame_id' or 'plane_id' is required")
		return
	}
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, rows)
}
