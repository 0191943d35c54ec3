package meshdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/mesher"
)

// ErrSessionNotFound is returned for operations on an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recording run.
type Session struct {
	ID        string     `json:"session_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Notes     string     `json:"notes"`
}

// FrameRow summarises one recorded snapshot.
type FrameRow struct {
	SessionID           string    `json:"session_id"`
	FrameID             uint64    `json:"frame_id"`
	Timestamp           time.Time `json:"timestamp"`
	VertexCount         int       `json:"vertex_count"`
	PolygonCount        int       `json:"polygon_count"`
	PlaneCount          int       `json:"plane_count"`
	NewPlaneCount       int       `json:"new_plane_count"`
	TrianglesAdded      int       `json:"triangles_added"`
	TrianglesRejected   int       `json:"triangles_rejected"`
	TrianglesUnresolved int       `json:"triangles_unresolved"`
}

// PlaneRow is a tracked plane as recorded for one frame.
type PlaneRow struct {
	SessionID     string              `json:"session_id"`
	FrameID       uint64              `json:"frame_id"`
	PlaneID       string              `json:"plane_id"`
	Cluster       string              `json:"cluster"`
	Normal        r3.Vec              `json:"normal"`
	Distance      float64             `json:"distance"`
	LandmarkIDs   []mesh3d.LandmarkID `json:"lmk_ids"`
	TriangleCount int                 `json:"triangle_count"`
	ResidualRMS   *float64            `json:"residual_rms,omitempty"`
}

// StartSession creates a session and returns its id.
func (db *DB) StartSession(notes string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO mesh_sessions (session_id, started_ns, notes) VALUES (?, ?, ?)`,
		id, time.Now().UnixNano(), notes)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session end time.
func (db *DB) EndSession(sessionID string) error {
	res, err := db.Exec(`UPDATE mesh_sessions SET ended_ns = ? WHERE session_id = ?`,
		time.Now().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// GetSession returns one session.
func (db *DB) GetSession(sessionID string) (Session, error) {
	row := db.QueryRow(`SELECT session_id, started_ns, ended_ns, notes FROM mesh_sessions WHERE session_id = ?`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %s: %w", sessionID, ErrSessionNotFound)
	}
	return s, err
}

// ListSessions returns all sessions, newest first.
func (db *DB) ListSessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, started_ns, ended_ns, notes FROM mesh_sessions ORDER BY started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := sc.Scan(&s.ID, &started, &ended, &s.Notes); err != nil {
		return Session{}, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return s, nil
}

// RecordSnapshot stores the frame summary and every tracked plane of snap
// in a single transaction.
func (db *DB) RecordSnapshot(sessionID string, snap mesher.Snapshot) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.Exec(`
		INSERT INTO mesh_frames (
			session_id, frame_id, timestamp_ns, vertex_count, polygon_count,
			plane_count, new_plane_count, triangles_added, triangles_rejected,
			triangles_unresolved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(snap.FrameID), snap.Timestamp.UnixNano(), len(snap.Vertices), len(snap.Polygons),
		len(snap.Planes), snap.NewPlanes(), snap.Stats.Added, snap.Stats.Rejected, snap.Stats.Unresolved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame %d: %w", snap.FrameID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO mesh_planes (
			session_id, frame_id, plane_id, cluster, normal_x, normal_y, normal_z,
			distance, landmark_count, triangle_count, residual_rms, landmark_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare plane insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Planes {
		lmks := p.LandmarkIDs
		if lmks == nil {
			lmks = []mesh3d.LandmarkID{}
		}
		lmkJSON, err := json.Marshal(lmks)
		if err != nil {
			return fmt.Errorf("failed to encode landmarks of %s: %w", p.ID, err)
		}
		var rms sql.NullFloat64
		if p.HasResidual {
			rms = sql.NullFloat64{Float64: p.ResidualRMS, Valid: true}
		}
		if _, err := stmt.Exec(
			sessionID, int64(snap.FrameID), p.ID.String(), p.Cluster.String(),
			p.Normal.X, p.Normal.Y, p.Normal.Z, p.Distance,
			len(p.LandmarkIDs), len(p.TriangleIDs), rms, string(lmkJSON),
		); err != nil {
			return fmt.Errorf("failed to insert plane %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame %d: %w", snap.FrameID, err)
	}
	return nil
}

// ListFrames returns the recorded frames of a session in frame order.
// limit <= 0 returns all of them.
func (db *DB) ListFrames(sessionID string, limit int) ([]FrameRow, error) {
	q := `
		SELECT session_id, frame_id, timestamp_ns, vertex_count, polygon_count,
			plane_count, new_plane_count, triangles_added, triangles_rejected,
			triangles_unresolved
		FROM mesh_frames WHERE session_id = ? ORDER BY frame_id`
	args := []any{sessionID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRow
	for rows.Next() {
		var (
			f       FrameRow
			frameID int64
			ts      int64
		)
		if err := rows.Scan(&f.SessionID, &frameID, &ts, &f.VertexCount, &f.PolygonCount,
			&f.PlaneCount, &f.NewPlaneCount, &f.TrianglesAdded, &f.TrianglesRejected,
			&f.TrianglesUnresolved); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.FrameID = uint64(frameID)
		f.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

const planeColumns = `session_id, frame_id, plane_id, cluster, normal_x, normal_y, normal_z,
	distance, landmark_ids, triangle_count, residual_rms`

// ListPlanes returns the planes recorded for one frame in snapshot order.
func (db *DB) ListPlanes(sessionID string, frameID uint64) ([]PlaneRow, error) {
	return db.queryPlanes(`SELECT `+planeColumns+` FROM mesh_planes
		WHERE session_id = ? AND frame_id = ? ORDER BY rowid`, sessionID, int64(frameID))
}

// PlaneHistory returns every recorded state of one plane in frame order.
func (db *DB) PlaneHistory(sessionID, planeID string) ([]PlaneRow, error) {
	return db.queryPlanes(`SELECT `+planeColumns+` FROM mesh_planes
		WHERE session_id = ? AND plane_id = ? ORDER BY frame_id`, sessionID, planeID)
}

func (db *DB) queryPlanes(q string, args ...any) ([]PlaneRow, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query planes: %w", err)
	}
	defer rows.Close()

	var out []PlaneRow
	for rows.Next() {
		var (
			p       PlaneRow
			frameID int64
			lmkJSON string
			rms     sql.NullFloat64
		)
		if err := rows.Scan(&p.SessionID, &frameID, &p.PlaneID, &p.Cluster,
			&p.Normal.X, &p.Normal.Y, &p.Normal.Z, &p.Distance, &lmkJSON,
			&p.TriangleCount, &rms); err != nil {
			return nil, fmt.Errorf("failed to scan plane: %w", err)
		}
		if err := json.Unmarshal([]byte(lmkJSON), &p.LandmarkIDs); err != nil {
			return nil, fmt.Errorf("failed to decode landmarks of %s: %w", p.PlaneID, err)
		}
		p.FrameID = uint64(frameID)
		if rms.Valid {
			v := rms.Float64
			p.ResidualRMS = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
