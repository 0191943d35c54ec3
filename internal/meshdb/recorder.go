package meshdb

import (
	"github.com/banshee-data/planemesh/internal/mesher"
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// Recorder writes every snapshot it receives into one session. It
// satisfies pipeline.SnapshotSink.
type Recorder struct {
	db        *DB
	sessionID string
}

// NewRecorder starts a session for the recording.
func NewRecorder(db *DB, notes string) (*Recorder, error) {
	id, err := db.StartSession(notes)
	if err != nil {
		return nil, err
	}
	monitoring.Opsf("[meshdb] recording session %s", id)
	return &Recorder{db: db, sessionID: id}, nil
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() string { return r.sessionID }

// HandleSnapshot records snap.
func (r *Recorder) HandleSnapshot(snap mesher.Snapshot) error {
	return r.db.RecordSnapshot(r.sessionID, snap)
}

// Close ends the session.
func (r *Recorder) Close() error {
	return r.db.EndSession(r.sessionID)
}
