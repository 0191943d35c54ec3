// Package pipeline runs a Mesher as one stage of a frame pipeline: frames
// arrive on a bounded queue, are processed sequentially on a single
// goroutine, and leave as by-value snapshots.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/planemesh/internal/mesher"
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// ErrClosed is returned when submitting to a stage whose input was closed.
var ErrClosed = errors.New("pipeline stage closed")

// SnapshotSink consumes the snapshot produced for every processed frame.
// Sinks are called synchronously on the stage goroutine.
type SnapshotSink interface {
	HandleSnapshot(snap mesher.Snapshot) error
}

// SinkFunc adapts a function to a SnapshotSink.
type SinkFunc func(snap mesher.Snapshot) error

// HandleSnapshot calls f.
func (f SinkFunc) HandleSnapshot(snap mesher.Snapshot) error { return f(snap) }

// StageConfig contains configuration for a Stage.
type StageConfig struct {
	// Mesher is owned by the stage once Run starts.
	Mesher *mesher.Mesher
	// QueueSize bounds both the input queue and the output channel.
	QueueSize int
	// ClusterPlanes runs plane clustering after every mesh update.
	ClusterPlanes bool
	Sinks         []SnapshotSink
}

// Status summarises stage activity.
type Status struct {
	Running     bool      `json:"running"`
	Processed   int64     `json:"processed"`
	Failed      int64     `json:"failed"`
	Dropped     int64     `json:"dropped"`
	LastFrameID uint64    `json:"last_frame_id"`
	LastError   string    `json:"last_error,omitempty"`
	LastRunAt   time.Time `json:"last_run_at"`
}

// Stage feeds frames to a Mesher.
type Stage struct {
	m             *mesher.Mesher
	clusterPlanes bool
	sinks         []SnapshotSink

	in  chan mesher.FrameInput
	out chan mesher.Snapshot

	inMu      sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	latest *mesher.Snapshot
	status Status
}

// NewStage creates a stage. A QueueSize below one is treated as one.
func NewStage(cfg StageConfig) *Stage {
	q := cfg.QueueSize
	if q < 1 {
		q = 1
	}
	return &Stage{
		m:             cfg.Mesher,
		clusterPlanes: cfg.ClusterPlanes,
		sinks:         cfg.Sinks,
		in:            make(chan mesher.FrameInput, q),
		out:           make(chan mesher.Snapshot, q),
		closing:       make(chan struct{}),
	}
}

// Submit queues a frame, blocking until there is room, ctx is done or the
// stage is closed.
func (s *Stage) Submit(ctx context.Context, in mesher.FrameInput) error {
	s.inMu.RLock()
	defer s.inMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.in <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closing:
		return ErrClosed
	}
}

// TrySubmit queues a frame without blocking. It reports false when the
// frame was dropped because the queue is full or the stage is closed.
func (s *Stage) TrySubmit(in mesher.FrameInput) bool {
	s.inMu.RLock()
	defer s.inMu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.in <- in:
		return true
	default:
		s.mu.Lock()
		s.status.Dropped++
		s.mu.Unlock()
		monitoring.Opsf("[pipeline] queue full, dropping frame %d", in.FrameID)
		return false
	}
}

// Close ends the input. Run returns once the queued frames are processed.
// It is safe to call multiple times.
func (s *Stage) Close() {
	// Wake blocked Submits so they release inMu.
	s.closeOnce.Do(func() { close(s.closing) })
	s.inMu.Lock()
	defer s.inMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.in)
	}
}

// Snapshots returns the output channel. Snapshots are dropped when nobody
// reads it; Latest always holds the newest one. The channel is closed when
// Run returns.
func (s *Stage) Snapshots() <-chan mesher.Snapshot { return s.out }

// Latest returns the newest snapshot, if any.
func (s *Stage) Latest() (mesher.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return mesher.Snapshot{}, false
	}
	return *s.latest, true
}

// Status returns a copy of the stage status.
func (s *Stage) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Run processes frames until ctx is cancelled or the input is closed and
// drained. It must be called at most once.
func (s *Stage) Run(ctx context.Context) error {
	s.setRunning(true)
	defer func() {
		s.setRunning(false)
		close(s.out)
	}()
	monitoring.Opsf("[pipeline] stage started")

	for {
		select {
		case <-ctx.Done():
			monitoring.Opsf("[pipeline] stage stopping due to context cancellation")
			return nil
		case in, ok := <-s.in:
			if !ok {
				monitoring.Opsf("[pipeline] input closed, stage stopping")
				return nil
			}
			s.process(in)
		}
	}
}

func (s *Stage) setRunning(v bool) {
	s.mu.Lock()
	s.status.Running = v
	s.mu.Unlock()
}

func (s *Stage) process(in mesher.FrameInput) {
	start := time.Now()
	err := s.m.UpdateMesh3D(in)
	if err == nil && s.clusterPlanes {
		err = s.m.ClusterPlanesFromMesh(in.Landmarks)
	}
	if err != nil {
		monitoring.Opsf("[pipeline] frame %d: %v", in.FrameID, err)
		s.mu.Lock()
		s.status.Failed++
		s.status.LastError = err.Error()
		s.mu.Unlock()
		return
	}

	snap := s.m.Snapshot(in.FrameID, in.Timestamp)

	s.mu.Lock()
	s.latest = &snap
	s.status.Processed++
	s.status.LastFrameID = in.FrameID
	s.status.LastRunAt = start
	s.mu.Unlock()

	for _, sink := range s.sinks {
		if err := sink.HandleSnapshot(snap); err != nil {
			monitoring.Opsf("[pipeline] sink failed for frame %d: %v", in.FrameID, err)
		}
	}

	select {
	case s.out <- snap:
	default:
		monitoring.Diagf("[pipeline] output channel full, snapshot %d not delivered", in.FrameID)
	}
	monitoring.Diagf("[pipeline] frame %d processed in %v", in.FrameID, time.Since(start))
}
