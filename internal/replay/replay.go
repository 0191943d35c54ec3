// Package replay reads recorded keyframes from JSON lines files and turns
// them into mesher inputs.
//
// Each line holds one frame:
//
//	{"frame_id": 1, "timestamp_ns": 1700000000000000000,
//	 "pose": {"rotation": [1,0,0, 0,1,0, 0,0,1], "translation": [0,0,0]},
//	 "landmarks": [{"id": 4, "x": 0.1, "y": 2.0, "z": 0.0}],
//	 "keypoints": [{"id": 4, "u": 320.5, "v": 240.0}],
//	 "stereo":    [{"id": 9, "x": 0.3, "y": 0.1, "z": 2.5, "valid": true}],
//	 "triangles": [[320.5, 240.0, 330.0, 241.0, 325.0, 250.0]]}
//
// Landmarks are in world coordinates, stereo points in the left camera
// frame. Triangle vertices are matched to keypoints by exact pixel value.
package replay

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/mesher"
)

// maxLineSize bounds a single frame record.
const maxLineSize = 64 << 20

type poseRecord struct {
	Rotation    [9]float64 `json:"rotation"`
	Translation [3]float64 `json:"translation"`
}

type pointRecord struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

type keypointRecord struct {
	ID int64   `json:"id"`
	U  float64 `json:"u"`
	V  float64 `json:"v"`
}

type stereoRecord struct {
	pointRecord
	Valid bool `json:"valid"`
}

type frameRecord struct {
	FrameID     uint64           `json:"frame_id"`
	TimestampNs int64            `json:"timestamp_ns"`
	Pose        *poseRecord      `json:"pose"`
	Landmarks   []pointRecord    `json:"landmarks"`
	Keypoints   []keypointRecord `json:"keypoints"`
	Stereo      []stereoRecord   `json:"stereo"`
	Triangles   [][6]float64     `json:"triangles"`
}

// Frame resolves pixels to landmark ids by exact match.
type Frame map[mesh3d.Pixel]mesh3d.LandmarkID

// FindLandmarkID implements mesh3d.Frame.
func (f Frame) FindLandmarkID(px mesh3d.Pixel) mesh3d.LandmarkID {
	if id, ok := f[px]; ok {
		return id
	}
	return mesh3d.InvalidLandmarkID
}

// Reader decodes frames one line at a time.
type Reader struct {
	sc     *bufio.Scanner
	closer io.Closer
	line   int
}

// NewReader reads frames from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineSize)
	return &Reader{sc: sc}
}

// OpenFile opens a recording. Files ending in .gz are decompressed.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		r := NewReader(f)
		r.closer = f
		return r, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip stream %s: %w", path, err)
	}
	r := NewReader(gz)
	r.closer = closers{gz, f}
	return r, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Close releases the underlying file, if the Reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Next returns the next frame, or io.EOF when the input is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (mesher.FrameInput, error) {
	for r.sc.Scan() {
		r.line++
		b := r.sc.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		var rec frameRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return mesher.FrameInput{}, fmt.Errorf("line %d: parse frame: %w", r.line, err)
		}
		in, err := rec.toInput()
		if err != nil {
			return mesher.FrameInput{}, fmt.Errorf("line %d: frame %d: %w", r.line, rec.FrameID, err)
		}
		return in, nil
	}
	if err := r.sc.Err(); err != nil {
		return mesher.FrameInput{}, fmt.Errorf("read replay: %w", err)
	}
	return mesher.FrameInput{}, io.EOF
}

func (rec *frameRecord) toInput() (mesher.FrameInput, error) {
	if rec.Pose == nil {
		return mesher.FrameInput{}, errors.New("missing pose")
	}
	in := mesher.FrameInput{
		FrameID:   rec.FrameID,
		Timestamp: time.Unix(0, rec.TimestampNs).UTC(),
		Pose: geometry.Pose{
			Rotation:    rec.Pose.Rotation,
			Translation: r3.Vec{X: rec.Pose.Translation[0], Y: rec.Pose.Translation[1], Z: rec.Pose.Translation[2]},
		},
		Landmarks: make(mesh3d.LandmarkMap, len(rec.Landmarks)),
		Triangles: make([]mesh3d.Triangle2D, 0, len(rec.Triangles)),
	}

	for _, l := range rec.Landmarks {
		in.Landmarks[mesh3d.LandmarkID(l.ID)] = r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
	}

	frame := make(Frame, len(rec.Keypoints))
	for _, kp := range rec.Keypoints {
		px := mesh3d.Pixel{U: kp.U, V: kp.V}
		if prev, ok := frame[px]; ok && prev != mesh3d.LandmarkID(kp.ID) {
			return mesher.FrameInput{}, fmt.Errorf("pixel (%g, %g) claimed by landmarks %d and %d", kp.U, kp.V, prev, kp.ID)
		}
		frame[px] = mesh3d.LandmarkID(kp.ID)
	}
	in.Frame = frame

	for _, s := range rec.Stereo {
		in.Stereo = append(in.Stereo, mesher.StereoPoint{
			LandmarkID: mesh3d.LandmarkID(s.ID),
			Position:   r3.Vec{X: s.X, Y: s.Y, Z: s.Z},
			Valid:      s.Valid,
		})
	}

	for _, t := range rec.Triangles {
		in.Triangles = append(in.Triangles, mesh3d.Triangle2D{
			{U: t[0], V: t[1]},
			{U: t[2], V: t[3]},
			{U: t[4], V: t[5]},
		})
	}
	return in, nil
}
