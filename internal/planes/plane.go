// Package planes extracts planar structures from the mesh and tracks them
// across frames. A Segmenter makes one pass over the mesh to refresh the
// membership of tracked planes and to vote for new horizontal and vertical
// planes; Associate matches the new candidates against the tracked set.
package planes

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/planemesh/internal/mesh3d"
)

// ClusterTag is the coarse category of a plane.
type ClusterTag int

const (
	ClusterWall   ClusterTag = 1
	ClusterGround ClusterTag = 2
)

func (c ClusterTag) String() string {
	switch c {
	case ClusterWall:
		return "wall"
	case ClusterGround:
		return "ground"
	default:
		return fmt.Sprintf("cluster(%d)", int(c))
	}
}

// Symbol is a character-prefixed plane identifier such as P12.
type Symbol struct {
	Chr   byte
	Index uint64
}

func (s Symbol) String() string {
	return string(s.Chr) + strconv.FormatUint(s.Index, 10)
}

// MarshalText encodes the symbol as its string form.
func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a symbol such as "P12".
func (s *Symbol) UnmarshalText(b []byte) error {
	sym, err := ParseSymbol(string(b))
	if err != nil {
		return err
	}
	*s = sym
	return nil
}

// ParseSymbol parses the output of Symbol.String.
func ParseSymbol(str string) (Symbol, error) {
	if len(str) < 2 {
		return Symbol{}, fmt.Errorf("invalid plane symbol %q", str)
	}
	idx, err := strconv.ParseUint(str[1:], 10, 64)
	if err != nil {
		return Symbol{}, fmt.Errorf("invalid plane symbol %q: %w", str, err)
	}
	return Symbol{Chr: str[0], Index: idx}, nil
}

// IDSequence hands out plane symbols. Indices increase monotonically and
// are never reused for the lifetime of the sequence.
type IDSequence struct {
	next uint64
}

// NewIDSequence returns a sequence whose first symbol has index start.
func NewIDSequence(start uint64) *IDSequence {
	return &IDSequence{next: start}
}

// Next returns a fresh symbol.
func (s *IDSequence) Next() Symbol {
	sym := Symbol{Chr: 'P', Index: s.next}
	s.next++
	return sym
}

// Peek returns the index the next symbol will carry.
func (s *IDSequence) Peek() uint64 { return s.next }

// Plane is {x : x·Normal = Distance} with its supporting landmarks.
// LandmarkIDs and TriangleIDs are recomputed on every segmentation pass.
type Plane struct {
	ID          Symbol              `json:"id"`
	Normal      r3.Vec              `json:"normal"`
	Distance    float64             `json:"distance"`
	LandmarkIDs []mesh3d.LandmarkID `json:"lmk_ids"`
	Cluster     ClusterTag          `json:"cluster"`
	TriangleIDs []int               `json:"triangle_ids"`
}

// Clone returns a deep copy.
func (p Plane) Clone() Plane {
	p.LandmarkIDs = append([]mesh3d.LandmarkID(nil), p.LandmarkIDs...)
	p.TriangleIDs = append([]int(nil), p.TriangleIDs...)
	return p
}

// ClonePlanes deep-copies a plane slice.
func ClonePlanes(ps []Plane) []Plane {
	if ps == nil {
		return nil
	}
	out := make([]Plane, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

// GeometricEqual reports whether p and o describe the same surface: the
// normals are equal or opposite within normalTol (|n1-n2| or |n1+n2|) and
// the absolute distances differ by less than distanceTol.
func (p Plane) GeometricEqual(o Plane, normalTol, distanceTol float64) bool {
	if r3.Norm(r3.Sub(p.Normal, o.Normal)) >= normalTol &&
		r3.Norm(r3.Add(p.Normal, o.Normal)) >= normalTol {
		return false
	}
	return math.Abs(math.Abs(p.Distance)-math.Abs(o.Distance)) < distanceTol
}

// ResidualRMS returns the root mean square point-to-plane distance of the
// member landmarks found in positions. ok is false when no member has a
// known position.
func (p Plane) ResidualRMS(positions mesh3d.LandmarkMap) (rms float64, ok bool) {
	sq := make([]float64, 0, len(p.LandmarkIDs))
	for _, id := range p.LandmarkIDs {
		pos, found := positions[id]
		if !found {
			continue
		}
		r := r3.Dot(pos, p.Normal) - p.Distance
		sq = append(sq, r*r)
	}
	if len(sq) == 0 {
		return 0, false
	}
	return math.Sqrt(stat.Mean(sq, nil)), true
}

func (p Plane) String() string {
	return fmt.Sprintf("%s{n=(%.3f, %.3f, %.3f) d=%.3f %s lmks=%d}",
		p.ID, p.Normal.X, p.Normal.Y, p.Normal.Z, p.Distance, p.Cluster, len(p.LandmarkIDs))
}
