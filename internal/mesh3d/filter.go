package mesh3d

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
)

// Thresholds configures the triangle quality tests. A disabled threshold
// skips its test.
type Thresholds struct {
	MinSideRatio       geometry.Threshold
	MinElongationRatio geometry.Threshold
	MaxSide            geometry.Threshold
}

// ThresholdsFromSentinels builds Thresholds from the numeric convention
// used in configuration, where values <= 0 disable a test.
func ThresholdsFromSentinels(minSideRatio, minElongationRatio, maxSide float64) Thresholds {
	return Thresholds{
		MinSideRatio:       geometry.ThresholdFromSentinel(minSideRatio),
		MinElongationRatio: geometry.ThresholdFromSentinel(minElongationRatio),
		MaxSide:            geometry.ThresholdFromSentinel(maxSide),
	}
}

// WithoutElongation returns a copy with the elongation test disabled.
// Vertices revisited outside their observation frame have no meaningful
// viewing ray.
func (t Thresholds) WithoutElongation() Thresholds {
	t.MinElongationRatio = geometry.Disabled()
	return t
}

// IsBadTriangle reports whether p fails any enabled quality test:
//   - shortest/longest edge below MinSideRatio
//   - tangential/radial extent in the camera frame below MinElongationRatio
//   - longest edge above MaxSide
func IsBadTriangle(p Polygon, pose geometry.Pose, th Thresholds) bool {
	checkArity("IsBadTriangle", p)
	p1, p2, p3 := p[0].Position, p[1].Position, p[2].Position

	minRatio, checkRatio := th.MinSideRatio.Value()
	maxSide, checkMaxSide := th.MaxSide.Value()

	if checkRatio || checkMaxSide {
		d12 := r3.Norm(r3.Sub(p1, p2))
		d23 := r3.Norm(r3.Sub(p2, p3))
		d31 := r3.Norm(r3.Sub(p3, p1))
		longest := math.Max(d12, math.Max(d23, d31))

		if checkRatio {
			shortest := math.Min(d12, math.Min(d23, d31))
			// A point triangle yields NaN and fails.
			if !(shortest/longest >= minRatio) {
				return true
			}
		}
		if checkMaxSide && longest > maxSide {
			return true
		}
	}

	if minElong, ok := th.MinElongationRatio.Value(); ok {
		if !(geometry.TangentialRadialRatio(pose, p1, p2, p3) >= minElong) {
			return true
		}
	}
	return false
}

// FilterOutBadTriangles returns a new mesh holding only the polygons of m
// that pass IsBadTriangle.
func FilterOutBadTriangles(m *Mesh, pose geometry.Pose, th Thresholds) *Mesh {
	out := NewMesh()
	for _, p := range m.Polygons() {
		if !IsBadTriangle(p, pose, th) {
			out.AddPolygon(p)
		}
	}
	return out
}
