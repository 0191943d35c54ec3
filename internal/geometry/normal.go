package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// CollinearEpsilon is the |cos| margin under which two triangle edges
	// are treated as parallel, roughly a 2.5 degree aperture.
	CollinearEpsilon = 1e-3

	// UnitNormTolerance bounds |‖n‖ - 1| for vectors required to be unit.
	UnitNormTolerance = 1e-5
)

// Vertical is the world up axis.
var Vertical = r3.Vec{X: 0, Y: 0, Z: 1}

// TriangleNormal returns the unit normal of (p1, p2, p3) following the
// right-hand rule. ok is false when the triangle is degenerate: an edge
// from p1 has zero length or the two edges are nearly parallel.
func TriangleNormal(p1, p2, p3 r3.Vec) (n r3.Vec, ok bool) {
	e1 := r3.Sub(p2, p1)
	e2 := r3.Sub(p3, p1)
	l1, l2 := r3.Norm(e1), r3.Norm(e2)
	if l1 == 0 || l2 == 0 {
		return r3.Vec{}, false
	}
	e1 = r3.Scale(1/l1, e1)
	e2 = r3.Scale(1/l2, e2)

	if math.Abs(r3.Dot(e1, e2)) >= 1-CollinearEpsilon {
		return r3.Vec{}, false
	}
	return r3.Unit(r3.Cross(e1, e2)), true
}

// IsUnit reports whether v has unit norm within UnitNormTolerance.
func IsUnit(v r3.Vec) bool {
	return math.Abs(r3.Norm(v)-1) <= UnitNormTolerance
}

func checkAxisArgs(op string, axis, normal r3.Vec, tol float64) {
	if !IsUnit(axis) {
		Preconditionf(op, "axis %v is not unit (norm %.6f)", axis, r3.Norm(axis))
	}
	if !IsUnit(normal) {
		Preconditionf(op, "normal %v is not unit (norm %.6f)", normal, r3.Norm(normal))
	}
	if !(tol > 0 && tol < 1) {
		Preconditionf(op, "tolerance %g outside (0, 1)", tol)
	}
}

// AroundAxis reports whether normal is parallel or antiparallel to axis:
// |axis·normal| > 1 - tol.
func AroundAxis(axis, normal r3.Vec, tol float64) bool {
	checkAxisArgs("AroundAxis", axis, normal, tol)
	return math.Abs(r3.Dot(axis, normal)) > 1-tol
}

// PerpendicularToAxis reports whether |axis·normal| < tol.
func PerpendicularToAxis(axis, normal r3.Vec, tol float64) bool {
	checkAxisArgs("PerpendicularToAxis", axis, normal, tol)
	return math.Abs(r3.Dot(axis, normal)) < tol
}

// ClusterNormalsAroundAxis returns the indices of normals that satisfy
// AroundAxis, in input order.
func ClusterNormalsAroundAxis(axis r3.Vec, normals []r3.Vec, tol float64) []int {
	var idx []int
	for i, n := range normals {
		if AroundAxis(axis, n, tol) {
			idx = append(idx, i)
		}
	}
	return idx
}

// ClusterNormalsPerpendicularToAxis returns the indices of normals that
// satisfy PerpendicularToAxis, in input order.
func ClusterNormalsPerpendicularToAxis(axis r3.Vec, normals []r3.Vec, tol float64) []int {
	var idx []int
	for i, n := range normals {
		if PerpendicularToAxis(axis, n, tol) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Longitude returns the azimuth of normal around vertical in (-π, π].
// The reference direction is the world x axis projected onto the plane
// orthogonal to vertical; for the default Vertical this is atan2(n.y, n.x).
func Longitude(normal, vertical r3.Vec) float64 {
	if !IsUnit(vertical) {
		Preconditionf("Longitude", "vertical %v is not unit", vertical)
	}
	eq := r3.Sub(normal, r3.Scale(r3.Dot(normal, vertical), vertical))
	if r3.Norm(eq) == 0 {
		Preconditionf("Longitude", "normal %v has no equatorial component", normal)
	}

	ref := r3.Vec{X: 1}
	if math.Abs(r3.Dot(ref, vertical)) > 1-CollinearEpsilon {
		ref = r3.Vec{Y: 1}
	}
	xAxis := r3.Unit(r3.Sub(ref, r3.Scale(r3.Dot(ref, vertical), vertical)))
	yAxis := r3.Cross(vertical, xAxis)
	return math.Atan2(r3.Dot(eq, yAxis), r3.Dot(eq, xAxis))
}
