package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PointAtDistanceFromPlane reports whether |d - p·n| <= tol for the plane
// {x : x·n = d}. normal must be unit and tol non-negative.
func PointAtDistanceFromPlane(p r3.Vec, d float64, normal r3.Vec, tol float64) bool {
	if !IsUnit(normal) {
		Preconditionf("PointAtDistanceFromPlane", "normal %v is not unit", normal)
	}
	if tol < 0 {
		Preconditionf("PointAtDistanceFromPlane", "negative tolerance %g", tol)
	}
	return math.Abs(d-r3.Dot(p, normal)) <= tol
}

// PolygonAtDistanceFromPlane reports whether every point lies within tol
// of the plane.
func PolygonAtDistanceFromPlane(points []r3.Vec, d float64, normal r3.Vec, tol float64) bool {
	for _, p := range points {
		if !PointAtDistanceFromPlane(p, d, normal, tol) {
			return false
		}
	}
	return true
}

// TangentialRadialRatio measures how a triangle extends across the viewing
// direction of pose versus along it. Points are moved into the camera
// frame; tangential is the largest pairwise distance in the camera x-y
// plane and radial is the spread of camera z. A triangle with no radial
// spread returns +Inf.
func TangentialRadialRatio(pose Pose, points ...r3.Vec) float64 {
	cam := make([]r3.Vec, len(points))
	for i, p := range points {
		cam[i] = pose.TransformTo(p)
	}

	var tangential float64
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for i := range cam {
		minZ = math.Min(minZ, cam[i].Z)
		maxZ = math.Max(maxZ, cam[i].Z)
		for j := i + 1; j < len(cam); j++ {
			dx, dy := cam[i].X-cam[j].X, cam[i].Y-cam[j].Y
			tangential = math.Max(tangential, math.Hypot(dx, dy))
		}
	}
	radial := maxZ - minZ
	if radial == 0 {
		return math.Inf(1)
	}
	return tangential / radial
}
