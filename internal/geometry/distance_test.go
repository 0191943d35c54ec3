package geometry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestPointAtDistanceFromPlane(t *testing.T) {
	tests := []struct {
		name   string
		p      r3.Vec
		d      float64
		normal r3.Vec
		tol    float64
		want   bool
	}{
		{"on plane", r3.Vec{X: 3, Y: -2, Z: 1}, 1, Vertical, 0, true},
		{"inside tolerance", r3.Vec{Z: 1.05}, 1, Vertical, 0.1, true},
		{"outside tolerance", r3.Vec{Z: 1.2}, 1, Vertical, 0.1, false},
		{"flipped normal", r3.Vec{Z: 1}, -1, r3.Vec{Z: -1}, 0.01, true},
		{"wall", r3.Vec{X: 2, Z: 5}, 2, r3.Vec{X: 1}, 0.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointAtDistanceFromPlane(tt.p, tt.d, tt.normal, tt.tol); got != tt.want {
				t.Errorf("PointAtDistanceFromPlane = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolygonAtDistanceFromPlane(t *testing.T) {
	poly := []r3.Vec{{Z: 1}, {X: 1, Z: 1.02}, {Y: 1, Z: 0.98}}
	if !PolygonAtDistanceFromPlane(poly, 1, Vertical, 0.05) {
		t.Error("expected polygon within 0.05 of z=1")
	}
	if PolygonAtDistanceFromPlane(poly, 1, Vertical, 0.01) {
		t.Error("expected polygon outside 0.01 of z=1")
	}
}

func TestTangentialRadialRatio(t *testing.T) {
	pose := IdentityPose()

	// Fronto-parallel triangle: no depth spread.
	if got := TangentialRadialRatio(pose, r3.Vec{Z: 5}, r3.Vec{X: 1, Z: 5}, r3.Vec{Y: 1, Z: 5}); !math.IsInf(got, 1) {
		t.Errorf("fronto-parallel ratio = %f, want +Inf", got)
	}

	// Stretched along the viewing ray.
	got := TangentialRadialRatio(pose, r3.Vec{Z: 1}, r3.Vec{X: 0.1, Z: 5}, r3.Vec{Y: 0.1, Z: 3})
	want := math.Hypot(0.1, 0.1) / 4
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("ratio = %f, want %f", got, want)
	}
}

func TestTangentialRadialRatio_UsesCameraFrame(t *testing.T) {
	// Camera looking along world +x: camera z maps to world x.
	pose := Pose{Rotation: [9]float64{
		0, 0, 1,
		1, 0, 0,
		0, 1, 0,
	}}
	if err := pose.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// Triangle lying in a world y-z plane is fronto-parallel to this camera.
	got := TangentialRadialRatio(pose, r3.Vec{X: 4}, r3.Vec{X: 4, Y: 1}, r3.Vec{X: 4, Z: 1})
	if !math.IsInf(got, 1) {
		t.Errorf("ratio = %f, want +Inf", got)
	}
}
