package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RotationValidationTolerance bounds |det(R) - 1| and the deviation of
// R^T R from identity accepted by Pose.Validate.
const RotationValidationTolerance = 0.01

// Pose is a rigid camera-to-world transform. Rotation is row-major.
type Pose struct {
	Rotation    [9]float64
	Translation r3.Vec
}

// IdentityPose returns the pose with no rotation and no translation.
func IdentityPose() Pose {
	return Pose{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Validate checks that Rotation is a proper rotation: orthonormal with
// determinant 1, and that no component is NaN.
func (p Pose) Validate() error {
	for i, v := range p.Rotation {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("rotation[%d] is not finite: %v", i, v)
		}
	}
	t := p.Translation
	if math.IsNaN(t.X+t.Y+t.Z) || math.IsInf(t.X+t.Y+t.Z, 0) {
		return fmt.Errorf("translation is not finite: %v", t)
	}

	r := mat.NewDense(3, 3, p.Rotation[:])
	if det := mat.Det(r); math.Abs(det-1) > RotationValidationTolerance {
		return fmt.Errorf("rotation determinant %.4f, want 1", det)
	}

	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	eye := mat.NewDiagDense(3, []float64{1, 1, 1})
	if !mat.EqualApprox(&rtr, eye, RotationValidationTolerance) {
		return fmt.Errorf("rotation is not orthonormal")
	}
	return nil
}

// TransformFrom maps a point expressed in the camera frame to world.
func (p Pose) TransformFrom(c r3.Vec) r3.Vec {
	R := &p.Rotation
	return r3.Vec{
		X: R[0]*c.X + R[1]*c.Y + R[2]*c.Z + p.Translation.X,
		Y: R[3]*c.X + R[4]*c.Y + R[5]*c.Z + p.Translation.Y,
		Z: R[6]*c.X + R[7]*c.Y + R[8]*c.Z + p.Translation.Z,
	}
}

// TransformTo maps a world point into the camera frame, R^T (w - t).
func (p Pose) TransformTo(w r3.Vec) r3.Vec {
	R := &p.Rotation
	d := r3.Sub(w, p.Translation)
	return r3.Vec{
		X: R[0]*d.X + R[3]*d.Y + R[6]*d.Z,
		Y: R[1]*d.X + R[4]*d.Y + R[7]*d.Z,
		Z: R[2]*d.X + R[5]*d.Y + R[8]*d.Z,
	}
}
