// Package geometry holds the numeric primitives shared by mesh building and
// plane segmentation: camera poses, triangle normals, axis predicates,
// point-to-plane distances and the triangle elongation measure.
//
// Vectors are gonum r3.Vec values. Functions that require unit-norm inputs
// or tolerances in (0, 1) check them and panic with a *PreconditionError
// when violated; callers at the package boundary convert those panics back
// into errors with RecoverPrecondition.
package geometry
