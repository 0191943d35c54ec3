package geometry

import (
	"errors"
	"fmt"
)

// ErrPrecondition is wrapped by every error produced from a recovered
// precondition violation.
var ErrPrecondition = errors.New("precondition violated")

// PreconditionError describes a broken caller contract: a non-unit normal,
// an out-of-range tolerance, a polygon of the wrong arity, an unresolvable
// landmark. It is raised with panic and aborts the current call.
type PreconditionError struct {
	Op  string
	Msg string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Unwrap lets errors.Is match ErrPrecondition.
func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// Preconditionf panics with a *PreconditionError for op.
func Preconditionf(op, format string, args ...interface{}) {
	panic(&PreconditionError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// RecoverPrecondition converts a *PreconditionError panic into an error
// stored in *errp. Any other panic is re-raised. Use it as
//
//	defer geometry.RecoverPrecondition(&err)
func RecoverPrecondition(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if pe, ok := r.(*PreconditionError); ok {
		*errp = pe
		return
	}
	panic(r)
}
