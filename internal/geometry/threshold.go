package geometry

import "fmt"

// Threshold is an optional numeric limit. A disabled threshold means the
// corresponding test is skipped and its quantity is never computed.
type Threshold struct {
	value   float64
	enabled bool
}

// Enabled returns a threshold that applies v.
func Enabled(v float64) Threshold { return Threshold{value: v, enabled: true} }

// Disabled returns a threshold that skips its test.
func Disabled() Threshold { return Threshold{} }

// ThresholdFromSentinel maps the configuration convention where a value
// <= 0 turns a test off.
func ThresholdFromSentinel(v float64) Threshold {
	if v <= 0 {
		return Disabled()
	}
	return Enabled(v)
}

// Value returns the limit and whether the threshold is enabled.
func (t Threshold) Value() (float64, bool) { return t.value, t.enabled }

// IsEnabled reports whether the test applies.
func (t Threshold) IsEnabled() bool { return t.enabled }

func (t Threshold) String() string {
	if !t.enabled {
		return "disabled"
	}
	return fmt.Sprintf("%g", t.value)
}
