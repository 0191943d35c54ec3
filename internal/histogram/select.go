package histogram

import (
	"math"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// PeakAction tags the decision taken for one peak during selection.
type PeakAction int

const (
	// PeakKept survives the merge pass.
	PeakKept PeakAction = iota
	// PeakDuplicate equals the previous surviving peak and is dropped.
	PeakDuplicate
	// PeakTooClose lies within the separation of the previous surviving
	// peak and has no more support, so it is dropped.
	PeakTooClose
	// PeakReplacedPrevious lies within the separation of the previous
	// surviving peak with more support, which it replaces.
	PeakReplacedPrevious
)

func (a PeakAction) String() string {
	switch a {
	case PeakKept:
		return "kept"
	case PeakDuplicate:
		return "duplicate"
	case PeakTooClose:
		return "too-close"
	case PeakReplacedPrevious:
		return "replaced-previous"
	default:
		return "unknown"
	}
}

// PeakDecision records what happened to one input peak.
type PeakDecision struct {
	Peak   Peak1D
	Action PeakAction
}

// PeakSelection is the outcome of SelectPeaks1D.
type PeakSelection struct {
	// Decisions has one entry per input peak, in input order.
	Decisions []PeakDecision
	// Merged holds the peaks surviving deduplication, in input order.
	Merged []Peak1D
	// Selected holds up to maxPeaks of Merged in decreasing support.
	Selected []Peak1D
}

// SelectPeaks1D walks peaks (ordered by bin) and builds a fresh output:
//  1. a peak equal to the previous surviving peak is dropped;
//  2. a peak whose value is within minSeparation of the previous surviving
//     peak competes with it and the lower support loses (ties keep the
//     earlier peak);
//  3. up to maxPeaks survivors are picked greedily by support, the first
//     encountered maximum winning ties.
func SelectPeaks1D(peaks []Peak1D, minSeparation geometry.Threshold, maxPeaks int) PeakSelection {
	sel := PeakSelection{Decisions: make([]PeakDecision, 0, len(peaks))}
	sep, checkSep := minSeparation.Value()

	var merged []Peak1D
	for _, p := range peaks {
		if len(merged) == 0 {
			merged = append(merged, p)
			sel.Decisions = append(sel.Decisions, PeakDecision{Peak: p, Action: PeakKept})
			continue
		}
		last := len(merged) - 1
		prev := merged[last]

		switch {
		case p == prev:
			sel.Decisions = append(sel.Decisions, PeakDecision{Peak: p, Action: PeakDuplicate})
			monitoring.Diagf("[histogram] dropping repeated peak in bin %d", p.Bin)
		case checkSep && math.Abs(prev.Value-p.Value) < sep:
			if prev.Support < p.Support {
				merged[last] = p
				sel.Decisions = append(sel.Decisions, PeakDecision{Peak: p, Action: PeakReplacedPrevious})
				monitoring.Diagf("[histogram] peak in bin %d replaces close peak in bin %d", p.Bin, prev.Bin)
			} else {
				sel.Decisions = append(sel.Decisions, PeakDecision{Peak: p, Action: PeakTooClose})
				monitoring.Diagf("[histogram] dropping peak in bin %d, too close to bin %d", p.Bin, prev.Bin)
			}
		default:
			merged = append(merged, p)
			sel.Decisions = append(sel.Decisions, PeakDecision{Peak: p, Action: PeakKept})
		}
	}
	sel.Merged = append([]Peak1D(nil), merged...)

	remaining := merged
	for n := 0; n < maxPeaks && len(remaining) > 0; n++ {
		best := 0
		for i := 1; i < len(remaining); i++ {
			if remaining[i].Support > remaining[best].Support {
				best = i
			}
		}
		sel.Selected = append(sel.Selected, remaining[best])
		remaining = append(remaining[:best:best], remaining[best+1:]...)
	}
	return sel
}
