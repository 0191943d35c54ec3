package histogram

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Peak1D is a local maximum of a smoothed 1D histogram. Value is the bin
// centre and Support the smoothed vote count at that bin.
type Peak1D struct {
	Bin     int
	Value   float64
	Support float64
}

// Hist1D is a fixed-layout histogram over [Min, Max).
type Hist1D struct {
	bins     int
	min, max float64
	dividers []float64
	counts   []float64
	smoothed []float64
}

// NewHist1D returns a histogram with the given number of bins over [min, max).
func NewHist1D(bins int, min, max float64) (*Hist1D, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("histogram needs a positive bin count, got %d", bins)
	}
	if !(min < max) {
		return nil, fmt.Errorf("histogram range [%g, %g) is empty", min, max)
	}
	return &Hist1D{
		bins:     bins,
		min:      min,
		max:      max,
		dividers: floats.Span(make([]float64, bins+1), min, max),
		counts:   make([]float64, bins),
	}, nil
}

// Bins returns the bin count.
func (h *Hist1D) Bins() int { return h.bins }

// BinWidth returns the width of one bin.
func (h *Hist1D) BinWidth() float64 { return (h.max - h.min) / float64(h.bins) }

// BinCenter returns the centre value of bin i.
func (h *Hist1D) BinCenter(i int) float64 {
	return h.min + (float64(i)+0.5)*h.BinWidth()
}

// Calculate replaces the counts with a histogram of values. Values outside
// [Min, Max) are ignored. It returns the number of values binned.
func (h *Hist1D) Calculate(values []float64) int {
	in := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= h.min && v < h.max {
			in = append(in, v)
		}
	}
	sort.Float64s(in)

	for i := range h.counts {
		h.counts[i] = 0
	}
	h.smoothed = nil
	if len(in) > 0 {
		stat.Histogram(h.counts, h.dividers, in, nil)
	}
	return len(in)
}

// Counts returns a copy of the raw counts.
func (h *Hist1D) Counts() []float64 {
	return append([]float64(nil), h.counts...)
}

// Smoothed returns a copy of the counts as smoothed by the last
// LocalMaxima1D call, or nil.
func (h *Hist1D) Smoothed() []float64 {
	return append([]float64(nil), h.smoothed...)
}

// LocalMaxima1D smooths the counts and returns the peaks in bin order. A
// bin is a peak when it is >= every bin within windowSize on each side and
// strictly greater than at least one of them, its support is at least
// minSupport, and it reaches peakPer times the global smoothed maximum.
func (h *Hist1D) LocalMaxima1D(kernelSize, windowSize int, peakPer, minSupport float64) []Peak1D {
	h.smoothed = Smooth1D(h.counts, kernelSize)
	s := h.smoothed
	if len(s) == 0 {
		return nil
	}
	globalMax := floats.Max(s)
	if globalMax <= 0 {
		return nil
	}

	var peaks []Peak1D
	for i, v := range s {
		if v < minSupport || v < peakPer*globalMax {
			continue
		}
		isMax, strictlyAbove, neighbours := true, false, 0
		for j := i - windowSize; j <= i+windowSize; j++ {
			if j == i || j < 0 || j >= len(s) {
				continue
			}
			neighbours++
			if s[j] > v {
				isMax = false
				break
			}
			if v > s[j] {
				strictlyAbove = true
			}
		}
		if !isMax || (neighbours > 0 && !strictlyAbove) {
			continue
		}
		peaks = append(peaks, Peak1D{Bin: i, Value: h.BinCenter(i), Support: v})
	}
	return peaks
}
