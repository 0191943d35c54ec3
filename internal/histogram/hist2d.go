package histogram

import (
	"fmt"
	"math"
	"sort"
)

// Point2D is one vote of the 2D histogram.
type Point2D struct {
	X, Y float64
}

// Peak2D is a local maximum of a smoothed 2D histogram.
type Peak2D struct {
	BinX, BinY     int
	XValue, YValue float64
	Support        float64
}

// Axis describes one dimension of a Hist2D.
type Axis struct {
	Bins     int
	Min, Max float64
}

func (a Axis) width() float64 { return (a.Max - a.Min) / float64(a.Bins) }

func (a Axis) center(i int) float64 { return a.Min + (float64(i)+0.5)*a.width() }

// bin returns the bin index of v, or false when v is outside [Min, Max).
func (a Axis) bin(v float64) (int, bool) {
	if !(v >= a.Min && v < a.Max) {
		return 0, false
	}
	i := int(math.Floor((v - a.Min) / a.width()))
	if i >= a.Bins {
		i = a.Bins - 1
	}
	return i, true
}

// Hist2D is a fixed-layout histogram over [X.Min, X.Max) x [Y.Min, Y.Max).
type Hist2D struct {
	X, Y     Axis
	counts   [][]float64
	smoothed [][]float64
}

// NewHist2D returns an empty 2D histogram.
func NewHist2D(x, y Axis) (*Hist2D, error) {
	for _, a := range []Axis{x, y} {
		if a.Bins <= 0 {
			return nil, fmt.Errorf("histogram needs a positive bin count, got %d", a.Bins)
		}
		if !(a.Min < a.Max) {
			return nil, fmt.Errorf("histogram range [%g, %g) is empty", a.Min, a.Max)
		}
	}
	h := &Hist2D{X: x, Y: y}
	h.counts = newGrid(x.Bins, y.Bins)
	return h, nil
}

func newGrid(nx, ny int) [][]float64 {
	g := make([][]float64, nx)
	for i := range g {
		g[i] = make([]float64, ny)
	}
	return g
}

// Calculate replaces the counts with a histogram of points and returns the
// number binned. Points outside the range are ignored.
func (h *Hist2D) Calculate(points []Point2D) int {
	for _, row := range h.counts {
		for j := range row {
			row[j] = 0
		}
	}
	h.smoothed = nil

	n := 0
	for _, p := range points {
		bx, okx := h.X.bin(p.X)
		by, oky := h.Y.bin(p.Y)
		if okx && oky {
			h.counts[bx][by]++
			n++
		}
	}
	return n
}

// Count returns the raw count of bin (x, y).
func (h *Hist2D) Count(x, y int) float64 { return h.counts[x][y] }

// Smoothed returns the grid smoothed by the last LocalMaxima2D call.
func (h *Hist2D) Smoothed() [][]float64 {
	out := make([][]float64, len(h.smoothed))
	for i, row := range h.smoothed {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// LocalMaxima2D smooths the counts and returns the 8-neighbour local
// maxima with support >= minSupport, strongest first. A peak closer than
// minBinDistance bins to an already accepted one is skipped. At most
// maxPeaks are returned; maxPeaks <= 0 means no limit.
func (h *Hist2D) LocalMaxima2D(kernelSize, maxPeaks int, minSupport float64, minBinDistance int) []Peak2D {
	h.smoothed = Smooth2D(h.counts, kernelSize)
	s := h.smoothed

	var candidates []Peak2D
	for x := range s {
		for y, v := range s[x] {
			if v <= 0 || v < minSupport {
				continue
			}
			if !isLocalMax2D(s, x, y) {
				continue
			}
			candidates = append(candidates, Peak2D{
				BinX: x, BinY: y,
				XValue:  h.X.center(x),
				YValue:  h.Y.center(y),
				Support: v,
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Support > candidates[j].Support
	})

	var peaks []Peak2D
	for _, c := range candidates {
		if maxPeaks > 0 && len(peaks) >= maxPeaks {
			break
		}
		tooClose := false
		for _, p := range peaks {
			dx, dy := float64(c.BinX-p.BinX), float64(c.BinY-p.BinY)
			if math.Hypot(dx, dy) < float64(minBinDistance) {
				tooClose = true
				break
			}
		}
		if !tooClose {
			peaks = append(peaks, c)
		}
	}
	return peaks
}

// isLocalMax2D requires s[x][y] >= every existing 8-neighbour and strictly
// greater than at least one.
func isLocalMax2D(s [][]float64, x, y int) bool {
	v := s[x][y]
	strictly, neighbours := false, 0
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || nx >= len(s) || ny < 0 || ny >= len(s[nx]) {
				continue
			}
			neighbours++
			if s[nx][ny] > v {
				return false
			}
			if v > s[nx][ny] {
				strictly = true
			}
		}
	}
	return strictly || neighbours == 0
}
