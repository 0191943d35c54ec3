package histogram

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// SavePlot1D writes a PNG of the smoothed 1D histogram with peaks marked.
// LocalMaxima1D must have been called first.
func SavePlot1D(h *Hist1D, peaks []Peak1D, title, path string) error {
	if h.smoothed == nil {
		return fmt.Errorf("histogram has not been smoothed")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Height (m)"
	p.Y.Label.Text = "Votes"

	pts := make(plotter.XYs, len(h.smoothed))
	for i, v := range h.smoothed {
		pts[i] = plotter.XY{X: h.BinCenter(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("create histogram line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 40, G: 90, B: 200, A: 255}
	p.Add(line)

	if len(peaks) > 0 {
		peakPts := make(plotter.XYs, len(peaks))
		for i, pk := range peaks {
			peakPts[i] = plotter.XY{X: pk.Value, Y: pk.Support}
		}
		sc, err := plotter.NewScatter(peakPts)
		if err != nil {
			return fmt.Errorf("create peak scatter: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Color = color.RGBA{R: 220, G: 30, B: 30, A: 255}
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("peaks", sc)
	}

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save histogram plot: %w", err)
	}
	return nil
}

// grid adapts a smoothed Hist2D to plotter.GridXYZ.
type grid struct {
	h *Hist2D
}

func (g grid) Dims() (c, r int)   { return g.h.X.Bins, g.h.Y.Bins }
func (g grid) Z(c, r int) float64 { return g.h.smoothed[c][r] }
func (g grid) X(c int) float64    { return g.h.X.center(c) }
func (g grid) Y(r int) float64    { return g.h.Y.center(r) }

// SaveHeatmap2D writes a PNG heat map of the smoothed 2D histogram.
// LocalMaxima2D must have been called first.
func SaveHeatmap2D(h *Hist2D, peaks []Peak2D, title, path string) error {
	if h.smoothed == nil {
		return fmt.Errorf("histogram has not been smoothed")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Theta (rad)"
	p.Y.Label.Text = "Distance (m)"

	hm := plotter.NewHeatMap(grid{h: h}, palette.Heat(12, 1))
	p.Add(hm)

	if len(peaks) > 0 {
		pts := make(plotter.XYs, len(peaks))
		for i, pk := range peaks {
			pts[i] = plotter.XY{X: pk.XValue, Y: pk.YValue}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("create peak scatter: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Color = color.White
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save heat map: %w", err)
	}
	return nil
}
