package planes

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/histogram"
	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// HeightHistogramConfig lays out the 1D histogram of triangle heights.
type HeightHistogramConfig struct {
	Bins          int
	Min, Max      float64
	KernelSize    int
	WindowSize    int
	PeakPer       float64
	MinSupport    float64
	MinSeparation geometry.Threshold
	MaxPeaks      int
}

// WallHistogramConfig lays out the 2D histogram of wall azimuth and
// distance.
type WallHistogramConfig struct {
	Theta          histogram.Axis
	Distance       histogram.Axis
	KernelSize     int
	MaxPeaks       int
	MinSupport     float64
	MinBinDistance int
}

// Config holds every tolerance used by a Segmenter.
type Config struct {
	// Triangle to tracked plane membership.
	PolygonNormalTolerance   float64
	PolygonDistanceTolerance float64

	// Eligibility of triangles for new plane votes.
	HorizontalTolerance       float64
	WallTolerance             float64
	OnlyUseNonClusteredPoints bool

	// RestrictToLandmarkWindow keeps plane membership to landmarks present
	// in the estimator window. Needed when the mesh also holds stereo-only
	// landmarks.
	RestrictToLandmarkWindow bool

	Height HeightHistogramConfig
	Wall   WallHistogramConfig

	// PlotDir receives debug PNGs of the histograms when the matching
	// flag is set.
	PlotDir     string
	PlotHeights bool
	PlotWalls   bool
}

// Segmenter owns the histograms reused across segmentation calls.
type Segmenter struct {
	cfg      Config
	heights  *histogram.Hist1D
	walls    *histogram.Hist2D
	plotCall int
}

// NewSegmenter validates the histogram layouts and returns a Segmenter.
func NewSegmenter(cfg Config) (*Segmenter, error) {
	h, err := histogram.NewHist1D(cfg.Height.Bins, cfg.Height.Min, cfg.Height.Max)
	if err != nil {
		return nil, fmt.Errorf("height histogram: %w", err)
	}
	w, err := histogram.NewHist2D(cfg.Wall.Theta, cfg.Wall.Distance)
	if err != nil {
		return nil, fmt.Errorf("wall histogram: %w", err)
	}
	return &Segmenter{cfg: cfg, heights: h, walls: w}, nil
}

// Config returns the segmenter configuration.
func (s *Segmenter) Config() Config { return s.cfg }

// Segment clears the membership of every tracked plane, then makes a single
// pass over the mesh. Each triangle with a defined normal refreshes the
// membership of all tracked planes it lies on and, when eligible, votes in
// the height or wall histogram. New candidate planes are extracted from the
// histograms afterwards, horizontal ones first, taking ids from ids.
//
// tracked is modified in place.
func (s *Segmenter) Segment(m *mesh3d.Mesh, tracked []Plane, ids *IDSequence, window mesh3d.LandmarkMap) []Plane {
	for i := range tracked {
		tracked[i].LandmarkIDs = nil
		tracked[i].TriangleIDs = nil
	}

	var (
		zs         []float64
		wallVotes  []histogram.Point2D
		degenerate int
	)
	for ti := 0; ti < m.NumPolygons(); ti++ {
		poly, _ := m.Polygon(ti)
		p1, p2, p3 := poly[0].Position, poly[1].Position, poly[2].Position
		n, ok := geometry.TriangleNormal(p1, p2, p3)
		if !ok {
			degenerate++
			continue
		}

		onPlane := s.updatePlanesFromPolygon(tracked, poly, ti, n, window)
		if s.cfg.OnlyUseNonClusteredPoints && onPlane {
			continue
		}

		if geometry.AroundAxis(geometry.Vertical, n, s.cfg.HorizontalTolerance) {
			zs = append(zs, p1.Z, p2.Z, p3.Z)
		}
		if geometry.PerpendicularToAxis(geometry.Vertical, n, s.cfg.WallTolerance) {
			wallVotes = append(wallVotes, wallVote(p1, n))
		}
	}
	monitoring.Diagf("[planes] segment: %d polygons (%d degenerate), %d height votes, %d wall votes",
		m.NumPolygons(), degenerate, len(zs), len(wallVotes))

	s.plotCall++
	out := s.segmentHorizontal(zs, ids)
	return append(out, s.segmentWalls(wallVotes, ids)...)
}

// wallVote maps a vertical triangle to (azimuth, distance) with the
// azimuth folded into [0, π) so both orientations of a wall share a cell.
func wallVote(p1, n r3.Vec) histogram.Point2D {
	theta := geometry.Longitude(n, geometry.Vertical)
	d := r3.Dot(p1, n)
	if theta < 0 {
		theta += math.Pi
		d = -d
	}
	if theta >= math.Pi {
		theta -= math.Pi
		d = -d
	}
	return histogram.Point2D{X: theta, Y: d}
}

// UpdateMembershipFromMesh recomputes the landmark and triangle membership
// of planes from the mesh, appending to what they already hold.
func (s *Segmenter) UpdateMembershipFromMesh(m *mesh3d.Mesh, planes []Plane, window mesh3d.LandmarkMap) {
	for ti := 0; ti < m.NumPolygons(); ti++ {
		poly, _ := m.Polygon(ti)
		n, ok := geometry.TriangleNormal(poly[0].Position, poly[1].Position, poly[2].Position)
		if !ok {
			continue
		}
		s.updatePlanesFromPolygon(planes, poly, ti, n, window)
	}
}

// updatePlanesFromPolygon adds poly to every plane it lies on. A polygon
// may belong to several planes.
func (s *Segmenter) updatePlanesFromPolygon(planes []Plane, poly mesh3d.Polygon, triangleID int, n r3.Vec, window mesh3d.LandmarkMap) bool {
	onPlane := false
	pts := poly.Points()
	for i := range planes {
		pl := &planes[i]
		if !geometry.AroundAxis(pl.Normal, n, s.cfg.PolygonNormalTolerance) {
			continue
		}
		if !geometry.PolygonAtDistanceFromPlane(pts, pl.Distance, pl.Normal, s.cfg.PolygonDistanceTolerance) {
			continue
		}
		pl.LandmarkIDs = AppendLandmarkIDs(pl.LandmarkIDs, poly, s.cfg.RestrictToLandmarkWindow, window)
		pl.TriangleIDs = append(pl.TriangleIDs, triangleID)
		onPlane = true
	}
	return onPlane
}

// AppendLandmarkIDs appends the vertex ids of poly not already in ids. When
// restrict is set only ids present in window are added.
func AppendLandmarkIDs(ids []mesh3d.LandmarkID, poly mesh3d.Polygon, restrict bool, window mesh3d.LandmarkMap) []mesh3d.LandmarkID {
	for _, v := range poly {
		if slices.Contains(ids, v.LandmarkID) {
			continue
		}
		if restrict {
			if _, ok := window[v.LandmarkID]; !ok {
				continue
			}
		}
		ids = append(ids, v.LandmarkID)
	}
	return ids
}

func (s *Segmenter) segmentHorizontal(zs []float64, ids *IDSequence) []Plane {
	cfg := s.cfg.Height
	s.heights.Calculate(zs)
	peaks := s.heights.LocalMaxima1D(cfg.KernelSize, cfg.WindowSize, cfg.PeakPer, cfg.MinSupport)
	sel := histogram.SelectPeaks1D(peaks, cfg.MinSeparation, cfg.MaxPeaks)
	monitoring.Diagf("[planes] height histogram: %d peaks, %d after merge, %d selected",
		len(peaks), len(sel.Merged), len(sel.Selected))

	if s.cfg.PlotHeights && s.cfg.PlotDir != "" {
		path := filepath.Join(s.cfg.PlotDir, fmt.Sprintf("heights_%06d.png", s.plotCall))
		if err := histogram.SavePlot1D(s.heights, sel.Selected, "Height histogram", path); err != nil {
			monitoring.Opsf("[planes] height histogram plot: %v", err)
		}
	}

	out := make([]Plane, 0, len(sel.Selected))
	for _, pk := range sel.Selected {
		p := Plane{
			ID:       ids.Next(),
			Normal:   geometry.Vertical,
			Distance: pk.Value,
			Cluster:  ClusterGround,
		}
		monitoring.Tracef("[planes] horizontal candidate %s at z=%.3f support=%.1f", p.ID, pk.Value, pk.Support)
		out = append(out, p)
	}
	return out
}

func (s *Segmenter) segmentWalls(votes []histogram.Point2D, ids *IDSequence) []Plane {
	cfg := s.cfg.Wall
	s.walls.Calculate(votes)
	peaks := s.walls.LocalMaxima2D(cfg.KernelSize, cfg.MaxPeaks, cfg.MinSupport, cfg.MinBinDistance)
	monitoring.Diagf("[planes] wall histogram: %d peaks", len(peaks))

	if s.cfg.PlotWalls && s.cfg.PlotDir != "" {
		path := filepath.Join(s.cfg.PlotDir, fmt.Sprintf("walls_%06d.png", s.plotCall))
		if err := histogram.SaveHeatmap2D(s.walls, peaks, "Wall histogram", path); err != nil {
			monitoring.Opsf("[planes] wall histogram plot: %v", err)
		}
	}

	out := make([]Plane, 0, len(peaks))
	for _, pk := range peaks {
		p := Plane{
			ID:       ids.Next(),
			Normal:   r3.Vec{X: math.Cos(pk.XValue), Y: math.Sin(pk.XValue)},
			Distance: pk.YValue,
			Cluster:  ClusterWall,
		}
		monitoring.Tracef("[planes] wall candidate %s theta=%.3f d=%.3f support=%.1f",
			p.ID, pk.XValue, pk.YValue, pk.Support)
		out = append(out, p)
	}
	return out
}
