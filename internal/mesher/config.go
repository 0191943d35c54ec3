package mesher

import (
	"fmt"

	"github.com/banshee-data/planemesh/internal/config"
	"github.com/banshee-data/planemesh/internal/geometry"
	"github.com/banshee-data/planemesh/internal/histogram"
	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/planes"
)

// Config gathers every tunable used by a Mesher.
type Config struct {
	Triangles                   mesh3d.Thresholds
	ReduceMeshToTimeHorizon     bool
	AddExtraLandmarksFromStereo bool

	// Plane to plane association.
	PlaneNormalTolerance   float64
	PlaneDistanceTolerance float64
	DoDoubleAssociation    bool

	Segmenter planes.Config
}

// ConfigFromTuning validates tc and maps it onto a Config.
func ConfigFromTuning(tc *config.TuningConfig) (Config, error) {
	if err := tc.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid tuning config: %w", err)
	}
	addStereo := tc.GetAddExtraLmksFromStereo()
	return Config{
		Triangles: mesh3d.ThresholdsFromSentinels(
			tc.GetMinRatioBtwLargestSmallestSide(),
			tc.GetMinElongationRatio(),
			tc.GetMaxTriangleSide(),
		),
		ReduceMeshToTimeHorizon:     tc.GetReduceMeshToTimeHorizon(),
		AddExtraLandmarksFromStereo: addStereo,
		PlaneNormalTolerance:        tc.GetNormalTolerancePlanePlaneAssociation(),
		PlaneDistanceTolerance:      tc.GetDistanceTolerancePlanePlaneAssociation(),
		DoDoubleAssociation:         tc.GetDoDoubleAssociation(),
		Segmenter: planes.Config{
			PolygonNormalTolerance:    tc.GetNormalTolerancePolygonPlaneAssociation(),
			PolygonDistanceTolerance:  tc.GetDistanceTolerancePolygonPlaneAssociation(),
			HorizontalTolerance:       tc.GetNormalToleranceHorizontalSurface(),
			WallTolerance:             tc.GetNormalToleranceWalls(),
			OnlyUseNonClusteredPoints: tc.GetOnlyUseNonClusteredPoints(),
			RestrictToLandmarkWindow:  addStereo,
			Height: planes.HeightHistogramConfig{
				Bins:          tc.GetZHistogramBins(),
				Min:           tc.GetZHistogramMinRange(),
				Max:           tc.GetZHistogramMaxRange(),
				KernelSize:    tc.GetZHistogramGaussianKernelSize(),
				WindowSize:    tc.GetZHistogramWindowSize(),
				PeakPer:       tc.GetZHistogramPeakPer(),
				MinSupport:    tc.GetZHistogramMinSupport(),
				MinSeparation: geometry.ThresholdFromSentinel(tc.GetZHistogramMinSeparation()),
				MaxPeaks:      tc.GetZHistogramMaxNumberOfPeaksToSelect(),
			},
			Wall: planes.WallHistogramConfig{
				Theta: histogram.Axis{
					Bins: tc.GetHist2DThetaBins(),
					Min:  tc.GetHist2DThetaRangeMin(),
					Max:  tc.GetHist2DThetaRangeMax(),
				},
				Distance: histogram.Axis{
					Bins: tc.GetHist2DDistanceBins(),
					Min:  tc.GetHist2DDistanceRangeMin(),
					Max:  tc.GetHist2DDistanceRangeMax(),
				},
				KernelSize:     tc.GetHist2DGaussianKernelSize(),
				MaxPeaks:       tc.GetHist2DNrOfLocalMax(),
				MinSupport:     float64(tc.GetHist2DMinSupport()),
				MinBinDistance: tc.GetHist2DMinDistBtwLocalMax(),
			},
			PlotDir:     tc.GetHistogramPlotDir(),
			PlotHeights: tc.GetVisualizeHistogram1D(),
			PlotWalls:   tc.GetVisualizeHistogram2D(),
		},
	}, nil
}
