package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the flat set of named tunables read by the mesher and
// the plane segmentation. Every field is optional: a nil pointer falls
// back to the default returned by the matching Get* method, so partial
// JSON files are safe.
type TuningConfig struct {
	// Mesh construction
	AddExtraLmksFromStereo         *bool    `json:"add_extra_lmks_from_stereo,omitempty"`
	ReduceMeshToTimeHorizon        *bool    `json:"reduce_mesh_to_time_horizon,omitempty"`
	MinRatioBtwLargestSmallestSide *float64 `json:"min_ratio_btw_largest_smallest_side,omitempty"`
	MinElongationRatio             *float64 `json:"min_elongation_ratio,omitempty"`
	MaxTriangleSide                *float64 `json:"max_triangle_side,omitempty"`

	// Polygon to plane association
	NormalTolerancePolygonPlaneAssociation   *float64 `json:"normal_tolerance_polygon_plane_association,omitempty"`
	DistanceTolerancePolygonPlaneAssociation *float64 `json:"distance_tolerance_polygon_plane_association,omitempty"`

	// Plane to plane association
	NormalTolerancePlanePlaneAssociation   *float64 `json:"normal_tolerance_plane_plane_association,omitempty"`
	DistanceTolerancePlanePlaneAssociation *float64 `json:"distance_tolerance_plane_plane_association,omitempty"`
	DoDoubleAssociation                    *bool    `json:"do_double_association,omitempty"`

	// Segmentation
	ClusterPlanes                    *bool    `json:"cluster_planes,omitempty"`
	NormalToleranceHorizontalSurface *float64 `json:"normal_tolerance_horizontal_surface,omitempty"`
	NormalToleranceWalls             *float64 `json:"normal_tolerance_walls,omitempty"`
	OnlyUseNonClusteredPoints        *bool    `json:"only_use_non_clustered_points,omitempty"`

	// 2D (wall) histogram
	Hist2DGaussianKernelSize *int     `json:"hist_2d_gaussian_kernel_size,omitempty"`
	Hist2DNrOfLocalMax       *int     `json:"hist_2d_nr_of_local_max,omitempty"`
	Hist2DMinSupport         *int     `json:"hist_2d_min_support,omitempty"`
	Hist2DMinDistBtwLocalMax *int     `json:"hist_2d_min_dist_btw_local_max,omitempty"`
	Hist2DThetaBins          *int     `json:"hist_2d_theta_bins,omitempty"`
	Hist2DDistanceBins       *int     `json:"hist_2d_distance_bins,omitempty"`
	Hist2DThetaRangeMin      *float64 `json:"hist_2d_theta_range_min,omitempty"`
	Hist2DThetaRangeMax      *float64 `json:"hist_2d_theta_range_max,omitempty"`
	Hist2DDistanceRangeMin   *float64 `json:"hist_2d_distance_range_min,omitempty"`
	Hist2DDistanceRangeMax   *float64 `json:"hist_2d_distance_range_max,omitempty"`

	// 1D (height) histogram
	ZHistogramBins                  *int     `json:"z_histogram_bins,omitempty"`
	ZHistogramMinRange              *float64 `json:"z_histogram_min_range,omitempty"`
	ZHistogramMaxRange              *float64 `json:"z_histogram_max_range,omitempty"`
	ZHistogramWindowSize            *int     `json:"z_histogram_window_size,omitempty"`
	ZHistogramPeakPer               *float64 `json:"z_histogram_peak_per,omitempty"`
	ZHistogramMinSupport            *float64 `json:"z_histogram_min_support,omitempty"`
	ZHistogramMinSeparation         *float64 `json:"z_histogram_min_separation,omitempty"`
	ZHistogramGaussianKernelSize    *int     `json:"z_histogram_gaussian_kernel_size,omitempty"`
	ZHistogramMaxNumberOfPeaksToSel *int     `json:"z_histogram_max_number_of_peaks_to_select,omitempty"`

	// Debug output
	VisualizeHistogram1D *bool   `json:"visualize_histogram_1d,omitempty"`
	VisualizeHistogram2D *bool   `json:"visualize_histogram_2d,omitempty"`
	HistogramPlotDir     *string `json:"histogram_plot_dir,omitempty"`

	// Pipeline
	QueueSize *int `json:"queue_size,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		AddExtraLmksFromStereo:                   ptrBool(c.GetAddExtraLmksFromStereo()),
		ReduceMeshToTimeHorizon:                  ptrBool(c.GetReduceMeshToTimeHorizon()),
		MinRatioBtwLargestSmallestSide:           ptrFloat64(c.GetMinRatioBtwLargestSmallestSide()),
		MinElongationRatio:                       ptrFloat64(c.GetMinElongationRatio()),
		MaxTriangleSide:                          ptrFloat64(c.GetMaxTriangleSide()),
		NormalTolerancePolygonPlaneAssociation:   ptrFloat64(c.GetNormalTolerancePolygonPlaneAssociation()),
		DistanceTolerancePolygonPlaneAssociation: ptrFloat64(c.GetDistanceTolerancePolygonPlaneAssociation()),
		NormalTolerancePlanePlaneAssociation:     ptrFloat64(c.GetNormalTolerancePlanePlaneAssociation()),
		DistanceTolerancePlanePlaneAssociation:   ptrFloat64(c.GetDistanceTolerancePlanePlaneAssociation()),
		DoDoubleAssociation:                      ptrBool(c.GetDoDoubleAssociation()),
		ClusterPlanes:                            ptrBool(c.GetClusterPlanes()),
		NormalToleranceHorizontalSurface:         ptrFloat64(c.GetNormalToleranceHorizontalSurface()),
		NormalToleranceWalls:                     ptrFloat64(c.GetNormalToleranceWalls()),
		OnlyUseNonClusteredPoints:                ptrBool(c.GetOnlyUseNonClusteredPoints()),
		Hist2DGaussianKernelSize:                 ptrInt(c.GetHist2DGaussianKernelSize()),
		Hist2DNrOfLocalMax:                       ptrInt(c.GetHist2DNrOfLocalMax()),
		Hist2DMinSupport:                         ptrInt(c.GetHist2DMinSupport()),
		Hist2DMinDistBtwLocalMax:                 ptrInt(c.GetHist2DMinDistBtwLocalMax()),
		Hist2DThetaBins:                          ptrInt(c.GetHist2DThetaBins()),
		Hist2DDistanceBins:                       ptrInt(c.GetHist2DDistanceBins()),
		Hist2DThetaRangeMin:                      ptrFloat64(c.GetHist2DThetaRangeMin()),
		Hist2DThetaRangeMax:                      ptrFloat64(c.GetHist2DThetaRangeMax()),
		Hist2DDistanceRangeMin:                   ptrFloat64(c.GetHist2DDistanceRangeMin()),
		Hist2DDistanceRangeMax:                   ptrFloat64(c.GetHist2DDistanceRangeMax()),
		ZHistogramBins:                           ptrInt(c.GetZHistogramBins()),
		ZHistogramMinRange:                       ptrFloat64(c.GetZHistogramMinRange()),
		ZHistogramMaxRange:                       ptrFloat64(c.GetZHistogramMaxRange()),
		ZHistogramWindowSize:                     ptrInt(c.GetZHistogramWindowSize()),
		ZHistogramPeakPer:                        ptrFloat64(c.GetZHistogramPeakPer()),
		ZHistogramMinSupport:                     ptrFloat64(c.GetZHistogramMinSupport()),
		ZHistogramMinSeparation:                  ptrFloat64(c.GetZHistogramMinSeparation()),
		ZHistogramGaussianKernelSize:             ptrInt(c.GetZHistogramGaussianKernelSize()),
		ZHistogramMaxNumberOfPeaksToSel:          ptrInt(c.GetZHistogramMaxNumberOfPeaksToSelect()),
		VisualizeHistogram1D:                     ptrBool(c.GetVisualizeHistogram1D()),
		VisualizeHistogram2D:                     ptrBool(c.GetVisualizeHistogram2D()),
		HistogramPlotDir:                         ptrString(c.GetHistogramPlotDir()),
		QueueSize:                                ptrInt(c.GetQueueSize()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set value is usable by the algorithms.
// Tolerances fed to the axis predicates must lie strictly inside (0, 1);
// histogram layouts need positive bin counts and ordered ranges.
func (c *TuningConfig) Validate() error {
	unitTolerances := []struct {
		name string
		v    *float64
	}{
		{"normal_tolerance_polygon_plane_association", c.NormalTolerancePolygonPlaneAssociation},
		{"normal_tolerance_plane_plane_association", c.NormalTolerancePlanePlaneAssociation},
		{"normal_tolerance_horizontal_surface", c.NormalToleranceHorizontalSurface},
		{"normal_tolerance_walls", c.NormalToleranceWalls},
	}
	for _, tol := range unitTolerances {
		if tol.v != nil && (*tol.v <= 0 || *tol.v >= 1) {
			return fmt.Errorf("%s must be in (0, 1), got %f", tol.name, *tol.v)
		}
	}

	distances := []struct {
		name string
		v    *float64
	}{
		{"distance_tolerance_polygon_plane_association", c.DistanceTolerancePolygonPlaneAssociation},
		{"distance_tolerance_plane_plane_association", c.DistanceTolerancePlanePlaneAssociation},
	}
	for _, d := range distances {
		if d.v != nil && *d.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", d.name, *d.v)
		}
	}

	positiveInts := []struct {
		name string
		v    *int
	}{
		{"hist_2d_theta_bins", c.Hist2DThetaBins},
		{"hist_2d_distance_bins", c.Hist2DDistanceBins},
		{"z_histogram_bins", c.ZHistogramBins},
		{"queue_size", c.QueueSize},
	}
	for _, p := range positiveInts {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}

	kernels := []struct {
		name string
		v    *int
	}{
		{"hist_2d_gaussian_kernel_size", c.Hist2DGaussianKernelSize},
		{"z_histogram_gaussian_kernel_size", c.ZHistogramGaussianKernelSize},
	}
	for _, k := range kernels {
		if k.v != nil && (*k.v <= 0 || *k.v%2 == 0) {
			return fmt.Errorf("%s must be a positive odd number, got %d", k.name, *k.v)
		}
	}

	if c.ZHistogramWindowSize != nil && *c.ZHistogramWindowSize < 0 {
		return fmt.Errorf("z_histogram_window_size must be non-negative, got %d", *c.ZHistogramWindowSize)
	}
	if c.ZHistogramPeakPer != nil && (*c.ZHistogramPeakPer < 0 || *c.ZHistogramPeakPer > 1) {
		return fmt.Errorf("z_histogram_peak_per must be between 0 and 1, got %f", *c.ZHistogramPeakPer)
	}
	if c.ZHistogramMaxNumberOfPeaksToSel != nil && *c.ZHistogramMaxNumberOfPeaksToSel < 0 {
		return fmt.Errorf("z_histogram_max_number_of_peaks_to_select must be non-negative, got %d",
			*c.ZHistogramMaxNumberOfPeaksToSel)
	}

	if c.GetZHistogramMinRange() >= c.GetZHistogramMaxRange() {
		return fmt.Errorf("z histogram range is empty: [%f, %f)", c.GetZHistogramMinRange(), c.GetZHistogramMaxRange())
	}
	if c.GetHist2DThetaRangeMin() >= c.GetHist2DThetaRangeMax() {
		return fmt.Errorf("2d histogram theta range is empty: [%f, %f)", c.GetHist2DThetaRangeMin(), c.GetHist2DThetaRangeMax())
	}
	if c.GetHist2DDistanceRangeMin() >= c.GetHist2DDistanceRangeMax() {
		return fmt.Errorf("2d histogram distance range is empty: [%f, %f)",
			c.GetHist2DDistanceRangeMin(), c.GetHist2DDistanceRangeMax())
	}

	return nil
}

// GetAddExtraLmksFromStereo returns the add_extra_lmks_from_stereo value or the default.
func (c *TuningConfig) GetAddExtraLmksFromStereo() bool {
	if c.AddExtraLmksFromStereo == nil {
		return false
	}
	return *c.AddExtraLmksFromStereo
}

// GetReduceMeshToTimeHorizon returns the reduce_mesh_to_time_horizon value or the default.
func (c *TuningConfig) GetReduceMeshToTimeHorizon() bool {
	if c.ReduceMeshToTimeHorizon == nil {
		return true
	}
	return *c.ReduceMeshToTimeHorizon
}

// GetMinRatioBtwLargestSmallestSide returns the side ratio threshold or the default.
// Values <= 0 disable the test.
func (c *TuningConfig) GetMinRatioBtwLargestSmallestSide() float64 {
	if c.MinRatioBtwLargestSmallestSide == nil {
		return 0.5
	}
	return *c.MinRatioBtwLargestSmallestSide
}

// GetMinElongationRatio returns the elongation threshold or the default.
// Values <= 0 disable the test.
func (c *TuningConfig) GetMinElongationRatio() float64 {
	if c.MinElongationRatio == nil {
		return 0.5
	}
	return *c.MinElongationRatio
}

// GetMaxTriangleSide returns the max side threshold (meters) or the default.
// Values <= 0 disable the test.
func (c *TuningConfig) GetMaxTriangleSide() float64 {
	if c.MaxTriangleSide == nil {
		return 0.5
	}
	return *c.MaxTriangleSide
}

// GetNormalTolerancePolygonPlaneAssociation returns the value or the default
// (0.011 is roughly a 8.5 degree aperture).
func (c *TuningConfig) GetNormalTolerancePolygonPlaneAssociation() float64 {
	if c.NormalTolerancePolygonPlaneAssociation == nil {
		return 0.011
	}
	return *c.NormalTolerancePolygonPlaneAssociation
}

// GetDistanceTolerancePolygonPlaneAssociation returns the value or the default.
func (c *TuningConfig) GetDistanceTolerancePolygonPlaneAssociation() float64 {
	if c.DistanceTolerancePolygonPlaneAssociation == nil {
		return 0.10
	}
	return *c.DistanceTolerancePolygonPlaneAssociation
}

// GetNormalTolerancePlanePlaneAssociation returns the value or the default.
func (c *TuningConfig) GetNormalTolerancePlanePlaneAssociation() float64 {
	if c.NormalTolerancePlanePlaneAssociation == nil {
		return 0.011
	}
	return *c.NormalTolerancePlanePlaneAssociation
}

// GetDistanceTolerancePlanePlaneAssociation returns the value or the default.
func (c *TuningConfig) GetDistanceTolerancePlanePlaneAssociation() float64 {
	if c.DistanceTolerancePlanePlaneAssociation == nil {
		return 0.20
	}
	return *c.DistanceTolerancePlanePlaneAssociation
}

// GetDoDoubleAssociation returns the do_double_association value or the default.
func (c *TuningConfig) GetDoDoubleAssociation() bool {
	if c.DoDoubleAssociation == nil {
		return true
	}
	return *c.DoDoubleAssociation
}

// GetClusterPlanes returns the cluster_planes value or the default.
func (c *TuningConfig) GetClusterPlanes() bool {
	if c.ClusterPlanes == nil {
		return true
	}
	return *c.ClusterPlanes
}

// GetNormalToleranceHorizontalSurface returns the value or the default.
func (c *TuningConfig) GetNormalToleranceHorizontalSurface() float64 {
	if c.NormalToleranceHorizontalSurface == nil {
		return 0.011
	}
	return *c.NormalToleranceHorizontalSurface
}

// GetNormalToleranceWalls returns the value or the default.
func (c *TuningConfig) GetNormalToleranceWalls() float64 {
	if c.NormalToleranceWalls == nil {
		return 0.0165
	}
	return *c.NormalToleranceWalls
}

// GetOnlyUseNonClusteredPoints returns the value or the default.
func (c *TuningConfig) GetOnlyUseNonClusteredPoints() bool {
	if c.OnlyUseNonClusteredPoints == nil {
		return true
	}
	return *c.OnlyUseNonClusteredPoints
}

// GetHist2DGaussianKernelSize returns the value or the default.
func (c *TuningConfig) GetHist2DGaussianKernelSize() int {
	if c.Hist2DGaussianKernelSize == nil {
		return 3
	}
	return *c.Hist2DGaussianKernelSize
}

// GetHist2DNrOfLocalMax returns the value or the default.
func (c *TuningConfig) GetHist2DNrOfLocalMax() int {
	if c.Hist2DNrOfLocalMax == nil {
		return 2
	}
	return *c.Hist2DNrOfLocalMax
}

// GetHist2DMinSupport returns the value or the default.
func (c *TuningConfig) GetHist2DMinSupport() int {
	if c.Hist2DMinSupport == nil {
		return 20
	}
	return *c.Hist2DMinSupport
}

// GetHist2DMinDistBtwLocalMax returns the value or the default.
func (c *TuningConfig) GetHist2DMinDistBtwLocalMax() int {
	if c.Hist2DMinDistBtwLocalMax == nil {
		return 5
	}
	return *c.Hist2DMinDistBtwLocalMax
}

// GetHist2DThetaBins returns the value or the default.
func (c *TuningConfig) GetHist2DThetaBins() int {
	if c.Hist2DThetaBins == nil {
		return 40
	}
	return *c.Hist2DThetaBins
}

// GetHist2DDistanceBins returns the value or the default.
func (c *TuningConfig) GetHist2DDistanceBins() int {
	if c.Hist2DDistanceBins == nil {
		return 40
	}
	return *c.Hist2DDistanceBins
}

// GetHist2DThetaRangeMin returns the value or the default.
func (c *TuningConfig) GetHist2DThetaRangeMin() float64 {
	if c.Hist2DThetaRangeMin == nil {
		return 0
	}
	return *c.Hist2DThetaRangeMin
}

// GetHist2DThetaRangeMax returns the value or the default.
func (c *TuningConfig) GetHist2DThetaRangeMax() float64 {
	if c.Hist2DThetaRangeMax == nil {
		return math.Pi
	}
	return *c.Hist2DThetaRangeMax
}

// GetHist2DDistanceRangeMin returns the value or the default.
func (c *TuningConfig) GetHist2DDistanceRangeMin() float64 {
	if c.Hist2DDistanceRangeMin == nil {
		return -6.0
	}
	return *c.Hist2DDistanceRangeMin
}

// GetHist2DDistanceRangeMax returns the value or the default.
func (c *TuningConfig) GetHist2DDistanceRangeMax() float64 {
	if c.Hist2DDistanceRangeMax == nil {
		return 6.0
	}
	return *c.Hist2DDistanceRangeMax
}

// GetZHistogramBins returns the value or the default.
func (c *TuningConfig) GetZHistogramBins() int {
	if c.ZHistogramBins == nil {
		return 512
	}
	return *c.ZHistogramBins
}

// GetZHistogramMinRange returns the value or the default.
func (c *TuningConfig) GetZHistogramMinRange() float64 {
	if c.ZHistogramMinRange == nil {
		return -0.75
	}
	return *c.ZHistogramMinRange
}

// GetZHistogramMaxRange returns the value or the default.
func (c *TuningConfig) GetZHistogramMaxRange() float64 {
	if c.ZHistogramMaxRange == nil {
		return 3.0
	}
	return *c.ZHistogramMaxRange
}

// GetZHistogramWindowSize returns the value or the default.
func (c *TuningConfig) GetZHistogramWindowSize() int {
	if c.ZHistogramWindowSize == nil {
		return 3
	}
	return *c.ZHistogramWindowSize
}

// GetZHistogramPeakPer returns the value or the default.
func (c *TuningConfig) GetZHistogramPeakPer() float64 {
	if c.ZHistogramPeakPer == nil {
		return 0.5
	}
	return *c.ZHistogramPeakPer
}

// GetZHistogramMinSupport returns the value or the default.
func (c *TuningConfig) GetZHistogramMinSupport() float64 {
	if c.ZHistogramMinSupport == nil {
		return 50
	}
	return *c.ZHistogramMinSupport
}

// GetZHistogramMinSeparation returns the value or the default.
// Values <= 0 disable the separation merge.
func (c *TuningConfig) GetZHistogramMinSeparation() float64 {
	if c.ZHistogramMinSeparation == nil {
		return 0.1
	}
	return *c.ZHistogramMinSeparation
}

// GetZHistogramGaussianKernelSize returns the value or the default.
func (c *TuningConfig) GetZHistogramGaussianKernelSize() int {
	if c.ZHistogramGaussianKernelSize == nil {
		return 5
	}
	return *c.ZHistogramGaussianKernelSize
}

// GetZHistogramMaxNumberOfPeaksToSelect returns the value or the default.
func (c *TuningConfig) GetZHistogramMaxNumberOfPeaksToSelect() int {
	if c.ZHistogramMaxNumberOfPeaksToSel == nil {
		return 3
	}
	return *c.ZHistogramMaxNumberOfPeaksToSel
}

// GetVisualizeHistogram1D returns the value or the default.
func (c *TuningConfig) GetVisualizeHistogram1D() bool {
	if c.VisualizeHistogram1D == nil {
		return false
	}
	return *c.VisualizeHistogram1D
}

// GetVisualizeHistogram2D returns the value or the default.
func (c *TuningConfig) GetVisualizeHistogram2D() bool {
	if c.VisualizeHistogram2D == nil {
		return false
	}
	return *c.VisualizeHistogram2D
}

// GetHistogramPlotDir returns the value or the default (empty: no plots).
func (c *TuningConfig) GetHistogramPlotDir() string {
	if c.HistogramPlotDir == nil {
		return ""
	}
	return *c.HistogramPlotDir
}

// GetQueueSize returns the pipeline input queue capacity or the default.
func (c *TuningConfig) GetQueueSize() int {
	if c.QueueSize == nil {
		return 8
	}
	return *c.QueueSize
}
