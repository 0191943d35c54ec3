package mesher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/planemesh/internal/config"
)

func TestConfigFromTuning_Defaults(t *testing.T) {
	cfg, err := ConfigFromTuning(config.DefaultTuningConfig())
	require.NoError(t, err)

	v, ok := cfg.Triangles.MaxSide.Value()
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	assert.True(t, cfg.ReduceMeshToTimeHorizon)
	assert.False(t, cfg.AddExtraLandmarksFromStereo)
	assert.True(t, cfg.DoDoubleAssociation)
	assert.Equal(t, 0.20, cfg.PlaneDistanceTolerance)

	seg := cfg.Segmenter
	assert.Equal(t, 0.0165, seg.WallTolerance)
	assert.Equal(t, 512, seg.Height.Bins)
	assert.True(t, seg.Height.MinSeparation.IsEnabled())
	assert.Equal(t, 40, seg.Wall.Theta.Bins)
	assert.Equal(t, math.Pi, seg.Wall.Theta.Max)
	assert.Equal(t, 20.0, seg.Wall.MinSupport)
	assert.False(t, seg.RestrictToLandmarkWindow)
	assert.False(t, seg.PlotHeights)
}

func TestConfigFromTuning_Sentinels(t *testing.T) {
	tc := config.DefaultTuningConfig()
	off := -1.0
	on := true
	tc.MaxTriangleSide = &off
	tc.ZHistogramMinSeparation = &off
	tc.AddExtraLmksFromStereo = &on

	cfg, err := ConfigFromTuning(tc)
	require.NoError(t, err)
	assert.False(t, cfg.Triangles.MaxSide.IsEnabled())
	assert.False(t, cfg.Segmenter.Height.MinSeparation.IsEnabled())
	assert.True(t, cfg.Segmenter.RestrictToLandmarkWindow)
}

func TestConfigFromTuning_Invalid(t *testing.T) {
	tc := config.DefaultTuningConfig()
	bad := 4
	tc.ZHistogramGaussianKernelSize = &bad

	_, err := ConfigFromTuning(tc)
	assert.Error(t, err)
}
