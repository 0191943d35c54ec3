// Package histogram implements the vote accumulators used to propose new
// planes: a 1D histogram of heights for horizontal surfaces and a 2D
// histogram of (azimuth, distance) for walls. Both are rebuilt from scratch
// on every call, smoothed with a Gaussian kernel and searched for peaks.
package histogram

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianKernel returns a normalised 1D Gaussian kernel of the given odd
// size. Sigma follows the OpenCV rule for sigma = 0:
// 0.3*((size-1)*0.5 - 1) + 0.8. Sizes <= 1 yield the identity kernel.
func GaussianKernel(size int) []float64 {
	if size <= 1 {
		return []float64{1}
	}
	if size%2 == 0 {
		size++
	}
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	g := distuv.Normal{Mu: 0, Sigma: sigma}

	k := make([]float64, size)
	r := size / 2
	for i := range k {
		k[i] = g.Prob(float64(i - r))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// reflect101 mirrors an out-of-range index without repeating the edge
// sample: -1 -> 1, n -> n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func convolve(src, kernel []float64) []float64 {
	out := make([]float64, len(src))
	r := len(kernel) / 2
	for i := range src {
		var acc float64
		for j, w := range kernel {
			acc += w * src[reflect101(i+j-r, len(src))]
		}
		out[i] = acc
	}
	return out
}

// Smooth1D convolves values with a Gaussian kernel of kernelSize.
func Smooth1D(values []float64, kernelSize int) []float64 {
	if len(values) == 0 {
		return nil
	}
	return convolve(values, GaussianKernel(kernelSize))
}

// Smooth2D applies a separable Gaussian to grid, indexed [x][y].
func Smooth2D(grid [][]float64, kernelSize int) [][]float64 {
	k := GaussianKernel(kernelSize)
	nx := len(grid)
	if nx == 0 {
		return nil
	}
	ny := len(grid[0])

	rows := make([][]float64, nx)
	for x := range grid {
		rows[x] = convolve(grid[x], k)
	}

	out := make([][]float64, nx)
	for x := range out {
		out[x] = make([]float64, ny)
	}
	col := make([]float64, nx)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			col[x] = rows[x][y]
		}
		sm := convolve(col, k)
		for x := 0; x < nx; x++ {
			out[x][y] = sm[x]
		}
	}
	return out
}
