// Package deriv implements the discrete differential operators the
// tubularity estimator is built on: separable Gaussian smoothing and
// finite-difference partial derivatives over a voxel grid.
package deriv

import (
	"math"

	"tubetrace/pkg/voxel"
)

// gaussianKernel builds normalized discrete weights for standard deviation
// sigma with half-width radiusFactor*sigma. Weights sum to one.
func gaussianKernel(sigma float64, radiusFactor float64) []float64 {
	r := int(radiusFactor * sigma)
	if r < 1 {
		r = 1
	}
	kernel := make([]float64, 2*r+1)
	sum := 0.0
	for k := -r; k <= r; k++ {
		w := math.Exp(-float64(k*k) / (2 * sigma * sigma))
		kernel[k+r] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// smoothAxis convolves src along one axis (0=x, 1=y, 2=z) into a new buffer.
// Taps falling outside the grid are dropped and the remaining weights
// renormalized, so edge samples stay in the input range.
func smoothAxis(src []float64, dims voxel.Dims, axis int, kernel []float64) []float64 {
	dst := make([]float64, len(src))
	r := len(kernel) / 2

	extent := [3]int{dims.X, dims.Y, dims.Z}
	stride := [3]int{1, dims.X, dims.X * dims.Y}
	n := extent[axis]
	step := stride[axis]

	for z := 0; z < dims.Z; z++ {
		for y := 0; y < dims.Y; y++ {
			for x := 0; x < dims.X; x++ {
				pos := [3]int{x, y, z}[axis]
				id := dims.Index(x, y, z)
				acc, wsum := 0.0, 0.0
				for k := -r; k <= r; k++ {
					p := pos + k
					if p < 0 || p >= n {
						continue
					}
					w := kernel[k+r]
					acc += w * src[id+k*step]
					wsum += w
				}
				if wsum > 0 {
					dst[id] = acc / wsum
				}
			}
		}
	}
	return dst
}

// GaussianSmooth returns a new grid smoothed with an isotropic Gaussian of
// standard deviation sigma (in voxel units), kernel half-width 10*sigma.
func GaussianSmooth(g *voxel.Grid, sigma float64) *voxel.Grid {
	return GaussianSmoothAniso(g, sigma, sigma, sigma)
}

// GaussianSmoothAniso smooths with per-axis standard deviations. The
// connectivity enhancer uses z-compressed deviations to respect the
// anisotropic voxel shape of confocal stacks.
func GaussianSmoothAniso(g *voxel.Grid, sx, sy, sz float64) *voxel.Grid {
	const radiusFactor = 10.0

	out := g.Clone()
	sigmas := [3]float64{sx, sy, sz}
	for axis, sigma := range sigmas {
		if sigma <= 0 {
			continue
		}
		out.Data = smoothAxis(out.Data, g.Dims, axis, gaussianKernel(sigma, radiusFactor))
	}
	return out
}
