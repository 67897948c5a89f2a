// Package resample adjusts the axial sampling of a volume so downstream
// stages can treat the voxels as near-isotropic.
package resample

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"tubetrace/pkg/voxel"
)

// Axial resamples the z axis by the given magnification factor, running a
// piecewise-linear interpolant along every (x,y) column. A factor above one
// increases the slice count and shrinks the axial spacing accordingly.
// Factors <= 0 and single-slice volumes return the input unchanged.
func Axial(g *voxel.Grid, factor float64) *voxel.Grid {
	if factor <= 0 || g.Dims.Z < 2 {
		return g
	}

	newZ := int(math.Round(float64(g.Dims.Z-1)*factor)) + 1
	if newZ < 2 {
		newZ = 2
	}
	spacing := voxel.Spacing{XY: g.Spacing.XY, Z: g.Spacing.Z / factor}
	out := voxel.New(voxel.Dims{X: g.Dims.X, Y: g.Dims.Y, Z: newZ}, spacing)
	out.Origin = g.Origin

	zs := make([]float64, g.Dims.Z)
	for z := range zs {
		zs[z] = float64(z)
	}
	col := make([]float64, g.Dims.Z)
	last := zs[len(zs)-1]

	var pl interp.PiecewiseLinear
	for x := 0; x < g.Dims.X; x++ {
		for y := 0; y < g.Dims.Y; y++ {
			for z := 0; z < g.Dims.Z; z++ {
				col[z] = g.At(x, y, z)
			}
			// zs is strictly increasing with at least two knots, so
			// Fit cannot fail here.
			_ = pl.Fit(zs, col)
			for k := 0; k < newZ; k++ {
				zq := float64(k) / factor
				if zq > last {
					zq = last
				}
				out.Set(x, y, k, pl.Predict(zq))
			}
		}
	}
	return out
}
