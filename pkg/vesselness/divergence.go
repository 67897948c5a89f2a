package vesselness

import (
	"math"

	"tubetrace/pkg/voxel"
)

// faceOffsets orders the six sampling faces +x, -x, +y, -y, +z, -z. The
// divergence estimate pairs them in that order.
var faceOffsets = [6]voxel.Offset{
	{X: 1, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0},
	{X: 0, Y: 1, Z: 0}, {X: 0, Y: -1, Z: 0},
	{X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: -1},
}

// Divergence refines a tubularity field: at every nonzero voxel it samples
// the normalized gradient at six face points offset by s=2 and keeps only
// the negative part of the resulting divergence estimate, scaled by 1/6.
// Positive divergence marks blob- or plane-like responses and is zeroed.
// Voxels outside the sampled interior become zero in the returned grid.
func Divergence(g *voxel.Grid) *voxel.Grid {
	const s = 2

	dims := g.Dims
	out := voxel.NewLike(g)

	var v [6][3]float64
	for z := s + 1; z < dims.Z-s-1; z++ {
		for y := s + 1; y < dims.Y-s-1; y++ {
			for x := s + 1; x < dims.X-s-1; x++ {
				if g.At(x, y, z) == 0 {
					continue
				}
				for i, f := range faceOffsets {
					fx, fy, fz := x+s*f.X, y+s*f.Y, z+s*f.Z
					v[i][0] = g.At(fx+1, fy, fz) - g.At(fx-1, fy, fz)
					v[i][1] = g.At(fx, fy+1, fz) - g.At(fx, fy-1, fz)
					v[i][2] = g.At(fx, fy, fz+1) - g.At(fx, fy, fz-1)
					norm := math.Sqrt(v[i][0]*v[i][0] + v[i][1]*v[i][1] + v[i][2]*v[i][2])
					if norm != 0 {
						v[i][0] /= norm
						v[i][1] /= norm
						v[i][2] /= norm
					}
				}
				div := (v[0][0] - v[1][0]) + (v[2][1] - v[3][1]) + (v[4][2] - v[5][2])
				if div < 0 {
					out.Set(x, y, z, -div/6.0)
				}
			}
		}
	}
	return out
}

// ClearBoundaries zeroes the six boundary faces of the grid in a new copy,
// so no response touches the stack border.
func ClearBoundaries(g *voxel.Grid) *voxel.Grid {
	out := g.Clone()
	dims := g.Dims
	for z := 0; z < dims.Z; z++ {
		for y := 0; y < dims.Y; y++ {
			for x := 0; x < dims.X; x++ {
				if x == 0 || y == 0 || z == 0 || x == dims.X-1 || y == dims.Y-1 || z == dims.Z-1 {
					out.Set(x, y, z, 0)
				}
			}
		}
	}
	return out
}
