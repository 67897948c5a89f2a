package deriv

import "tubetrace/pkg/voxel"

// Axis selects the direction of a partial derivative.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Derivative computes the first-order partial derivative of data along the
// given axis into a new buffer of the same size. Interior samples use the
// central difference (f(i+1)-f(i-1))/2; the two boundary planes use the
// one-sided differences f(1)-f(0) and f(n-1)-f(n-2). Applying Derivative to
// an already-differentiated buffer yields mixed partials.
func Derivative(data []float64, dims voxel.Dims, axis Axis) []float64 {
	out := make([]float64, len(data))

	extent := [3]int{dims.X, dims.Y, dims.Z}
	stride := [3]int{1, dims.X, dims.X * dims.Y}
	n := extent[axis]
	step := stride[axis]

	for z := 0; z < dims.Z; z++ {
		for y := 0; y < dims.Y; y++ {
			for x := 0; x < dims.X; x++ {
				pos := [3]int{x, y, z}[axis]
				id := dims.Index(x, y, z)
				switch {
				case pos == 0:
					out[id] = data[id+step] - data[id]
				case pos == n-1:
					out[id] = data[id] - data[id-step]
				default:
					out[id] = (data[id+step] - data[id-step]) / 2.0
				}
			}
		}
	}
	return out
}

// Partials holds the six independent second partial derivatives of a
// smoothed intensity grid, the entries of the symmetric Hessian.
type Partials struct {
	Dxx, Dyy, Dzz []float64
	Dxy, Dxz, Dyz []float64
}

// SecondPartials differentiates the grid twice along each axis pair. The
// mixed terms re-differentiate the first derivatives: Dxy = d/dx Dy,
// Dxz = d/dx Dz, Dyz = d/dy Dz.
func SecondPartials(g *voxel.Grid) Partials {
	dx := Derivative(g.Data, g.Dims, X)
	dy := Derivative(g.Data, g.Dims, Y)
	dz := Derivative(g.Data, g.Dims, Z)

	return Partials{
		Dxx: Derivative(dx, g.Dims, X),
		Dyy: Derivative(dy, g.Dims, Y),
		Dzz: Derivative(dz, g.Dims, Z),
		Dxy: Derivative(dy, g.Dims, X),
		Dxz: Derivative(dz, g.Dims, X),
		Dyz: Derivative(dz, g.Dims, Y),
	}
}
