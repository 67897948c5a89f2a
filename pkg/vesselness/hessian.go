// Package vesselness scores every voxel of an intensity grid by how much
// the local second-order geometry resembles a bright tube on a dark
// background. It combines Gaussian-smoothed Hessian eigenvalues, a
// Frobenius-norm noise floor (global or block-adaptive), a multiscale
// maximum over a sigma sweep, and a divergence-based refinement pass.
package vesselness

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"tubetrace/pkg/deriv"
	"tubetrace/pkg/voxel"
)

// EigenTriple holds the eigenvalues of the per-voxel Hessian sorted by
// ascending absolute value: |L1| <= |L2| <= |L3|.
type EigenTriple struct {
	L1 float64
	L2 float64
	L3 float64
}

// sortAbs orders the triple by absolute value with a three-swap network.
func sortAbs(l1, l2, l3 float64) (float64, float64, float64) {
	if math.Abs(l1) > math.Abs(l2) {
		l1, l2 = l2, l1
	}
	if math.Abs(l2) > math.Abs(l3) {
		l2, l3 = l3, l2
	}
	if math.Abs(l1) > math.Abs(l2) {
		l1, l2 = l2, l1
	}
	return l1, l2, l3
}

// eigenField smooths the grid at scale sigma, assembles the Hessian from
// the six second partials and diagonalizes it per voxel. Diagonalization
// runs only where the trace is negative, the signature of locally concave
// bright structure; elsewhere the triple stays zero. The returned frob
// slice carries the Frobenius norm of every Hessian for the noise floors.
func eigenField(g *voxel.Grid, sigma float64) (eig []EigenTriple, frob []float64) {
	smoothed := deriv.GaussianSmooth(g, sigma)
	p := deriv.SecondPartials(smoothed)

	n := g.Dims.N()
	eig = make([]EigenTriple, n)
	frob = make([]float64, n)

	sym := mat.NewSymDense(3, nil)
	var es mat.EigenSym
	vals := make([]float64, 3)

	for id := 0; id < n; id++ {
		dxx, dyy, dzz := p.Dxx[id], p.Dyy[id], p.Dzz[id]
		dxy, dxz, dyz := p.Dxy[id], p.Dxz[id], p.Dyz[id]

		frob[id] = math.Sqrt(dxx*dxx + dyy*dyy + dzz*dzz +
			2*(dxy*dxy+dxz*dxz+dyz*dyz))

		if dxx+dyy+dzz >= 0 {
			continue
		}

		sym.SetSym(0, 0, dxx)
		sym.SetSym(0, 1, dxy)
		sym.SetSym(0, 2, dxz)
		sym.SetSym(1, 1, dyy)
		sym.SetSym(1, 2, dyz)
		sym.SetSym(2, 2, dzz)
		if !es.Factorize(sym, false) {
			continue
		}
		es.Values(vals)
		l1, l2, l3 := sortAbs(vals[0], vals[1], vals[2])
		eig[id] = EigenTriple{L1: l1, L2: l2, L3: l3}
	}
	return eig, frob
}
