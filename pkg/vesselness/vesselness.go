package vesselness

import (
	"math"

	"tubetrace/pkg/voxel"
)

// Fixed response constants of the tubularity score. cBack scales the
// background-energy discriminator.
const (
	alpha = 0.5
	beta  = 0.5
	cBack = 500.0
)

// Params selects the scale sweep and the noise-floor variant.
type Params struct {
	// ScaleMin and ScaleMax bound the Gaussian sigma sweep in voxel units.
	ScaleMin float64
	ScaleMax float64
	// ScaleCount is the number of evenly spaced scales; with a single
	// scale the step degenerates to ScaleMax.
	ScaleCount int
	// AdaptiveBlocks enables the block-adaptive noise floor with an
	// n x n XY partition when positive; zero keeps the global floor.
	AdaptiveBlocks int
}

// step returns the sigma increment of the sweep.
func (p Params) step() float64 {
	if p.ScaleCount > 1 {
		return (p.ScaleMax - p.ScaleMin) / float64(p.ScaleCount-1)
	}
	return p.ScaleMax
}

// response maps a noise-gated eigen triple to the tubularity score. Only
// voxels with two negative eigenvalues (a bright tube cross-section curves
// down along both transverse axes) respond.
func response(e EigenTriple) float64 {
	if e.L2 >= 0 || e.L3 >= 0 {
		return 0
	}
	ra := math.Abs(e.L2) / math.Abs(e.L3)
	rb := math.Abs(e.L1) / math.Sqrt(e.L2*e.L3)
	s := math.Sqrt(e.L1*e.L1 + e.L2*e.L2 + e.L3*e.L3)

	return (1 - math.Exp(-(ra*ra)/(2*alpha*alpha))) *
		math.Exp(-(rb*rb)/(2*beta*beta)) *
		(1 - math.Exp(-(s*s)/(2*cBack*cBack)))
}

// SingleScale computes the tubularity response of the grid at one sigma,
// with the noise floor selected by adaptiveBlocks (0 = global).
func SingleScale(g *voxel.Grid, sigma float64, adaptiveBlocks int) *voxel.Grid {
	eig, frob := eigenField(g, sigma)
	if adaptiveBlocks > 0 {
		applyBlockFloor(eig, frob, g.Dims, adaptiveBlocks)
	} else {
		applyGlobalFloor(eig, frob)
	}

	out := voxel.NewLike(g)
	for id, e := range eig {
		out.Data[id] = response(e)
	}
	return out
}

// Multiscale sweeps sigma from ScaleMin to ScaleMax and fuses the per-scale
// responses by pointwise maximum into a new grid.
func Multiscale(g *voxel.Grid, p Params) *voxel.Grid {
	fused := voxel.NewLike(g)
	dsigma := p.step()
	for sigma := p.ScaleMin; sigma <= p.ScaleMax+0.5*dsigma; sigma += dsigma {
		resp := SingleScale(g, sigma, p.AdaptiveBlocks)
		for id, v := range resp.Data {
			if v > fused.Data[id] {
				fused.Data[id] = v
			}
		}
	}
	return fused
}
