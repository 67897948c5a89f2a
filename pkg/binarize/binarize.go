// Package binarize turns the refined tubularity field into the 0/255 mask
// the surface and skeleton stages consume. Policies range from a single
// fixed threshold to per-depth statistical thresholds for stacks whose
// brightness decays along z.
package binarize

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tubetrace/pkg/voxel"
)

// Fixed applies one threshold to the whole volume: values at or below it
// become 0, everything else 255. A threshold of zero or below disables
// binarization and rescales the field to 0-255 by its global range instead.
func Fixed(g *voxel.Grid, threshold float64) *voxel.Grid {
	out := voxel.NewLike(g)
	if threshold > 0 {
		for i, v := range g.Data {
			if v > threshold {
				out.Data[i] = 255
			}
		}
		return out
	}
	min, max := g.MinMax()
	if max <= min {
		return out
	}
	for i, v := range g.Data {
		out.Data[i] = float64(int(255 * (v - min) / (max - min)))
	}
	return out
}

// PerPlane derives one threshold per z-plane from the plane's mean and
// standard deviation, t = mean + 2*base*std, pulled back inside the plane's
// intensity range when it escapes it.
func PerPlane(g *voxel.Grid, base float64) *voxel.Grid {
	out := voxel.NewLike(g)
	pn := g.Dims.X * g.Dims.Y
	for z := 0; z < g.Dims.Z; z++ {
		vals := g.Data[z*pn : (z+1)*pn]
		dst := out.Data[z*pn : (z+1)*pn]

		min, max := floats.Min(vals), floats.Max(vals)
		t := stat.Mean(vals, nil) + stat.PopStdDev(vals, nil)*base*2.0
		if t > max {
			t = max * 0.8
		}
		if t < min {
			t = min + 0.1*(max-min)
		}

		for i, v := range vals {
			if v > t {
				dst[i] = 255
			}
		}
	}
	return out
}

// Conservative derives one threshold per z-block. Blocks that are very dark
// relative to the whole stack get a sensitive statistical threshold; the
// rest map base onto the block's intensity range with noise-dependent
// adjustments.
func Conservative(g *voxel.Grid, base float64, blockSize int) *voxel.Grid {
	out := voxel.NewLike(g)
	gmin, gmax := g.MinMax()
	pn := g.Dims.X * g.Dims.Y
	for _, span := range voxel.ZBlocks(g.Dims.Z, blockSize) {
		vals := g.Data[span.Lo*pn : span.Hi*pn]
		dst := out.Data[span.Lo*pn : span.Hi*pn]

		min, max := floats.Min(vals), floats.Max(vals)
		mean := stat.Mean(vals, nil)
		std := stat.PopStdDev(vals, nil)
		t := blockThreshold(base, min, max, mean, std, gmax-gmin)

		for i, v := range vals {
			if v > t {
				dst[i] = 255
			}
		}
	}
	return out
}

// blockThreshold maps the user threshold onto one z-block's statistics.
func blockThreshold(base, min, max, mean, std, globalRange float64) float64 {
	rng := max - min
	// Uniform blocks get a unit range so the ratios below stay finite.
	if rng < 1e-6 {
		rng = 1.0
	}
	brightness := (mean - min) / rng
	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}
	veryDark := mean < 0.1*globalRange || brightness < 0.2

	var t float64
	if veryDark {
		t = mean + std*base*2.0
		if mean < 0.05*globalRange {
			t = mean + std*base*1.5
		}
		if floor := min + 0.01*rng; t < floor {
			t = floor
		}
	} else {
		t = min + rng*base
		switch {
		case cv > 0.5:
			t += 0.2 * std
		case cv < 0.3:
			t -= 0.1 * std
		}
		if brightness < 0.5 {
			t -= 0.1 * std
		}
	}

	lo, hi := min+0.01*rng, mean+3.0*std
	if !veryDark {
		lo, hi = min+rng*base*0.3, min+rng*base*3.0
	}
	if t < lo {
		t = lo
	}
	if t > hi {
		t = hi
	}
	return t
}
