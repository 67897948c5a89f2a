// Package normalize compresses raw acquisition intensities into the 8-bit
// range the segmentation stages operate on. Stacks arrive as 8-bit or 16-bit
// unsigned samples; 8-bit data passes through untouched while 16-bit data is
// rescaled by one of four policies that trade global comparability against
// per-depth contrast.
package normalize

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tubetrace/pkg/voxel"
)

// ErrUnsupportedDepth reports a sample width other than 8 or 16 bits.
var ErrUnsupportedDepth = errors.New("unsupported bit depth")

// Policy selects how 16-bit intensities are compressed to 8 bits.
type Policy int

const (
	// GlobalLinear rescales by the min-max range of the whole volume.
	GlobalLinear Policy = iota

	// PerPlane rescales each z-plane by its own min-max range.
	PerPlane

	// PerBlock rescales blocks of consecutive z-planes by their own range,
	// borrowing the global range for low-contrast blocks.
	PerBlock

	// Gentle applies GlobalLinear first and then stretches the contrast of
	// each z-block around its mean, harder the darker the block.
	Gentle
)

// midGray substitutes for regions whose intensity range collapses to zero.
const midGray = 128.0

// Apply produces the 0-255 grid the segmentation stages consume. bitDepth is
// the sample width reported by the loader: 8-bit volumes are returned as an
// unmodified copy, 16-bit volumes are compressed by the selected policy, and
// any other depth is rejected. blockSize is the z-block extent used by the
// PerBlock and Gentle policies.
func Apply(g *voxel.Grid, bitDepth int, p Policy, blockSize int) (*voxel.Grid, error) {
	switch bitDepth {
	case 8:
		return g.Clone(), nil
	case 16:
	default:
		return nil, fmt.Errorf("normalize: %w (%d)", ErrUnsupportedDepth, bitDepth)
	}
	switch p {
	case GlobalLinear:
		return globalLinear(g), nil
	case PerPlane:
		return perPlane(g), nil
	case PerBlock:
		return perBlock(g, blockSize), nil
	case Gentle:
		return gentle(g, blockSize), nil
	default:
		return nil, fmt.Errorf("normalize: unknown policy %d", p)
	}
}

// quantize truncates a value already confined to [0,255] to its 8-bit level.
func quantize(v float64) float64 {
	return float64(uint8(v))
}

func globalLinear(g *voxel.Grid) *voxel.Grid {
	out := voxel.NewLike(g)
	min, max := g.MinMax()
	if max <= min {
		for i := range out.Data {
			out.Data[i] = midGray
		}
		return out
	}
	for i, v := range g.Data {
		out.Data[i] = quantize(255.0 * (v - min) / (max - min))
	}
	return out
}

func perPlane(g *voxel.Grid) *voxel.Grid {
	out := voxel.NewLike(g)
	pn := g.Dims.X * g.Dims.Y
	for z := 0; z < g.Dims.Z; z++ {
		src := g.Data[z*pn : (z+1)*pn]
		dst := out.Data[z*pn : (z+1)*pn]
		min, max := floats.Min(src), floats.Max(src)
		if max > min {
			for i, v := range src {
				dst[i] = quantize(255.0 * (v - min) / (max - min))
			}
		} else {
			for i := range dst {
				dst[i] = midGray
			}
		}
	}
	return out
}

func perBlock(g *voxel.Grid, blockSize int) *voxel.Grid {
	out := voxel.NewLike(g)
	gmin, gmax := g.MinMax()
	pn := g.Dims.X * g.Dims.Y
	for _, span := range voxel.ZBlocks(g.Dims.Z, blockSize) {
		src := g.Data[span.Lo*pn : span.Hi*pn]
		dst := out.Data[span.Lo*pn : span.Hi*pn]
		min, max := floats.Min(src), floats.Max(src)
		// Low-contrast blocks borrow the global range so their levels stay
		// comparable to the rest of the stack.
		if max-min < 0.1*(gmax-gmin) {
			min, max = gmin, gmax
		}
		switch {
		case max > min:
			for i, v := range src {
				dst[i] = quantize(255.0 * (v - min) / (max - min))
			}
		case gmax > gmin:
			for i, v := range src {
				dst[i] = quantize(255.0 * (v - gmin) / (gmax - gmin))
			}
		default:
			for i := range dst {
				dst[i] = midGray
			}
		}
	}
	return out
}

func gentle(g *voxel.Grid, blockSize int) *voxel.Grid {
	out := voxel.NewLike(g)
	gmin, gmax := g.MinMax()
	if gmax <= gmin {
		for i := range out.Data {
			out.Data[i] = midGray
		}
		return out
	}
	scale := 255.0 / (gmax - gmin)
	for i, v := range g.Data {
		out.Data[i] = quantize(scale * (v - gmin))
	}

	// Second pass on the quantized values: stretch each z-block around its
	// mean. Uniform blocks keep their global-linear levels.
	pn := g.Dims.X * g.Dims.Y
	for _, span := range voxel.ZBlocks(g.Dims.Z, blockSize) {
		vals := out.Data[span.Lo*pn : span.Hi*pn]
		if floats.Max(vals) <= floats.Min(vals) {
			continue
		}
		mean := stat.Mean(vals, nil)
		factor := stretchFactor(mean)
		for i, v := range vals {
			enhanced := mean + factor*(v-mean)
			if enhanced < 0 {
				enhanced = 0
			}
			if enhanced > 255 {
				enhanced = 255
			}
			vals[i] = quantize(enhanced)
		}
	}
	return out
}

// stretchFactor grades the contrast stretch by block mean; darker blocks
// stretch harder.
func stretchFactor(mean float64) float64 {
	switch {
	case mean < 20:
		return 3.0
	case mean < 50:
		return 2.5
	case mean < 100:
		return 1.5
	case mean < 150:
		return 1.2
	default:
		return 1.1
	}
}
