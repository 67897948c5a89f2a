// Package components labels connected regions of a scalar grid and supports
// the two consumers of that partition: the size filter that drops speckle
// components from the segmentation, and the cavity filler that closes holes
// in the binary mask.
package components

import (
	"tubetrace/pkg/voxel"
)

// Labeling is the result of partitioning a grid into connected components.
// Foreground voxels carry a negative component id, background voxels 0.
type Labeling struct {
	// Labels holds one signed id per voxel: -1 for the first component
	// found, -2 for the second, and so on.
	Labels []int64

	// Sizes holds the voxel count of each component; Sizes[k] belongs to
	// the component labeled -(k+1).
	Sizes []int64
}

// Count returns the number of components found.
func (l *Labeling) Count() int {
	return len(l.Sizes)
}

// SizeOf returns the voxel count of the component with the given label, or
// 0 for the background label.
func (l *Labeling) SizeOf(label int64) int64 {
	if label >= 0 {
		return 0
	}
	return l.Sizes[-label-1]
}

// Label partitions the voxels with value above threshold into connected
// components under the given neighborhood. Components are discovered by
// scanning linear ids from the top of the volume downward, so the component
// holding the highest-id voxel above threshold is always labeled -1.
func Label(g *voxel.Grid, nb voxel.Neighborhood, threshold float64) *Labeling {
	dims := g.Dims
	offsets := nb.Offsets()
	labels := make([]int64, dims.N())
	var sizes []int64

	var frontier, next []int
	for seed := dims.N() - 1; seed >= 0; seed-- {
		if labels[seed] != 0 || g.Data[seed] <= threshold {
			continue
		}
		label := int64(-(len(sizes) + 1))
		size := int64(1)
		labels[seed] = label
		frontier = append(frontier[:0], seed)
		for len(frontier) > 0 {
			next = next[:0]
			for _, id := range frontier {
				x, y, z := dims.Coords(id)
				for _, off := range offsets {
					nx, ny, nz := x+off.X, y+off.Y, z+off.Z
					if !dims.Inside(nx, ny, nz) {
						continue
					}
					nid := dims.Index(nx, ny, nz)
					if labels[nid] != 0 || g.Data[nid] <= threshold {
						continue
					}
					labels[nid] = label
					size++
					next = append(next, nid)
				}
			}
			frontier, next = next, frontier
		}
		sizes = append(sizes, size)
	}

	return &Labeling{Labels: labels, Sizes: sizes}
}

// Filter returns a copy of g with every voxel zeroed whose component holds
// at most minSize voxels. The labeling must have been computed over g.
func Filter(g *voxel.Grid, l *Labeling, minSize int64) *voxel.Grid {
	out := g.Clone()
	for i, label := range l.Labels {
		if label < 0 && l.SizeOf(label) <= minSize {
			out.Data[i] = 0
		}
	}
	return out
}

// FillHoles returns a copy of the binary volume with every enclosed
// background cavity raised to 255. Background components are found over the
// interior with 6-connectivity; the first one, which holds the highest-id
// interior background voxel, is the outside and stays dark, and every other
// one is a cavity.
func FillHoles(g *voxel.Grid) *voxel.Grid {
	dims := g.Dims
	mask := voxel.NewLike(g)
	for z := 1; z < dims.Z-1; z++ {
		for y := 1; y < dims.Y-1; y++ {
			for x := 1; x < dims.X-1; x++ {
				if g.At(x, y, z) == 0 {
					mask.Set(x, y, z, 1)
				}
			}
		}
	}

	background := Label(mask, voxel.Conn6, 0)

	out := g.Clone()
	for i, label := range background.Labels {
		if label < -1 {
			out.Data[i] = 255
		}
	}
	return out
}
