// Package voxel provides the dense 3D scalar grid shared by every pipeline
// stage, together with the single place where 3D-to-linear index arithmetic
// and neighbor-offset tables live.
package voxel

import "math"

// Dims holds the extent of a grid along each axis.
type Dims struct {
	X int
	Y int
	Z int
}

// N returns the total number of voxels.
func (d Dims) N() int {
	return d.X * d.Y * d.Z
}

// Index maps voxel coordinates to the linear id x + y*Dx + z*Dx*Dy.
func (d Dims) Index(x, y, z int) int {
	return x + y*d.X + z*d.X*d.Y
}

// Coords is the inverse of Index.
func (d Dims) Coords(id int) (x, y, z int) {
	plane := d.X * d.Y
	z = id / plane
	y = (id % plane) / d.X
	x = id % d.X
	return
}

// Inside reports whether the coordinates fall within the grid.
func (d Dims) Inside(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < d.X && y < d.Y && z < d.Z
}

// Interior reports whether the coordinates are at least one voxel away from
// every face of the grid.
func (d Dims) Interior(x, y, z int) bool {
	return x > 0 && y > 0 && z > 0 && x < d.X-1 && y < d.Y-1 && z < d.Z-1
}

// Reflected maps out-of-range coordinates to the linear id of the point
// mirrored through the grid's half-extent planes.
func (d Dims) Reflected(x, y, z int) int {
	rx := int(math.Ceil(0.5 * float64(d.X)))
	ry := int(math.Ceil(0.5 * float64(d.Y)))
	rz := int(math.Ceil(0.5 * float64(d.Z)))
	sx := d.X - rx
	if float64(x)-(float64(rx)-0.5) < 0 {
		sx = -rx
	}
	sy := d.Y - ry
	if float64(y)-(float64(ry)-0.5) < 0 {
		sy = -ry
	}
	sz := d.Z - rz
	if float64(z)-(float64(rz)-0.5) < 0 {
		sz = -rz
	}
	return d.Index(x-sx, y-sy, z-sz)
}

// Spacing is the physical size of a voxel in micrometers. XY applies to both
// lateral axes; confocal stacks are typically anisotropic along Z.
type Spacing struct {
	XY float64
	Z  float64
}

// Origin is the physical offset of the grid recorded before the stack is
// shifted to (0,0,0).
type Origin struct {
	X float64
	Y float64
	Z float64
}

// Grid is a dense 3D scalar field. Each pipeline stage that transforms a
// grid allocates and returns its own; borrowed inputs are never written.
type Grid struct {
	Dims    Dims
	Spacing Spacing
	Origin  Origin
	Data    []float64
}

// New allocates a zero-filled grid with the given geometry.
func New(dims Dims, spacing Spacing) *Grid {
	return &Grid{
		Dims:    dims,
		Spacing: spacing,
		Data:    make([]float64, dims.N()),
	}
}

// NewLike allocates a zero-filled grid with the same geometry as g.
func NewLike(g *Grid) *Grid {
	out := New(g.Dims, g.Spacing)
	out.Origin = g.Origin
	return out
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := NewLike(g)
	copy(out.Data, g.Data)
	return out
}

// At returns the sample at the given coordinates.
func (g *Grid) At(x, y, z int) float64 {
	return g.Data[g.Dims.Index(x, y, z)]
}

// Set stores a sample at the given coordinates.
func (g *Grid) Set(x, y, z int, v float64) {
	g.Data[g.Dims.Index(x, y, z)] = v
}

// MinMax returns the smallest and largest sample in the grid.
func (g *Grid) MinMax() (min, max float64) {
	min, max = g.Data[0], g.Data[0]
	for _, v := range g.Data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}

// Physical maps continuous voxel coordinates to physical micrometers,
// restoring the original stack origin: (dxy*(x+Ox), dxy*(y+Oy), dz*(z+Oz)).
func (g *Grid) Physical(x, y, z float64) (px, py, pz float64) {
	px = g.Spacing.XY * (x + g.Origin.X)
	py = g.Spacing.XY * (y + g.Origin.Y)
	pz = g.Spacing.Z * (z + g.Origin.Z)
	return
}
