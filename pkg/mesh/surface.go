// Package mesh extracts iso-surfaces from scalar volumes and writes them
// as binary STL.
package mesh

import (
	"math"

	"tubetrace/pkg/voxel"
)

// Triangle is one facet of an extracted surface.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// MarchingCubes extracts the iso-surface of a dense scalar volume. Each
// cell of eight neighboring samples is split into the six tetrahedra that
// share the main cell diagonal, so neighboring cells share face diagonals
// and the mesh stays watertight without a full cube case table. Crossing
// points are interpolated with a canonical endpoint order, which makes
// shared vertices bit-identical across cells.
type MarchingCubes struct {
	data                   []float64
	width, height, depth   int
	isoLevel               float64
	xScale, yScale, zScale float64
}

// NewMarchingCubes prepares an extraction over data laid out x-fastest
// with the given extents. Samples strictly above isoLevel count as
// interior.
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data:     data,
		width:    width,
		height:   height,
		depth:    depth,
		isoLevel: isoLevel,
		xScale:   1,
		yScale:   1,
		zScale:   1,
	}
}

// SetScale sets the physical size of one voxel step along each axis.
func (mc *MarchingCubes) SetScale(x, y, z float32) {
	mc.xScale, mc.yScale, mc.zScale = float64(x), float64(y), float64(z)
}

// cubeCorners orders the eight samples of a cell; cubeTets is the Kuhn
// split of the cell into six tetrahedra around the 0-6 diagonal.
var cubeCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

var cubeTets = [6][4]int{
	{0, 5, 1, 6}, {0, 1, 2, 6}, {0, 2, 3, 6},
	{0, 3, 7, 6}, {0, 7, 4, 6}, {0, 4, 5, 6},
}

type corner struct {
	pos [3]float64
	val float64
}

// GenerateTriangles walks every cell and polygonizes the tetrahedra that
// straddle the iso level.
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	var tris []Triangle
	var c [8]corner
	plane := mc.width * mc.height
	for z := 0; z < mc.depth-1; z++ {
		for y := 0; y < mc.height-1; y++ {
			for x := 0; x < mc.width-1; x++ {
				above, below := 0, 0
				for i, off := range cubeCorners {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					v := mc.data[cz*plane+cy*mc.width+cx]
					c[i] = corner{pos: [3]float64{float64(cx), float64(cy), float64(cz)}, val: v}
					if v > mc.isoLevel {
						above++
					} else {
						below++
					}
				}
				if above == 0 || below == 0 {
					continue
				}
				for _, tet := range cubeTets {
					tris = mc.polygonize([4]corner{c[tet[0]], c[tet[1]], c[tet[2]], c[tet[3]]}, tris)
				}
			}
		}
	}
	return tris
}

func (mc *MarchingCubes) polygonize(tet [4]corner, tris []Triangle) []Triangle {
	var in, out [4]corner
	ni, no := 0, 0
	for _, cr := range tet {
		if cr.val > mc.isoLevel {
			in[ni] = cr
			ni++
		} else {
			out[no] = cr
			no++
		}
	}
	if ni == 0 || no == 0 {
		return tris
	}
	dir := sub(centroid(out[:no]), centroid(in[:ni]))
	switch ni {
	case 1:
		tris = mc.emit(tris, mc.crossing(in[0], out[0]), mc.crossing(in[0], out[1]), mc.crossing(in[0], out[2]), dir)
	case 3:
		tris = mc.emit(tris, mc.crossing(in[0], out[0]), mc.crossing(in[1], out[0]), mc.crossing(in[2], out[0]), dir)
	case 2:
		q0 := mc.crossing(in[0], out[0])
		q1 := mc.crossing(in[0], out[1])
		q2 := mc.crossing(in[1], out[1])
		q3 := mc.crossing(in[1], out[0])
		tris = mc.emit(tris, q0, q1, q2, dir)
		tris = mc.emit(tris, q0, q2, q3, dir)
	}
	return tris
}

// crossing interpolates the iso-level crossing on the edge between two
// corners. The endpoints are ordered lexicographically first so both cells
// sharing the edge compute the same point.
func (mc *MarchingCubes) crossing(a, b corner) [3]float64 {
	if lexLess(b.pos, a.pos) {
		a, b = b, a
	}
	t := (mc.isoLevel - a.val) / (b.val - a.val)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return [3]float64{
		a.pos[0] + t*(b.pos[0]-a.pos[0]),
		a.pos[1] + t*(b.pos[1]-a.pos[1]),
		a.pos[2] + t*(b.pos[2]-a.pos[2]),
	}
}

// emit orients the facet so its normal points from the interior side
// toward outDir, applies the axis scales, and appends it. Zero-area facets
// are discarded.
func (mc *MarchingCubes) emit(tris []Triangle, q0, q1, q2, outDir [3]float64) []Triangle {
	if dot(cross(sub(q1, q0), sub(q2, q0)), outDir) < 0 {
		q1, q2 = q2, q1
	}
	s0 := mc.applyScale(q0)
	s1 := mc.applyScale(q1)
	s2 := mc.applyScale(q2)
	n := cross(sub(s1, s0), sub(s2, s0))
	mag := math.Sqrt(dot(n, n))
	if mag == 0 {
		return tris
	}
	return append(tris, Triangle{
		Normal:  [3]float32{float32(n[0] / mag), float32(n[1] / mag), float32(n[2] / mag)},
		Vertex1: toF32(s0),
		Vertex2: toF32(s1),
		Vertex3: toF32(s2),
	})
}

func (mc *MarchingCubes) applyScale(p [3]float64) [3]float64 {
	return [3]float64{p[0] * mc.xScale, p[1] * mc.yScale, p[2] * mc.zScale}
}

func lexLess(a, b [3]float64) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func centroid(cs []corner) [3]float64 {
	var m [3]float64
	for _, c := range cs {
		m[0] += c.pos[0]
		m[1] += c.pos[1]
		m[2] += c.pos[2]
	}
	n := float64(len(cs))
	return [3]float64{m[0] / n, m[1] / n, m[2] / n}
}

func toF32(p [3]float64) [3]float32 {
	return [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
}

// FromGrid extracts the iso-surface of a grid. Vertices stay in voxel
// coordinates; use Scale to map them to physical space.
func FromGrid(g *voxel.Grid, iso float64) []Triangle {
	mc := NewMarchingCubes(g.Data, g.Dims.X, g.Dims.Y, g.Dims.Z, iso)
	return mc.GenerateTriangles()
}

// Scale maps triangle vertices from voxel to physical coordinates,
// restoring the stack origin, and recomputes the facet normals.
func Scale(tris []Triangle, spacing voxel.Spacing, origin voxel.Origin) []Triangle {
	out := make([]Triangle, len(tris))
	for i, t := range tris {
		s0 := scaleVertex(t.Vertex1, spacing, origin)
		s1 := scaleVertex(t.Vertex2, spacing, origin)
		s2 := scaleVertex(t.Vertex3, spacing, origin)
		n := cross(sub(s1, s0), sub(s2, s0))
		mag := math.Sqrt(dot(n, n))
		if mag > 0 {
			out[i].Normal = [3]float32{float32(n[0] / mag), float32(n[1] / mag), float32(n[2] / mag)}
		} else {
			out[i].Normal = t.Normal
		}
		out[i].Vertex1 = toF32(s0)
		out[i].Vertex2 = toF32(s1)
		out[i].Vertex3 = toF32(s2)
	}
	return out
}

func scaleVertex(v [3]float32, spacing voxel.Spacing, origin voxel.Origin) [3]float64 {
	return [3]float64{
		spacing.XY * (float64(v[0]) + origin.X),
		spacing.XY * (float64(v[1]) + origin.Y),
		spacing.Z * (float64(v[2]) + origin.Z),
	}
}

// Vertices returns the distinct vertex positions of the soup.
func Vertices(tris []Triangle) [][3]float64 {
	seen := make(map[[3]float32]struct{}, 3*len(tris))
	var out [][3]float64
	for _, t := range tris {
		for _, v := range [3][3]float32{t.Vertex1, t.Vertex2, t.Vertex3} {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, [3]float64{float64(v[0]), float64(v[1]), float64(v[2])})
		}
	}
	return out
}

// Components counts the connected patches of the soup. Facets connect when
// they share a vertex position exactly.
func Components(tris []Triangle) int {
	index := make(map[[3]float32]int, 3*len(tris))
	var parent []int
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	id := func(v [3]float32) int {
		if i, ok := index[v]; ok {
			return i
		}
		i := len(parent)
		index[v] = i
		parent = append(parent, i)
		return i
	}
	for _, t := range tris {
		a := id(t.Vertex1)
		b := id(t.Vertex2)
		c := id(t.Vertex3)
		ra, rb, rc := find(a), find(b), find(c)
		if ra != rb {
			parent[ra] = rb
		}
		if rb != rc {
			parent[find(rb)] = rc
		}
	}
	roots := make(map[int]struct{})
	for i := range parent {
		roots[find(i)] = struct{}{}
	}
	return len(roots)
}
