// Package skeleton reduces a binary volume to its centerline curve network
// and provides the graph model shared by the attribute and export stages.
package skeleton

import (
	"math"

	"tubetrace/pkg/voxel"
)

// NodeLayer is the per-point layer naming skeleton vertices: vertex points
// carry a dense id starting at 0, polyline interior points carry -1.
const NodeLayer = "Nodes"

// Point is a 3D position, in voxel coordinates until the pipeline scales
// outputs to physical micrometers.
type Point struct {
	X, Y, Z float64
}

// Dist returns the Euclidean distance to another point.
func (p Point) Dist(q Point) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Graph is an embedded curve network: a shared point pool, polyline edges
// as index paths into it, and named per-point scalar layers. An edge whose
// first and last index coincide is a closed loop.
type Graph struct {
	Points []Point
	Edges  [][]int
	Layers map[string][]float64
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Layers: make(map[string][]float64)}
}

// AddPoint appends a point and returns its index. Every existing layer
// gains a zero entry; slices previously returned by Layer are invalidated.
func (g *Graph) AddPoint(p Point) int {
	g.Points = append(g.Points, p)
	for name, vals := range g.Layers {
		g.Layers[name] = append(vals, 0)
	}
	return len(g.Points) - 1
}

// Layer returns the named per-point scalar layer, creating it zero-filled
// when absent.
func (g *Graph) Layer(name string) []float64 {
	if vals, ok := g.Layers[name]; ok {
		return vals
	}
	vals := make([]float64, len(g.Points))
	g.Layers[name] = vals
	return vals
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Points: append([]Point(nil), g.Points...),
		Edges:  make([][]int, len(g.Edges)),
		Layers: make(map[string][]float64, len(g.Layers)),
	}
	for i, e := range g.Edges {
		out.Edges[i] = append([]int(nil), e...)
	}
	for name, vals := range g.Layers {
		out.Layers[name] = append([]float64(nil), vals...)
	}
	return out
}

// EndDegree returns the number of edges that start or end at point i.
func (g *Graph) EndDegree(i int) int {
	n := 0
	for _, e := range g.Edges {
		if len(e) == 0 {
			continue
		}
		if e[0] == i || e[len(e)-1] == i {
			n++
		}
	}
	return n
}

// Endpoints returns the indices of points where exactly one edge ends.
func (g *Graph) Endpoints() []int {
	counts := make([]int, len(g.Points))
	for _, e := range g.Edges {
		if len(e) == 0 {
			continue
		}
		counts[e[0]]++
		if last := e[len(e)-1]; last != e[0] {
			counts[last]++
		}
	}
	var eps []int
	for i, c := range counts {
		if c == 1 {
			eps = append(eps, i)
		}
	}
	return eps
}

// Components returns the number of connected components among the points
// used by at least one edge.
func (g *Graph) Components() int {
	parent := make([]int, len(g.Points))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	used := make([]bool, len(g.Points))
	for _, e := range g.Edges {
		for k, idx := range e {
			used[idx] = true
			if k > 0 {
				ra, rb := find(e[k-1]), find(idx)
				if ra != rb {
					parent[ra] = rb
				}
			}
		}
	}

	roots := make(map[int]struct{})
	for i, u := range used {
		if u {
			roots[find(i)] = struct{}{}
		}
	}
	return len(roots)
}

// Clean returns a copy with exactly coincident points merged, consecutive
// duplicate indices inside an edge collapsed, and edges left with fewer
// than two points dropped. Layer values follow the first occurrence of each
// surviving point.
func (g *Graph) Clean() *Graph {
	out := NewGraph()
	canon := make(map[Point]int, len(g.Points))
	remap := make([]int, len(g.Points))
	for i, p := range g.Points {
		if idx, ok := canon[p]; ok {
			remap[i] = idx
			continue
		}
		idx := out.AddPoint(p)
		canon[p] = idx
		remap[i] = idx
	}
	for name, vals := range g.Layers {
		layer := out.Layer(name)
		for i := len(g.Points) - 1; i >= 0; i-- {
			layer[remap[i]] = vals[i]
		}
	}
	for _, e := range g.Edges {
		var path []int
		for _, idx := range e {
			m := remap[idx]
			if len(path) > 0 && path[len(path)-1] == m {
				continue
			}
			path = append(path, m)
		}
		if len(path) < 2 {
			continue
		}
		out.Edges = append(out.Edges, path)
	}
	return out
}

// Scale maps the points from voxel to physical coordinates, restoring the
// stack origin recorded on the source grid.
func (g *Graph) Scale(spacing voxel.Spacing, origin voxel.Origin) {
	for i, p := range g.Points {
		g.Points[i] = Point{
			X: spacing.XY * (p.X + origin.X),
			Y: spacing.XY * (p.Y + origin.Y),
			Z: spacing.Z * (p.Z + origin.Z),
		}
	}
}
