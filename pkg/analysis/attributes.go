// Package analysis derives width, length, intensity, and topology
// attributes over a skeleton graph and writes the result tables.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"tubetrace/pkg/skeleton"
	"tubetrace/pkg/voxel"
)

// Names of the per-point layers filled by the estimators.
const (
	WidthLayer     = "Width"
	LengthLayer    = "Length"
	IntensityLayer = "Intensity"
)

// Attribute is one named scalar of the network report.
type Attribute struct {
	Name  string
	Value float64
}

// widthNeighbors is the number of surface vertices averaged per skeleton
// point; intensity sampling uses the six face neighbors.
const widthNeighbors = 3

const frustumPi = 3.141592

// surfacePoint adapts a surface vertex for kd-tree queries.
type surfacePoint [3]float64

// Compare implements the kdtree.Comparable interface
func (p surfacePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(surfacePoint)
	return p[d] - q[d]
}

// Dims returns the number of dimensions for the KD-tree
func (p surfacePoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p surfacePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(surfacePoint)
	dx := p[0] - q[0]
	dy := p[1] - q[1]
	dz := p[2] - q[2]
	return dx*dx + dy*dy + dz*dz
}

// surfacePoints is a collection of surfacePoint satisfying kdtree.Interface
type surfacePoints []surfacePoint

func (p surfacePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p surfacePoints) Len() int                              { return len(p) }
func (p surfacePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p surfacePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(surfacePlane{surfacePoints: p, Dim: d}, kdtree.MedianOfRandoms(surfacePlane{surfacePoints: p, Dim: d}, 100))
}

// surfacePlane implements sort.Interface and kdtree.SortSlicer for surfacePoints
type surfacePlane struct {
	surfacePoints
	kdtree.Dim
}

func (p surfacePlane) Less(i, j int) bool {
	return p.surfacePoints[i][p.Dim] < p.surfacePoints[j][p.Dim]
}

func (p surfacePlane) Slice(start, end int) kdtree.SortSlicer {
	return surfacePlane{surfacePoints: p.surfacePoints[start:end], Dim: p.Dim}
}

func (p surfacePlane) Swap(i, j int) {
	p.surfacePoints[i], p.surfacePoints[j] = p.surfacePoints[j], p.surfacePoints[i]
}

// Width measures the local tubule diameter at every skeleton point as
// twice the mean distance to the three nearest surface vertices, stores it
// in the Width layer, and appends the network mean and standard deviation
// to the report. Both the graph and the surface must be in physical
// coordinates.
func Width(g *skeleton.Graph, surface [][3]float64, report []Attribute) []Attribute {
	widths := g.Layer(WidthLayer)
	n := len(g.Points)
	if n == 0 || len(surface) == 0 {
		return append(report,
			Attribute{Name: "Average width (um)", Value: 0},
			Attribute{Name: "Std width (um)", Value: 0},
		)
	}

	pts := make(surfacePoints, len(surface))
	for i, v := range surface {
		pts[i] = surfacePoint(v)
	}
	tree := kdtree.New(pts, true)

	for i, p := range g.Points {
		keeper := kdtree.NewNKeeper(widthNeighbors)
		tree.NearestSet(keeper, surfacePoint{p.X, p.Y, p.Z})
		var w float64
		for _, item := range keeper.Heap {
			if item.Comparable == nil {
				continue
			}
			w += 2 * math.Sqrt(item.Dist)
		}
		widths[i] = w / widthNeighbors
	}

	return append(report,
		Attribute{Name: "Average width (um)", Value: stat.Mean(widths, nil)},
		Attribute{Name: "Std width (um)", Value: stat.PopStdDev(widths, nil)},
	)
}

// Length sums the segment lengths of every edge and broadcasts each total
// to all points of that edge in the Length layer. Edges are visited in
// descending order, so a junction point shared between edges keeps the
// value of the lowest edge id.
func Length(g *skeleton.Graph) {
	lengths := g.Layer(LengthLayer)
	for e := len(g.Edges) - 1; e >= 0; e-- {
		edge := g.Edges[e]
		var total float64
		for k := 1; k < len(edge); k++ {
			total += g.Points[edge[k-1]].Dist(g.Points[edge[k]])
		}
		for _, idx := range edge {
			lengths[idx] = total
		}
	}
}

// Intensity samples the raw image around every skeleton point and stores
// the mean of the six face neighbors in the Intensity layer. Points are
// mapped back to voxel indices from their physical position without the
// origin shift; neighbors outside the stack contribute zero.
func Intensity(g *skeleton.Graph, raw *voxel.Grid) {
	vals := g.Layer(IntensityLayer)
	for i, p := range g.Points {
		x := int(math.Round(p.X / raw.Spacing.XY))
		y := int(math.Round(p.Y / raw.Spacing.XY))
		z := int(math.Round(p.Z / raw.Spacing.Z))
		var sum float64
		for _, off := range voxel.N6 {
			nx, ny, nz := x+off.X, y+off.Y, z+off.Z
			if raw.Dims.Inside(nx, ny, nz) {
				sum += raw.At(nx, ny, nz)
			}
		}
		vals[i] = sum / float64(len(voxel.N6))
	}
}

// VolumeFromSkeleton walks every edge segment accumulating tubule length
// and a frustum-sum volume that uses the per-point widths as local radii.
// The appended volume attribute instead models the network as one tube of
// radius rad; the frustum total is returned for callers that want the
// width-resolved estimate.
func VolumeFromSkeleton(g *skeleton.Graph, rad float64, report []Attribute) (float64, []Attribute) {
	widths := g.Layer(WidthLayer)
	var length, frustum float64
	for _, edge := range g.Edges {
		for k := 1; k < len(edge); k++ {
			a, b := edge[k-1], edge[k]
			r1 := 0.5 * widths[a]
			r2 := 0.5 * widths[b]
			h := g.Points[a].Dist(g.Points[b])
			length += h
			frustum += (frustumPi / 3.0) * h * (r1*r1 + r2*r2 + r1*r2)
		}
	}
	report = append(report,
		Attribute{Name: "Total length (um)", Value: length},
		Attribute{Name: "Volume from length (um3)", Value: length * math.Pi * rad * rad},
	)
	return frustum, report
}

// Topology appends the endpoint, bifurcation, and connected component
// counts. A point terminates an edge once per end, so the anchor of a
// closed loop counts twice and is not an endpoint.
func Topology(g *skeleton.Graph, report []Attribute) []Attribute {
	counts := make(map[int]int)
	for _, e := range g.Edges {
		if len(e) == 0 {
			continue
		}
		counts[e[0]]++
		counts[e[len(e)-1]]++
	}
	ne, nb := 0, 0
	for _, k := range counts {
		if k == 1 {
			ne++
		}
		if k >= 3 {
			nb++
		}
	}
	return append(report,
		Attribute{Name: "#End points", Value: float64(ne)},
		Attribute{Name: "#Bifurcations", Value: float64(nb)},
		Attribute{Name: "#CComps", Value: float64(g.Components())},
	)
}
