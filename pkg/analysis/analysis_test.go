package analysis

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrace/pkg/components"
	"tubetrace/pkg/skeleton"
	"tubetrace/pkg/voxel"
)

func TestStraightEdgeAttributes(t *testing.T) {
	g := skeleton.NewGraph()
	a := g.AddPoint(skeleton.Point{X: 0})
	b := g.AddPoint(skeleton.Point{X: 4})
	g.Edges = [][]int{{a, b}}

	// Three surface vertices at distance 1 around each skeleton point, so
	// the local diameter is exactly 2 everywhere.
	surface := [][3]float64{
		{0, 1, 0}, {0, -1, 0}, {0, 0, 1},
		{4, 1, 0}, {4, -1, 0}, {4, 0, 1},
	}

	report := Width(g, surface, nil)
	require.Len(t, report, 2)
	assert.Equal(t, "Average width (um)", report[0].Name)
	assert.InDelta(t, 2.0, report[0].Value, 1e-12)
	assert.Equal(t, "Std width (um)", report[1].Name)
	assert.InDelta(t, 0.0, report[1].Value, 1e-12)

	widths := g.Layer(WidthLayer)
	assert.InDelta(t, 2.0, widths[a], 1e-12)
	assert.InDelta(t, 2.0, widths[b], 1e-12)

	frustum, report := VolumeFromSkeleton(g, 0.3, report)
	require.Len(t, report, 4)
	assert.Equal(t, "Total length (um)", report[2].Name)
	assert.InDelta(t, 4.0, report[2].Value, 1e-12)
	assert.Equal(t, "Volume from length (um3)", report[3].Name)
	assert.InDelta(t, 4*math.Pi*0.3*0.3, report[3].Value, 1e-12)

	// A constant-width straight edge is a cylinder of radius width/2.
	assert.InDelta(t, 4*frustumPi, frustum, 1e-9)

	Length(g)
	lengths := g.Layer(LengthLayer)
	assert.InDelta(t, 4.0, lengths[a], 1e-12)
	assert.InDelta(t, 4.0, lengths[b], 1e-12)
}

func TestWidthEmptySurface(t *testing.T) {
	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{X: 1})

	report := Width(g, nil, nil)

	require.Len(t, report, 2)
	assert.Equal(t, 0.0, report[0].Value)
	assert.Equal(t, 0.0, report[1].Value)
	assert.Equal(t, 0.0, g.Layer(WidthLayer)[0])
}

func TestLengthJunctionKeepsLowestEdge(t *testing.T) {
	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{X: 0})
	g.AddPoint(skeleton.Point{X: 3})
	g.AddPoint(skeleton.Point{X: 3, Y: 4})
	g.Edges = [][]int{{0, 1}, {1, 2}}

	Length(g)

	lengths := g.Layer(LengthLayer)
	assert.InDelta(t, 3.0, lengths[0], 1e-12)
	assert.InDelta(t, 3.0, lengths[1], 1e-12)
	assert.InDelta(t, 5.0, lengths[2], 1e-12)
}

func TestIntensityFaceNeighborMean(t *testing.T) {
	raw := voxel.New(voxel.Dims{X: 4, Y: 4, Z: 4}, voxel.Spacing{XY: 0.5, Z: 1})
	raw.Set(2, 2, 0, 6)
	raw.Set(1, 2, 1, 12)
	raw.Set(2, 1, 1, 18)
	raw.Set(3, 2, 1, 24)
	raw.Set(2, 3, 1, 30)
	raw.Set(2, 2, 2, 36)
	raw.Set(2, 2, 1, 999)

	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{X: 1, Y: 1, Z: 1})

	Intensity(g, raw)

	// (6+12+18+24+30+36)/6, the center sample itself is excluded.
	assert.InDelta(t, 21.0, g.Layer(IntensityLayer)[0], 1e-12)
}

func TestIntensityClipsAtStackBorder(t *testing.T) {
	raw := voxel.New(voxel.Dims{X: 3, Y: 3, Z: 3}, voxel.Spacing{XY: 1, Z: 1})
	raw.Set(1, 0, 0, 12)
	raw.Set(0, 1, 0, 12)
	raw.Set(0, 0, 1, 12)

	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{})

	Intensity(g, raw)

	// Only three of the six neighbors exist; the divisor stays six.
	assert.InDelta(t, 6.0, g.Layer(IntensityLayer)[0], 1e-12)
}

func TestTopologyCounts(t *testing.T) {
	g := skeleton.NewGraph()
	for i := 0; i < 8; i++ {
		g.AddPoint(skeleton.Point{X: float64(i)})
	}
	g.Edges = [][]int{{0, 1, 2}, {2, 3}, {2, 4}, {5, 6, 7, 5}}

	report := Topology(g, nil)

	require.Len(t, report, 3)
	assert.Equal(t, Attribute{Name: "#End points", Value: 3}, report[0])
	assert.Equal(t, Attribute{Name: "#Bifurcations", Value: 1}, report[1])
	assert.Equal(t, Attribute{Name: "#CComps", Value: 2}, report[2])
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.summary.txt")
	report := []Attribute{{Name: "A", Value: 1}, {Name: "B", Value: 2.5}}

	require.NoError(t, WriteSummary(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\tB\t\n1.00000\t2.50000\t\n", string(data))
}

func TestWritePointsTable(t *testing.T) {
	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{X: 1.5})
	g.AddPoint(skeleton.Point{X: 2.5})
	g.Edges = [][]int{{0, 1}}
	copy(g.Layer(WidthLayer), []float64{0.5, 0.75})
	copy(g.Layer(IntensityLayer), []float64{10, 20})

	path := filepath.Join(t.TempDir(), "net.points.txt")
	require.NoError(t, WritePointsTable(path, g))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "line_id\tpoint_id\tx\ty\tz\twidth_(um)\tpixel_intensity\n" +
		"0\t0\t1.50000\t0.00000\t0.00000\t0.50000\t10.00000\n" +
		"0\t1\t2.50000\t0.00000\t0.00000\t0.75000\t20.00000\n"
	assert.Equal(t, want, string(data))
}

func TestWriteNodesTable(t *testing.T) {
	grid := voxel.New(voxel.Dims{X: 4, Y: 4, Z: 4}, voxel.Spacing{XY: 1, Z: 2})
	labels := &components.Labeling{
		Labels: make([]int64, grid.Dims.N()),
		Sizes:  []int64{3},
	}
	labels.Labels[grid.Dims.Index(1, 1, 1)] = -1

	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{X: 1, Y: 1, Z: 1})
	g.AddPoint(skeleton.Point{X: 2, Y: 2, Z: 2})
	g.AddPoint(skeleton.Point{X: 3, Y: 3, Z: 3})
	nodes := g.Layer(skeleton.NodeLayer)
	copy(nodes, []float64{0, -1, 1})

	path := filepath.Join(t.TempDir(), "net.nodes.txt")
	require.NoError(t, WriteNodesTable(path, g, labels, grid))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Node\tBelonging_CC\tVol_Of_Belonging_CC_From_Img_(um3)\n" +
		"0\t1\t6.00000\n" +
		"1\t0\t0.00000\n"
	assert.Equal(t, want, string(data))
}

func TestWriteNodesTableProbesFaceNeighbors(t *testing.T) {
	grid := voxel.New(voxel.Dims{X: 4, Y: 4, Z: 4}, voxel.Spacing{XY: 1, Z: 1})
	labels := &components.Labeling{
		Labels: make([]int64, grid.Dims.N()),
		Sizes:  []int64{5},
	}
	labels.Labels[grid.Dims.Index(1, 1, 1)] = -1

	g := skeleton.NewGraph()
	g.AddPoint(skeleton.Point{X: 1, Y: 1, Z: 2})
	copy(g.Layer(skeleton.NodeLayer), []float64{0})

	path := filepath.Join(t.TempDir(), "net.nodes.txt")
	require.NoError(t, WriteNodesTable(path, g, labels, grid))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Node\tBelonging_CC\tVol_Of_Belonging_CC_From_Img_(um3)\n" +
		"0\t1\t5.00000\n"
	assert.Equal(t, want, string(data))
}