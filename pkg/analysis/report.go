package analysis

import (
	"bufio"
	"fmt"
	"os"

	"tubetrace/pkg/components"
	"tubetrace/pkg/skeleton"
	"tubetrace/pkg/voxel"
)

// WriteSummary writes the report as two tab-separated rows, attribute
// names then values.
func WriteSummary(path string, report []Attribute) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, a := range report {
		fmt.Fprintf(w, "%s\t", a.Name)
	}
	fmt.Fprintln(w)
	for _, a := range report {
		fmt.Fprintf(w, "%1.5f\t", a.Value)
	}
	fmt.Fprintln(w)
	return w.Flush()
}

// WritePointsTable writes one row per skeleton point: its edge, position
// within the edge, physical coordinates, width, and sampled intensity.
func WritePointsTable(path string, g *skeleton.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create points file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "line_id\tpoint_id\tx\ty\tz\twidth_(um)\tpixel_intensity")
	widths := g.Layer(WidthLayer)
	intens := g.Layer(IntensityLayer)
	for e, edge := range g.Edges {
		for k, idx := range edge {
			p := g.Points[idx]
			fmt.Fprintf(w, "%d\t%d\t%1.5f\t%1.5f\t%1.5f\t%1.5f\t%1.5f\n",
				e, k, p.X, p.Y, p.Z, widths[idx], intens[idx])
		}
	}
	return w.Flush()
}

// WriteNodesTable maps every skeleton node to the labeled connected
// component that encloses it and that component's physical volume. The
// graph must still be in voxel coordinates; nodes whose probes never hit a
// labeled voxel report component 0 with zero volume.
func WriteNodesTable(path string, g *skeleton.Graph, labels *components.Labeling, grid *voxel.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create nodes file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "Node\tBelonging_CC\tVol_Of_Belonging_CC_From_Img_(um3)")
	nodes := g.Layer(skeleton.NodeLayer)
	unit := grid.Spacing.XY * grid.Spacing.XY * grid.Spacing.Z
	probe := func(x, y, z int) int64 {
		if !grid.Dims.Inside(x, y, z) {
			return 0
		}
		return labels.Labels[grid.Dims.Index(x, y, z)]
	}
	for i, p := range g.Points {
		if nodes[i] < 0 {
			continue
		}
		x, y, z := int(p.X), int(p.Y), int(p.Z)
		cc := probe(x, y, z)
		if cc >= 0 {
			for _, off := range voxel.N6 {
				cc = probe(x+off.X, y+off.Y, z+off.Z)
				if cc < 0 {
					break
				}
			}
		}
		if cc < 0 {
			fmt.Fprintf(w, "%d\t%d\t%1.5f\n", int(nodes[i]), -cc, float64(labels.SizeOf(cc))*unit)
		} else {
			fmt.Fprintf(w, "%d\t%d\t0.00000\n", int(nodes[i]), cc)
		}
	}
	return w.Flush()
}
