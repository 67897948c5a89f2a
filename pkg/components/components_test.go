package components

import (
	"testing"

	"tubetrace/pkg/voxel"
)

// cube builds an empty grid of the given edge length.
func cube(n int) *voxel.Grid {
	return voxel.New(voxel.Dims{X: n, Y: n, Z: n}, voxel.Spacing{XY: 1, Z: 1})
}

// TestLabelConnectivityChoice verifies that two diagonally touching voxels
// form one component under 26-connectivity but two under 6-connectivity.
func TestLabelConnectivityChoice(t *testing.T) {
	g := cube(3)
	g.Set(0, 0, 0, 1)
	g.Set(1, 1, 0, 1)

	if n := Label(g, voxel.Conn6, 0).Count(); n != 2 {
		t.Errorf("Expected 2 components under 6-connectivity, got %d", n)
	}
	if n := Label(g, voxel.Conn26, 0).Count(); n != 1 {
		t.Errorf("Expected 1 component under 26-connectivity, got %d", n)
	}
}

// TestLabelInclusionThreshold verifies that only voxels strictly above the
// threshold participate.
func TestLabelInclusionThreshold(t *testing.T) {
	g := cube(3)
	g.Set(0, 0, 0, 0.2)
	g.Set(1, 0, 0, 0.5)
	g.Set(2, 0, 0, 0.3)

	l := Label(g, voxel.Conn6, 0.3)
	if l.Count() != 1 {
		t.Fatalf("Expected 1 component, got %d", l.Count())
	}
	if l.Labels[g.Dims.Index(0, 0, 0)] != 0 {
		t.Errorf("Voxel below threshold must stay background")
	}
	if l.Labels[g.Dims.Index(2, 0, 0)] != 0 {
		t.Errorf("Voxel at threshold must stay background")
	}
	if l.Labels[g.Dims.Index(1, 0, 0)] != -1 {
		t.Errorf("Expected label -1, got %d", l.Labels[g.Dims.Index(1, 0, 0)])
	}
}

// TestLabelSeedOrderAndSizes verifies the descending seed scan: the blob
// nearest the top of the volume is found first and labeled -1, and sizes
// line up with labels through SizeOf.
func TestLabelSeedOrderAndSizes(t *testing.T) {
	g := cube(5)
	// Three-voxel blob near the origin.
	g.Set(0, 0, 0, 1)
	g.Set(1, 0, 0, 1)
	g.Set(0, 1, 0, 1)
	// Single voxel near the far corner, highest linear id.
	g.Set(4, 4, 4, 1)

	l := Label(g, voxel.Conn6, 0)
	if l.Count() != 2 {
		t.Fatalf("Expected 2 components, got %d", l.Count())
	}
	if got := l.Labels[g.Dims.Index(4, 4, 4)]; got != -1 {
		t.Errorf("Expected far-corner blob labeled -1, got %d", got)
	}
	if got := l.Labels[g.Dims.Index(0, 0, 0)]; got != -2 {
		t.Errorf("Expected origin blob labeled -2, got %d", got)
	}
	if got := l.SizeOf(-1); got != 1 {
		t.Errorf("Expected component -1 size 1, got %d", got)
	}
	if got := l.SizeOf(-2); got != 3 {
		t.Errorf("Expected component -2 size 3, got %d", got)
	}
}

// TestFilterDropsSmallComponents verifies that components at or below the
// minimum size are zeroed while larger ones survive untouched.
func TestFilterDropsSmallComponents(t *testing.T) {
	g := cube(5)
	for x := 0; x < 4; x++ {
		g.Set(x, 0, 0, 255)
	}
	g.Set(4, 4, 4, 255)
	g.Set(4, 3, 4, 255)

	l := Label(g, voxel.Conn6, 0)
	out := Filter(g, l, 2)

	if out.At(4, 4, 4) != 0 || out.At(4, 3, 4) != 0 {
		t.Errorf("Expected two-voxel component removed")
	}
	for x := 0; x < 4; x++ {
		if out.At(x, 0, 0) != 255 {
			t.Errorf("Expected four-voxel component kept at x=%d", x)
		}
	}
	// The input grid must not be written.
	if g.At(4, 4, 4) != 255 {
		t.Errorf("Filter mutated its input")
	}
}

// TestFilterNeverGrowsComponents verifies that re-labeling after a filter
// pass finds only the surviving component.
func TestFilterNeverGrowsComponents(t *testing.T) {
	g := cube(5)
	for x := 0; x < 4; x++ {
		g.Set(x, 0, 0, 255)
	}
	g.Set(4, 4, 4, 255)

	out := Filter(g, Label(g, voxel.Conn6, 0), 1)
	after := Label(out, voxel.Conn6, 0)
	if after.Count() != 1 {
		t.Fatalf("Expected 1 component after filtering, got %d", after.Count())
	}
	if after.Sizes[0] != 4 {
		t.Errorf("Expected surviving component of size 4, got %d", after.Sizes[0])
	}
}

// TestFillHolesClosesCavity verifies that a background voxel fully enclosed
// by foreground is raised to 255 while the outside stays dark.
func TestFillHolesClosesCavity(t *testing.T) {
	g := cube(7)
	for z := 2; z <= 4; z++ {
		for y := 2; y <= 4; y++ {
			for x := 2; x <= 4; x++ {
				g.Set(x, y, z, 255)
			}
		}
	}
	g.Set(3, 3, 3, 0)

	out := FillHoles(g)
	if out.At(3, 3, 3) != 255 {
		t.Errorf("Expected enclosed cavity filled")
	}
	if out.At(1, 1, 1) != 0 {
		t.Errorf("Expected outside background untouched")
	}
	if g.At(3, 3, 3) != 0 {
		t.Errorf("FillHoles mutated its input")
	}
}

// TestFillHolesLeavesOpenChannel verifies that a cavity connected to the
// outside through a channel is not treated as a hole.
func TestFillHolesLeavesOpenChannel(t *testing.T) {
	g := cube(7)
	for z := 2; z <= 4; z++ {
		for y := 2; y <= 4; y++ {
			for x := 2; x <= 4; x++ {
				g.Set(x, y, z, 255)
			}
		}
	}
	// Channel from the center through the +z face of the box.
	g.Set(3, 3, 3, 0)
	g.Set(3, 3, 4, 0)

	out := FillHoles(g)
	if out.At(3, 3, 3) != 0 || out.At(3, 3, 4) != 0 {
		t.Errorf("Expected open channel left unfilled")
	}
}
