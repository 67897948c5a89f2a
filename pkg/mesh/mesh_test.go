package mesh

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tubetrace/pkg/voxel"
)

// TestMarchingCubes verifies the surface extraction with a simple sphere
func TestMarchingCubes(t *testing.T) {
	// Create a 3D dataset representing a sphere in a 20x20x20 volume
	size := 20
	data := make([]float64, size*size*size)

	radius := float64(size) / 4.0
	center := float64(size) / 2.0

	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

				// Inside sphere: 1.0, outside: 0.0
				if dist < radius {
					data[z*size*size+y*size+x] = 1.0
				}
			}
		}
	}

	mc := NewMarchingCubes(data, size, size, size, 0.5)
	triangles := mc.GenerateTriangles()

	// A sphere with this resolution should have at least 100 triangles
	if len(triangles) < 100 {
		t.Errorf("Expected at least 100 triangles for sphere, got %d", len(triangles))
	}

	// Normals should point outward, away from the sphere center
	for _, triangle := range triangles[:10] {
		centerX := (triangle.Vertex1[0] + triangle.Vertex2[0] + triangle.Vertex3[0]) / 3
		centerY := (triangle.Vertex1[1] + triangle.Vertex2[1] + triangle.Vertex3[1]) / 3
		centerZ := (triangle.Vertex1[2] + triangle.Vertex2[2] + triangle.Vertex3[2]) / 3

		vx := centerX - float32(center)
		vy := centerY - float32(center)
		vz := centerZ - float32(center)

		mag := float32(math.Sqrt(float64(vx*vx + vy*vy + vz*vz)))
		if mag > 0 {
			vx /= mag
			vy /= mag
			vz /= mag
		}

		dot := vx*triangle.Normal[0] + vy*triangle.Normal[1] + vz*triangle.Normal[2]
		if dot < -0.5 {
			t.Errorf("Triangle normal appears to point inward, dot product: %f", dot)
		}
	}

	// A closed sphere surface is a single connected patch
	if got := Components(triangles); got != 1 {
		t.Errorf("Expected 1 surface component, got %d", got)
	}
}

// TestSetScale verifies that the axis scales are applied to the vertices
func TestSetScale(t *testing.T) {
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 0,
	}

	mc := NewMarchingCubes(data, 2, 2, 2, 0.5)
	xScale, yScale, zScale := float32(2.5), float32(1.5), float32(3.0)
	mc.SetScale(xScale, yScale, zScale)
	scaled := mc.GenerateTriangles()

	mc2 := NewMarchingCubes(data, 2, 2, 2, 0.5)
	plain := mc2.GenerateTriangles()

	if len(scaled) == 0 || len(scaled) != len(plain) {
		t.Fatalf("Expected matching non-empty triangle sets, got %d and %d", len(scaled), len(plain))
	}

	scales := [3]float64{float64(xScale), float64(yScale), float64(zScale)}
	for i := range scaled {
		sv := [3][3]float32{scaled[i].Vertex1, scaled[i].Vertex2, scaled[i].Vertex3}
		pv := [3][3]float32{plain[i].Vertex1, plain[i].Vertex2, plain[i].Vertex3}
		for v := 0; v < 3; v++ {
			for k := 0; k < 3; k++ {
				want := float64(pv[v][k]) * scales[k]
				if math.Abs(float64(sv[v][k])-want) > 1e-4 {
					t.Fatalf("Vertex %d component %d: got %f, want %f", v, k, sv[v][k], want)
				}
			}
		}
	}
}

// TestSaveToSTL verifies the binary STL layout
func TestSaveToSTL(t *testing.T) {
	triangles := []Triangle{
		{
			Normal:  [3]float32{0, 0, 1},
			Vertex1: [3]float32{0, 0, 0},
			Vertex2: [3]float32{1, 0, 0},
			Vertex3: [3]float32{0, 1, 0},
		},
	}

	tmpFile, err := os.CreateTemp("", "test-*.stl")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	if err := SaveToSTL(tmpFile.Name(), triangles); err != nil {
		t.Fatalf("Failed to save STL: %v", err)
	}

	info, err := os.Stat(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to stat output file: %v", err)
	}

	// 80-byte header + 4-byte count + one 50-byte facet record
	wantSize := int64(80 + 4 + 50)
	if info.Size() != wantSize {
		t.Errorf("STL file size: got %d bytes, want %d", info.Size(), wantSize)
	}
}

// TestSTLRoundTrip verifies that saved facets read back bit for bit
func TestSTLRoundTrip(t *testing.T) {
	triangles := []Triangle{
		{
			Normal:  [3]float32{0, 0, 1},
			Vertex1: [3]float32{0.5, 0, 0},
			Vertex2: [3]float32{1, 0.25, 0},
			Vertex3: [3]float32{0, 1, 0.125},
		},
		{
			Normal:  [3]float32{1, 0, 0},
			Vertex1: [3]float32{2, 2, 2},
			Vertex2: [3]float32{2, 3, 2},
			Vertex3: [3]float32{2, 2, 3},
		},
	}

	path := filepath.Join(t.TempDir(), "mesh.stl")
	if err := SaveToSTL(path, triangles); err != nil {
		t.Fatalf("Failed to save STL: %v", err)
	}

	got, err := LoadFromSTL(path)
	if err != nil {
		t.Fatalf("Failed to load STL: %v", err)
	}
	if diff := cmp.Diff(triangles, got); diff != "" {
		t.Errorf("Loaded triangles mismatch (-want +got):\n%s", diff)
	}
}

// TestTriangleInterpolation verifies the crossing-point interpolation
func TestTriangleInterpolation(t *testing.T) {
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 0,
	}

	mc := NewMarchingCubes(data, 2, 2, 2, 0.5)
	triangles := mc.GenerateTriangles()

	if len(triangles) == 0 {
		t.Fatal("No triangles generated, cannot test interpolation")
	}

	triangle := triangles[0]

	// At least one vertex must sit between samples, not on the lattice
	hasInterpolatedVertex := false
	for _, v := range [3][3]float32{triangle.Vertex1, triangle.Vertex2, triangle.Vertex3} {
		if !isIntegerCoordinate(v[0]) || !isIntegerCoordinate(v[1]) || !isIntegerCoordinate(v[2]) {
			hasInterpolatedVertex = true
		}
	}
	if !hasInterpolatedVertex {
		t.Error("No interpolated vertices found in the triangle")
	}

	if triangle.Normal[0] == 0 && triangle.Normal[1] == 0 && triangle.Normal[2] == 0 {
		t.Error("Triangle normal is zero")
	}
}

// isIntegerCoordinate checks if a coordinate is very close to an integer value
func isIntegerCoordinate(coord float32) bool {
	return math.Abs(float64(coord)-math.Round(float64(coord))) < 0.001
}

func TestComponentsCountsSeparatePatches(t *testing.T) {
	g := voxel.New(voxel.Dims{X: 12, Y: 6, Z: 6}, voxel.Spacing{XY: 1, Z: 1})
	for z := 2; z <= 3; z++ {
		for y := 2; y <= 3; y++ {
			for x := 2; x <= 3; x++ {
				g.Set(x, y, z, 1)
				g.Set(x+6, y, z, 1)
			}
		}
	}

	tris := FromGrid(g, 0.5)
	if len(tris) == 0 {
		t.Fatal("No triangles generated")
	}
	if got := Components(tris); got != 2 {
		t.Errorf("Expected 2 surface components, got %d", got)
	}
}

func TestScaleRestoresOrigin(t *testing.T) {
	tris := []Triangle{
		{
			Vertex1: [3]float32{0, 0, 0},
			Vertex2: [3]float32{1, 0, 0},
			Vertex3: [3]float32{0, 1, 0},
		},
	}

	out := Scale(tris, voxel.Spacing{XY: 2, Z: 3}, voxel.Origin{X: 1, Y: 1, Z: 1})

	want := [3][3]float32{
		{2, 2, 3},
		{4, 2, 3},
		{2, 4, 3},
	}
	got := [3][3]float32{out[0].Vertex1, out[0].Vertex2, out[0].Vertex3}
	if got != want {
		t.Errorf("Scaled vertices: got %v, want %v", got, want)
	}
	if tris[0].Vertex1 != ([3]float32{0, 0, 0}) {
		t.Error("Scale modified its input")
	}
}

// BenchmarkMarchingCubes benchmarks the surface extraction
func BenchmarkMarchingCubes(b *testing.B) {
	width, height, depth := 16, 16, 16
	data := make([]float64, width*height*depth)

	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx := float64(x - width/2)
				dy := float64(y - height/2)
				dz := float64(z - depth/2)
				distance := math.Sqrt(dx*dx + dy*dy + dz*dz)

				if distance < float64(width)/4 {
					data[z*width*height+y*width+x] = 1.0
				}
			}
		}
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		mc := NewMarchingCubes(data, width, height, depth, 0.5)
		mc.GenerateTriangles()
	}
}
