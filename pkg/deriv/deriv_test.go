package deriv

import (
	"math"
	"testing"

	"tubetrace/pkg/voxel"
)

// rampGrid fills a grid with a linear ramp a*x + b*y + c*z.
func rampGrid(dims voxel.Dims, a, b, c float64) *voxel.Grid {
	g := voxel.New(dims, voxel.Spacing{XY: 1, Z: 1})
	for z := 0; z < dims.Z; z++ {
		for y := 0; y < dims.Y; y++ {
			for x := 0; x < dims.X; x++ {
				g.Set(x, y, z, a*float64(x)+b*float64(y)+c*float64(z))
			}
		}
	}
	return g
}

// TestDerivativeLinearRamp verifies that the derivative of a linear ramp is
// its slope everywhere, including the one-sided boundary planes.
func TestDerivativeLinearRamp(t *testing.T) {
	dims := voxel.Dims{X: 6, Y: 5, Z: 4}
	g := rampGrid(dims, 2.0, -3.0, 0.5)

	cases := []struct {
		axis Axis
		want float64
	}{
		{X, 2.0},
		{Y, -3.0},
		{Z, 0.5},
	}
	for _, c := range cases {
		d := Derivative(g.Data, dims, c.axis)
		for i, v := range d {
			if math.Abs(v-c.want) > 1e-12 {
				x, y, z := dims.Coords(i)
				t.Fatalf("Axis %d at (%d,%d,%d): expected %f, got %f", c.axis, x, y, z, c.want, v)
			}
		}
	}
}

// TestDerivativeBoundaryStencil pins the one-sided boundary formulas on a
// non-linear profile.
func TestDerivativeBoundaryStencil(t *testing.T) {
	dims := voxel.Dims{X: 4, Y: 1, Z: 1}
	data := []float64{1, 4, 9, 16}

	d := Derivative(data, dims, X)
	if d[0] != data[1]-data[0] {
		t.Errorf("Expected leading boundary %f, got %f", data[1]-data[0], d[0])
	}
	if d[3] != data[3]-data[2] {
		t.Errorf("Expected trailing boundary %f, got %f", data[3]-data[2], d[3])
	}
	if want := (data[2] - data[0]) / 2.0; d[1] != want {
		t.Errorf("Expected central difference %f, got %f", want, d[1])
	}
}

// TestSecondPartialsQuadratic verifies the Hessian entries of
// f = x^2 + 2y^2 + 3z^2 + xy on grid interiors.
func TestSecondPartialsQuadratic(t *testing.T) {
	dims := voxel.Dims{X: 9, Y: 9, Z: 9}
	g := voxel.New(dims, voxel.Spacing{XY: 1, Z: 1})
	for z := 0; z < dims.Z; z++ {
		for y := 0; y < dims.Y; y++ {
			for x := 0; x < dims.X; x++ {
				fx, fy, fz := float64(x), float64(y), float64(z)
				g.Set(x, y, z, fx*fx+2*fy*fy+3*fz*fz+fx*fy)
			}
		}
	}

	p := SecondPartials(g)
	id := dims.Index(4, 4, 4)
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"Dxx", p.Dxx[id], 2},
		{"Dyy", p.Dyy[id], 4},
		{"Dzz", p.Dzz[id], 6},
		{"Dxy", p.Dxy[id], 1},
		{"Dxz", p.Dxz[id], 0},
		{"Dyz", p.Dyz[id], 0},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-10 {
			t.Errorf("%s: expected %f, got %f", c.name, c.want, c.got)
		}
	}
}

// TestGaussianSmoothPreservesConstant verifies that a constant field is a
// fixed point of the smoother, boundaries included.
func TestGaussianSmoothPreservesConstant(t *testing.T) {
	dims := voxel.Dims{X: 12, Y: 10, Z: 8}
	g := voxel.New(dims, voxel.Spacing{XY: 1, Z: 1})
	for i := range g.Data {
		g.Data[i] = 37.5
	}

	s := GaussianSmooth(g, 1.5)
	for i, v := range s.Data {
		if math.Abs(v-37.5) > 1e-9 {
			x, y, z := dims.Coords(i)
			t.Fatalf("Constant not preserved at (%d,%d,%d): got %f", x, y, z, v)
		}
	}
}

// TestGaussianSmoothSpreadsImpulse verifies mass-preserving blur of a point
// source away from boundaries: the peak drops and neighbors rise.
func TestGaussianSmoothSpreadsImpulse(t *testing.T) {
	dims := voxel.Dims{X: 31, Y: 31, Z: 31}
	g := voxel.New(dims, voxel.Spacing{XY: 1, Z: 1})
	g.Set(15, 15, 15, 1000)

	s := GaussianSmooth(g, 1.0)
	if g.At(15, 15, 15) != 1000 {
		t.Fatal("Smoothing mutated its input grid")
	}
	center := s.At(15, 15, 15)
	if center >= 1000 || center <= 0 {
		t.Errorf("Expected attenuated peak, got %f", center)
	}
	if n := s.At(16, 15, 15); n <= 0 || n >= center {
		t.Errorf("Expected 0 < neighbor %f < center %f", n, center)
	}

	sum := 0.0
	for _, v := range s.Data {
		sum += v
	}
	if math.Abs(sum-1000) > 1e-6 {
		t.Errorf("Expected mass 1000 preserved, got %f", sum)
	}
}

// TestGaussianSmoothAnisoZCompressed verifies that a z-compressed kernel
// spreads less along z than along x.
func TestGaussianSmoothAnisoZCompressed(t *testing.T) {
	dims := voxel.Dims{X: 31, Y: 31, Z: 31}
	g := voxel.New(dims, voxel.Spacing{XY: 1, Z: 1})
	g.Set(15, 15, 15, 1000)

	s := GaussianSmoothAniso(g, 2.0, 2.0, 0.6)
	alongX := s.At(18, 15, 15)
	alongZ := s.At(15, 15, 18)
	if alongZ >= alongX {
		t.Errorf("Expected tighter spread along z: x-offset %f, z-offset %f", alongX, alongZ)
	}
}

func BenchmarkGaussianSmooth(b *testing.B) {
	dims := voxel.Dims{X: 64, Y: 64, Z: 16}
	g := voxel.New(dims, voxel.Spacing{XY: 1, Z: 1})
	for i := range g.Data {
		g.Data[i] = float64(i % 255)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GaussianSmooth(g, 1.0)
	}
}
