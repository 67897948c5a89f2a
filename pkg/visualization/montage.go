package visualization

import (
	"image"
	"math"

	"tubetrace/pkg/skeleton"
	"tubetrace/pkg/voxel"
)

// bandWidth is the number of slices shown above and below the structure's
// axial extent in the banded panels.
const bandWidth = 8

// Montage assembles the five-by-two check panel: complete surface scatter
// and image projection, first and last slice, the banded projections around
// the structure's z extent, and surface and skeleton splats in those bands.
type Montage struct {
	// Image is the 8-bit normalized stack.
	Image *voxel.Grid

	// Surface holds scaled surface vertex positions.
	Surface [][3]float64

	// Skeleton is the scaled centerline graph.
	Skeleton *skeleton.Graph

	// Spacing converts the scaled coordinates back to voxel indices.
	Spacing voxel.Spacing
}

// bands locates the axial slab the structure occupies from the surface z
// extent, padded by one slice at each end when room allows.
func (m Montage) bands() (zi, zf int) {
	if len(m.Surface) == 0 {
		return 0, m.Image.Dims.Z - 1
	}
	zmin, zmax := math.Inf(1), math.Inf(-1)
	for _, v := range m.Surface {
		zmin = math.Min(zmin, v[2])
		zmax = math.Max(zmax, v[2])
	}
	zi = int(math.Round(zmin / m.Spacing.Z))
	if zi > 1 {
		zi--
	}
	zf = int(math.Round(zmax / m.Spacing.Z))
	// The padding guard tests the lower bound for both ends.
	if zi < m.Image.Dims.Z-1 {
		zf++
	}
	return zi, zf
}

// Render assembles the panel plane.
func (m Montage) Render() *image.Gray {
	dim0, dim1, dim2 := m.Image.Dims.X, m.Image.Dims.Y, m.Image.Dims.Z
	min, _ := m.Image.MinMax()
	c := newCanvas(5*dim0, 2*dim1, clamp8(min))

	zi, zf := m.bands()

	// Column 0: complete surface scatter below, full projection above.
	for _, v := range m.Surface {
		x := int(math.Round(v[0] / m.Spacing.XY))
		y := int(math.Round(v[1] / m.Spacing.XY))
		c.set(x, y, 255)
	}
	paintProjection(c, m.Image, 0, dim1, 0, dim2-1)

	// Column 1: first and last slice. The x offset uses the stack height
	// rather than its width.
	for x := 0; x < dim0; x++ {
		for y := 0; y < dim1; y++ {
			c.set(x+dim1, y, clamp8(m.Image.At(x, y, 0)))
			c.set(x+dim1, y+dim1, clamp8(m.Image.At(x, y, dim2-1)))
		}
	}

	// Column 2: banded projections around the structure.
	paintProjection(c, m.Image, 2*dim0, 0, zi, zi+bandWidth)
	paintProjection(c, m.Image, 2*dim0, dim1, zf-bandWidth, zf)

	// Column 3: surface splats inside the bands.
	for _, v := range m.Surface {
		m.splat(c, v[0], v[1], v[2], 3*dim0, dim1, zi, zf)
	}

	// Column 4: skeleton splats inside the bands.
	if m.Skeleton != nil {
		for _, p := range m.Skeleton.Points {
			m.splat(c, p.X, p.Y, p.Z, 4*dim0, dim1, zi, zf)
		}
	}

	return c.image()
}

func (m Montage) splat(c *canvas, px, py, pz float64, xoff, dim1, zi, zf int) {
	x := int(math.Round(px / m.Spacing.XY))
	y := int(math.Round(py / m.Spacing.XY))
	z := int(math.Round(pz / m.Spacing.Z))
	if z >= zi && z <= zi+bandWidth {
		c.set(x+xoff, y, 255)
	}
	if z >= zf-bandWidth && z <= zf {
		c.set(x+xoff, y+dim1, 255)
	}
}
