// Package visualization renders volumes, surfaces and skeletons into 8-bit
// grayscale PNG panels for quick visual inspection of a run.
package visualization

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"tubetrace/pkg/voxel"
)

// canvas is an 8-bit plane addressed with the volume's bottom-left origin.
// Out-of-range writes are dropped.
type canvas struct {
	w, h int
	pix  []uint8
}

func newCanvas(w, h int, fill uint8) *canvas {
	c := &canvas{w: w, h: h, pix: make([]uint8, w*h)}
	for i := range c.pix {
		c.pix[i] = fill
	}
	return c
}

func (c *canvas) set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.pix[y*c.w+x] = v
}

// image converts the canvas to the top-left row order PNG expects.
func (c *canvas) image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, c.w, c.h))
	for y := 0; y < c.h; y++ {
		copy(img.Pix[(c.h-1-y)*img.Stride:], c.pix[y*c.w:(y+1)*c.w])
	}
	return img
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// paintProjection writes the brightest value along z in [z0,z1] of every
// (x,y) column into the canvas at the given panel offset. The z range is
// clipped to the stack.
func paintProjection(c *canvas, g *voxel.Grid, xoff, yoff, z0, z1 int) {
	if z0 < 0 {
		z0 = 0
	}
	if z1 > g.Dims.Z-1 {
		z1 = g.Dims.Z - 1
	}
	for x := 0; x < g.Dims.X; x++ {
		for y := 0; y < g.Dims.Y; y++ {
			vproj := 0.0
			for z := z0; z <= z1; z++ {
				if v := g.At(x, y, z); v > vproj {
					vproj = v
				}
			}
			c.set(x+xoff, y+yoff, clamp8(vproj))
		}
	}
}

// MaxProjection flattens the whole stack along z into an 8-bit image.
func MaxProjection(g *voxel.Grid) *image.Gray {
	c := newCanvas(g.Dims.X, g.Dims.Y, 0)
	paintProjection(c, g, 0, 0, 0, g.Dims.Z-1)
	return c.image()
}

// SavePNG writes an 8-bit grayscale PNG.
func SavePNG(path string, img *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode image: %v", err)
	}
	return nil
}
