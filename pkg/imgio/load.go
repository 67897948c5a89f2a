package imgio

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/stat/distuv"

	"tubetrace/pkg/voxel"
)

// stackDepth is the number of slices a planar image is embedded into.
const stackDepth = 7

// LoadVolume reads a dataset into a float64 grid at native sample scale and
// reports the source bit depth (8 or 16). Planar sources come back embedded
// as a thin synthetic stack. The grid spacing is taken from the caller; the
// origin comes from the file for VTK volumes and is zero otherwise.
func LoadVolume(d Dataset, spacing voxel.Spacing) (*voxel.Grid, int, error) {
	switch d.Kind {
	case SliceDir:
		files, err := sliceFiles(d.Path)
		if err != nil {
			return nil, 0, err
		}
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = filepath.Join(d.Path, f)
		}
		g, depth, err := stackSlices(paths, spacing)
		if err != nil {
			return nil, 0, err
		}
		if g.Dims.Z == 1 {
			g = Embed2D(g)
		}
		return g, depth, nil

	case PlanarImage:
		g, depth, err := stackSlices([]string{d.Path}, spacing)
		if err != nil {
			return nil, 0, err
		}
		return Embed2D(g), depth, nil

	case VTKVolume:
		g, depth, err := loadVTK(d.Path)
		if err != nil {
			return nil, 0, err
		}
		g.Spacing = spacing
		return g, depth, nil
	}
	return nil, 0, fmt.Errorf("%w: unknown source kind %d", ErrUnsupportedFormat, d.Kind)
}

// stackSlices decodes the given images into one grid, slice i at depth z=i.
// All slices must share dimensions and bit depth.
func stackSlices(paths []string, spacing voxel.Spacing) (*voxel.Grid, int, error) {
	var (
		g     *voxel.Grid
		depth int
	)
	for z, path := range paths {
		img, err := loadSlice(path)
		if err != nil {
			return nil, 0, err
		}

		b := img.Bounds()
		if g == nil {
			g = voxel.New(voxel.Dims{X: b.Dx(), Y: b.Dy(), Z: len(paths)}, spacing)
		} else if b.Dx() != g.Dims.X || b.Dy() != g.Dims.Y {
			return nil, 0, fmt.Errorf("%w: slice %s is %dx%d, want %dx%d",
				ErrUnsupportedFormat, filepath.Base(path), b.Dx(), b.Dy(), g.Dims.X, g.Dims.Y)
		}

		d, err := copyPlane(g, z, img)
		if err != nil {
			return nil, 0, fmt.Errorf("slice %s: %w", filepath.Base(path), err)
		}
		if depth == 0 {
			depth = d
		} else if d != depth {
			return nil, 0, fmt.Errorf("%w: mixed 8 and 16-bit slices", ErrUnsupportedFormat)
		}
	}
	return g, depth, nil
}

// loadSlice decodes one grayscale image file by extension.
func loadSlice(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	var img image.Image
	if strings.ToLower(filepath.Ext(path)) == ".png" {
		img, err = png.Decode(f)
	} else {
		img, err = tiff.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableInput, filepath.Base(path), err)
	}
	return img, nil
}

// copyPlane transfers one decoded slice into depth z of the grid and
// reports its bit depth.
func copyPlane(g *voxel.Grid, z int, img image.Image) (int, error) {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g.Set(x, y, z, float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return 8, nil
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g.Set(x, y, z, float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return 16, nil
	}
	return 0, fmt.Errorf("%w: non-grayscale pixels (%T)", ErrUnsupportedFormat, img)
}

// SampleBackground estimates the background level of a volume as the
// minimum over 1000 randomly drawn samples.
func SampleBackground(g *voxel.Grid) float64 {
	const draws = 1000
	v := math.Inf(1)
	for i := 0; i < draws; i++ {
		if s := g.Data[rand.Intn(len(g.Data))]; s < v {
			v = s
		}
	}
	return v
}

// Embed2D lifts a single-plane grid into a stack of stackDepth slices. The
// image occupies the interior pixels of the three central slices; everything
// else sits at the sampled background level, with Poisson shot noise added
// on the two outermost slices of each face so the Hessian sees a plausible
// axial profile instead of hard zeros.
func Embed2D(g *voxel.Grid) *voxel.Grid {
	bkgrd := SampleBackground(g)
	noise := distuv.Poisson{Lambda: bkgrd}
	draw := func() float64 {
		if bkgrd <= 0 {
			return 1
		}
		return noise.Rand() + 1
	}

	out := voxel.New(voxel.Dims{X: g.Dims.X, Y: g.Dims.Y, Z: stackDepth}, g.Spacing)
	for i := range out.Data {
		out.Data[i] = bkgrd
	}
	for x := 1; x < g.Dims.X-1; x++ {
		for y := 1; y < g.Dims.Y-1; y++ {
			for z := 0; z < stackDepth; z++ {
				if z < 2 || z > stackDepth-3 {
					out.Set(x, y, z, bkgrd+0.1*draw())
				} else {
					out.Set(x, y, z, g.At(x, y, 0))
				}
			}
		}
	}
	return out
}
