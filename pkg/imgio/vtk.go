package imgio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tubetrace/pkg/skeleton"
	"tubetrace/pkg/voxel"
)

// SaveVTK writes the grid as a legacy STRUCTURED_POINTS volume with binary
// big-endian unsigned char samples. Values are clamped to [0,255].
func SaveVTK(path string, g *voxel.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# vtk DataFile Version 3.0\n")
	fmt.Fprintf(w, "tubetrace volume\n")
	fmt.Fprintf(w, "BINARY\n")
	fmt.Fprintf(w, "DATASET STRUCTURED_POINTS\n")
	fmt.Fprintf(w, "DIMENSIONS %d %d %d\n", g.Dims.X, g.Dims.Y, g.Dims.Z)
	fmt.Fprintf(w, "SPACING %g %g %g\n", g.Spacing.XY, g.Spacing.XY, g.Spacing.Z)
	fmt.Fprintf(w, "ORIGIN %g %g %g\n", g.Origin.X, g.Origin.Y, g.Origin.Z)
	fmt.Fprintf(w, "POINT_DATA %d\n", g.Dims.N())
	fmt.Fprintf(w, "SCALARS scalars unsigned_char 1\n")
	fmt.Fprintf(w, "LOOKUP_TABLE default\n")

	buf := make([]byte, g.Dims.N())
	for i, v := range g.Data {
		buf[i] = clamp8(v)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write volume payload: %v", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write volume file: %v", err)
	}
	return nil
}

func clamp8(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v + 0.5)
}

// loadVTK reads a legacy STRUCTURED_POINTS scalar volume holding 8 or
// 16-bit unsigned samples in binary big-endian or ASCII form.
func loadVTK(path string) (*voxel.Grid, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	header, err := readLine(r)
	if err != nil || !strings.HasPrefix(header, "# vtk DataFile") {
		return nil, 0, fmt.Errorf("%w: %s is not a VTK data file", ErrUnsupportedFormat, path)
	}
	if _, err := readLine(r); err != nil { // title line
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	format, err := readLine(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	var binaryData bool
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "BINARY":
		binaryData = true
	case "ASCII":
	default:
		return nil, 0, fmt.Errorf("%w: data format %q", ErrUnsupportedFormat, format)
	}

	var (
		dims       voxel.Dims
		spacing    voxel.Spacing
		origin     voxel.Origin
		n          int
		scalarType string
	)
header:
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: truncated header: %v", ErrUnsupportedFormat, err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "DATASET":
			if len(fields) < 2 || fields[1] != "STRUCTURED_POINTS" {
				return nil, 0, fmt.Errorf("%w: dataset %q", ErrUnsupportedFormat, line)
			}
		case "DIMENSIONS":
			if dims.X, dims.Y, dims.Z, err = parseTriple(fields); err != nil {
				return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
		case "SPACING", "ASPECT_RATIO":
			sx, _, sz, err := parseTripleFloat(fields)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
			spacing = voxel.Spacing{XY: sx, Z: sz}
		case "ORIGIN":
			if origin.X, origin.Y, origin.Z, err = parseTripleFloat(fields); err != nil {
				return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
		case "POINT_DATA":
			if len(fields) < 2 {
				return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
			n, _ = strconv.Atoi(fields[1])
		case "SCALARS":
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
			scalarType = strings.ToLower(fields[2])
		case "LOOKUP_TABLE":
			break header
		}
	}

	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return nil, 0, fmt.Errorf("%w: missing volume dimensions", ErrUnsupportedFormat)
	}
	if n != 0 && n != dims.N() {
		return nil, 0, fmt.Errorf("%w: %d points for %dx%dx%d volume",
			ErrUnsupportedFormat, n, dims.X, dims.Y, dims.Z)
	}
	if spacing.XY == 0 {
		spacing = voxel.Spacing{XY: 1, Z: 1}
	}

	g := voxel.New(dims, spacing)
	g.Origin = origin

	switch scalarType {
	case "unsigned_char":
		if binaryData {
			buf := make([]byte, dims.N())
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, 0, fmt.Errorf("%w: short payload: %v", ErrUnreadableInput, err)
			}
			for i, b := range buf {
				g.Data[i] = float64(b)
			}
		} else if err := readASCII(r, g.Data); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
		}
		return g, 8, nil

	case "unsigned_short":
		if binaryData {
			buf := make([]byte, 2*dims.N())
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, 0, fmt.Errorf("%w: short payload: %v", ErrUnreadableInput, err)
			}
			for i := range g.Data {
				g.Data[i] = float64(binary.BigEndian.Uint16(buf[2*i:]))
			}
		} else if err := readASCII(r, g.Data); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
		}
		return g, 16, nil
	}
	return nil, 0, fmt.Errorf("%w: %s scalars", ErrUnsupportedFormat, scalarType)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseTriple(fields []string) (x, y, z int, err error) {
	if len(fields) < 4 {
		return 0, 0, 0, fmt.Errorf("want 3 values, got %d", len(fields)-1)
	}
	if x, err = strconv.Atoi(fields[1]); err != nil {
		return
	}
	if y, err = strconv.Atoi(fields[2]); err != nil {
		return
	}
	z, err = strconv.Atoi(fields[3])
	return
}

func parseTripleFloat(fields []string) (x, y, z float64, err error) {
	if len(fields) < 4 {
		return 0, 0, 0, fmt.Errorf("want 3 values, got %d", len(fields)-1)
	}
	if x, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return
	}
	if y, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return
	}
	z, err = strconv.ParseFloat(fields[3], 64)
	return
}

func readASCII(r io.Reader, dst []float64) error {
	for i := range dst {
		if _, err := fmt.Fscan(r, &dst[i]); err != nil {
			return err
		}
	}
	return nil
}

// SaveSkeletonVTK writes the graph as legacy ASCII POLYDATA with one
// polyline per edge. The first named layer is attached as the point scalars,
// any further ones as field arrays.
func SaveSkeletonVTK(path string, g *skeleton.Graph, layers ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create skeleton file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# vtk DataFile Version 3.0\n")
	fmt.Fprintf(w, "tubetrace skeleton\n")
	fmt.Fprintf(w, "ASCII\n")
	fmt.Fprintf(w, "DATASET POLYDATA\n")

	fmt.Fprintf(w, "POINTS %d double\n", len(g.Points))
	for _, p := range g.Points {
		fmt.Fprintf(w, "%g %g %g\n", p.X, p.Y, p.Z)
	}

	size := 0
	for _, e := range g.Edges {
		size += len(e) + 1
	}
	fmt.Fprintf(w, "LINES %d %d\n", len(g.Edges), size)
	for _, e := range g.Edges {
		fmt.Fprintf(w, "%d", len(e))
		for _, id := range e {
			fmt.Fprintf(w, " %d", id)
		}
		fmt.Fprintln(w)
	}

	if len(layers) > 0 {
		fmt.Fprintf(w, "POINT_DATA %d\n", len(g.Points))
		fmt.Fprintf(w, "SCALARS %s double 1\n", layers[0])
		fmt.Fprintf(w, "LOOKUP_TABLE default\n")
		writeDoubles(w, g.Layer(layers[0]))
	}
	if len(layers) > 1 {
		fmt.Fprintf(w, "FIELD FieldData %d\n", len(layers)-1)
		for _, name := range layers[1:] {
			fmt.Fprintf(w, "%s 1 %d double\n", name, len(g.Points))
			writeDoubles(w, g.Layer(name))
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write skeleton file: %v", err)
	}
	return nil
}

// LoadSkeletonVTK reads the points of a legacy ASCII POLYDATA skeleton back
// into a graph. Lines and layers are not reconstructed; the check montage
// only needs point positions.
func LoadSkeletonVTK(path string) (*skeleton.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var n int
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, fmt.Errorf("%w: no POINTS section in %s", ErrUnsupportedFormat, path)
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.EqualFold(fields[0], "POINTS") {
			if n, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, line)
			}
			break
		}
	}

	g := skeleton.NewGraph()
	for i := 0; i < n; i++ {
		var p skeleton.Point
		if _, err := fmt.Fscan(r, &p.X, &p.Y, &p.Z); err != nil {
			return nil, fmt.Errorf("%w: truncated POINTS section: %v", ErrUnreadableInput, err)
		}
		g.AddPoint(p)
	}
	return g, nil
}

// writeDoubles prints values nine to a line the way VTK's own writers do.
func writeDoubles(w *bufio.Writer, vals []float64) {
	for i, v := range vals {
		if i > 0 {
			if i%9 == 0 {
				w.WriteByte('\n')
			} else {
				w.WriteByte(' ')
			}
		}
		fmt.Fprintf(w, "%g", v)
	}
	if len(vals) > 0 {
		w.WriteByte('\n')
	}
}
