package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SaveToSTL writes the triangle soup as a binary STL file: an 80-byte
// header, a little-endian uint32 facet count, then one 50-byte record per
// facet.
func SaveToSTL(filename string, triangles []Triangle) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var header [80]byte
	copy(header[:], "tubetrace surface")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write STL header: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write STL facet count: %v", err)
	}
	for _, t := range triangles {
		if err := binary.Write(w, binary.LittleEndian, t); err != nil {
			return fmt.Errorf("failed to write STL facet: %v", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("failed to write STL facet: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush STL file: %v", err)
	}
	return nil
}

// LoadFromSTL reads a binary STL file back into a triangle soup.
func LoadFromSTL(filename string) ([]Triangle, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open STL file: %v", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [80]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read STL header: %v", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read STL facet count: %v", err)
	}
	triangles := make([]Triangle, count)
	var attr uint16
	for i := range triangles {
		if err := binary.Read(r, binary.LittleEndian, &triangles[i]); err != nil {
			return nil, fmt.Errorf("failed to read STL facet %d: %v", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &attr); err != nil {
			return nil, fmt.Errorf("failed to read STL facet %d: %v", i, err)
		}
	}
	return triangles, nil
}
