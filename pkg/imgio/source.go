// Package imgio loads and saves the volume formats the pipeline consumes:
// directories of numbered grayscale slices, single-plane TIFF or PNG images
// and legacy VTK structured-points volumes.
package imgio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the supported dataset layouts.
type Kind int

const (
	// SliceDir is a directory of numbered single-plane grayscale images,
	// stacked in ascending numeric order.
	SliceDir Kind = iota

	// PlanarImage is a one-page grayscale TIFF or PNG, embedded into a
	// thin synthetic stack on load.
	PlanarImage

	// VTKVolume is a legacy VTK STRUCTURED_POINTS scalar volume.
	VTKVolume
)

// Dataset is one input volume resolved from a command line path.
type Dataset struct {
	// Path is the file or directory holding the pixel data.
	Path string

	// Name is the dataset basename without extension, used as the prefix
	// for every output file.
	Name string

	Kind Kind
}

var (
	// ErrUnreadableInput flags a dataset that cannot be opened or decoded.
	ErrUnreadableInput = errors.New("unreadable input")

	// ErrUnsupportedFormat flags pixel data the loaders cannot interpret.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Resolve classifies a single input path as one dataset.
func Resolve(path string) (Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}

	if info.IsDir() {
		if !hasSliceImages(path) {
			return Dataset{}, fmt.Errorf("%w: no slice images in %s", ErrUnreadableInput, path)
		}
		return Dataset{Path: path, Name: filepath.Base(path), Kind: SliceDir}, nil
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff", ".png":
		return Dataset{Path: path, Name: name, Kind: PlanarImage}, nil
	case ".vtk":
		return Dataset{Path: path, Name: name, Kind: VTKVolume}, nil
	}
	return Dataset{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Discover expands a path into the datasets it holds. A file resolves to a
// single dataset. A directory yields one dataset per contained image file,
// per .vtk volume and per immediate subdirectory holding slice images.
func Discover(root string) ([]Dataset, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}

	if !info.IsDir() {
		d, err := Resolve(root)
		if err != nil {
			return nil, err
		}
		return []Dataset{d}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}

	var list []Dataset
	for _, entry := range entries {
		full := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			if hasSliceImages(full) {
				list = append(list, Dataset{Path: full, Name: entry.Name(), Kind: SliceDir})
			}
			continue
		}
		if d, err := Resolve(full); err == nil {
			list = append(list, d)
		}
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no datasets under %s", ErrUnreadableInput, root)
	}
	return list, nil
}

// hasSliceImages reports whether dir directly contains at least one
// decodable slice image.
func hasSliceImages(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".tif", ".tiff", ".png":
			return true
		}
	}
	return false
}

// sliceFiles lists the image files of a slice directory in ascending
// numeric order of the numbers embedded in their names.
func sliceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".tif", ".tiff", ".png":
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no slice images in %s", ErrUnreadableInput, dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})
	return files, nil
}

// extractNumber pulls the digits out of a filename so slices sort by their
// sequence number rather than lexically.
func extractNumber(filename string) int {
	numStr := ""
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}
	if numStr != "" {
		if num, err := strconv.Atoi(numStr); err == nil {
			return num
		}
	}
	return 0
}
