// Package config provides configuration loading and management for tubetrace.
// It handles loading configuration from YAML files, provides default values
// and writes the effective configuration echo of a run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the run configuration. It is resolved once at startup
// and threaded unchanged through every stage call.
type Config struct {
	// Pixel holds the physical voxel size in micrometers.
	Pixel struct {
		// XY is the lateral pixel size.
		XY float64 `yaml:"xy"`

		// Z is the axial step between slices.
		Z float64 `yaml:"z"`
	} `yaml:"pixel"`

	// Scales is the Gaussian sigma sweep of the tubularity filter.
	Scales struct {
		Min   float64 `yaml:"min"`
		Max   float64 `yaml:"max"`
		Count int     `yaml:"count"`
	} `yaml:"scales"`

	// Segmentation parameters
	Segmentation struct {
		// Threshold cuts the post-divergence tubularity field.
		Threshold float64 `yaml:"threshold"`

		// AdaptiveBlocks enables per-block noise floors over an n by n
		// XY partition when positive.
		AdaptiveBlocks int `yaml:"adaptiveBlocks"`

		// ZAdaptive switches normalization and binarization to their
		// z-block-adaptive variants.
		ZAdaptive bool `yaml:"zAdaptive"`

		// ZBlockSize is the slice count per z block.
		ZBlockSize int `yaml:"zBlockSize"`

		// EnhanceConnectivity bridges weakly connected structures at
		// the voxel and graph level.
		EnhanceConnectivity bool `yaml:"enhanceConnectivity"`

		// ComponentFilter drops components below MinComponentSize when
		// the volume holds more than one.
		ComponentFilter bool `yaml:"componentFilter"`

		// MinComponentSize is the smallest voxel count a component may
		// have under ComponentFilter.
		MinComponentSize int `yaml:"minComponentSize"`

		// BinaryInput skips segmentation for already-binary volumes.
		BinaryInput bool `yaml:"binaryInput"`

		// Resample is the target axial step in micrometers; zero leaves
		// the stack untouched.
		Resample float64 `yaml:"resample"`
	} `yaml:"segmentation"`

	// Analysis parameters
	Analysis struct {
		// TubuleRadius is the fixed radius used by the volume-from-length
		// estimate, in micrometers.
		TubuleRadius float64 `yaml:"tubuleRadius"`

		// Enabled adds component bookkeeping, the per-node table and the
		// topology attributes.
		Enabled bool `yaml:"enabled"`
	} `yaml:"analysis"`

	// Output parameters
	Output struct {
		// Dir receives every produced file; empty means alongside the
		// input.
		Dir string `yaml:"dir"`

		// ScaleOutputs converts surface and skeleton coordinates to
		// micrometers before saving.
		ScaleOutputs bool `yaml:"scaleOutputs"`

		// ExportGraph writes the skeleton polydata file.
		ExportGraph bool `yaml:"exportGraph"`

		// ExportNodeLabels writes the per-node component table.
		ExportNodeLabels bool `yaml:"exportNodeLabels"`

		// ImproveSkeleton fills enclosed cavities before thinning.
		ImproveSkeleton bool `yaml:"improveSkeleton"`

		// ExportBinary writes the binary volume as a VTK file.
		ExportBinary bool `yaml:"exportBinary"`

		// CheckOnly renders the detailed projection montage from a
		// previous run instead of segmenting.
		CheckOnly bool `yaml:"checkOnly"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Scales.Min = 1.0
	cfg.Scales.Max = 1.5
	cfg.Scales.Count = 6

	cfg.Segmentation.Threshold = 0.1666667
	cfg.Segmentation.ZBlockSize = 8
	cfg.Segmentation.MinComponentSize = 5

	cfg.Analysis.TubuleRadius = 0.150

	cfg.Output.ScaleOutputs = true
	cfg.Output.ExportGraph = true
	cfg.Output.ExportNodeLabels = true
	cfg.Output.ImproveSkeleton = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate reports configurations the run cannot start with.
func (c *Config) Validate() error {
	if c.Pixel.XY <= 0 || c.Pixel.Z <= 0 {
		return fmt.Errorf("pixel sizes must be positive, use -xy and -z to provide them")
	}
	if c.Scales.Min <= 0 || c.Scales.Max < c.Scales.Min {
		return fmt.Errorf("invalid scale sweep [%g, %g]", c.Scales.Min, c.Scales.Max)
	}
	return nil
}

// Clamp forces out-of-range values back to safe minimums and returns one
// warning message per adjustment.
func (c *Config) Clamp() []string {
	var warnings []string
	if c.Segmentation.ZBlockSize < 1 {
		warnings = append(warnings,
			fmt.Sprintf("zBlockSize too small (%d), setting to minimum of 1", c.Segmentation.ZBlockSize))
		c.Segmentation.ZBlockSize = 1
	}
	if c.Segmentation.MinComponentSize < 1 {
		warnings = append(warnings,
			fmt.Sprintf("minComponentSize too small (%d), setting to minimum of 1", c.Segmentation.MinComponentSize))
		c.Segmentation.MinComponentSize = 1
	}
	if c.Scales.Count < 1 {
		warnings = append(warnings,
			fmt.Sprintf("scale count too small (%d), setting to minimum of 1", c.Scales.Count))
		c.Scales.Count = 1
	}
	return warnings
}
