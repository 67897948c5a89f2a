package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"tubetrace/pkg/config"
	"tubetrace/pkg/imgio"
	"tubetrace/pkg/pipeline"
)

// scaleSweep parses the -scales triple: minimum sigma, maximum sigma and
// the number of evenly spaced scales, e.g. "1.0 1.5 6".
type scaleSweep struct {
	min, max float64
	count    int
}

func (s *scaleSweep) String() string {
	return fmt.Sprintf("%g %g %d", s.min, s.max, s.count)
}

func (s *scaleSweep) Set(v string) error {
	fields := strings.Fields(strings.ReplaceAll(v, ",", " "))
	if len(fields) != 3 {
		return fmt.Errorf("expected \"min max count\", got %q", v)
	}
	var err error
	if s.min, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return err
	}
	if s.max, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return err
	}
	s.count, err = strconv.Atoi(fields[2])
	return err
}

func main() {
	path := flag.String("path", "", "Input volume file or folder of datasets")
	xy := flag.Float64("xy", 0, "Lateral pixel size in micrometers (required)")
	zStep := flag.Float64("z", 0, "Axial step between slices in micrometers (required)")
	rad := flag.Float64("rad", 0.150, "Fixed tubule radius in micrometers")
	sweep := &scaleSweep{min: 1.0, max: 1.5, count: 6}
	flag.Var(sweep, "scales", "Sigma sweep as \"min max count\"")
	threshold := flag.Float64("threshold", 0.1666667, "Post-divergence binarization threshold")
	adaptive := flag.Int("adaptive", 0, "Block-adaptive noise floor over an n x n partition (0 disables)")
	zAdaptive := flag.Bool("z-adaptive", false, "Z-adaptive normalization and binarization")
	zBlockSize := flag.Int("z-block-size", 8, "Slice count per z block")
	enhance := flag.Bool("enhance-connectivity", false, "Bridge weakly connected structures before and after thinning")
	componentFilter := flag.Int("component-filter", 0, "Drop components below n voxels (0 disables)")
	resampleStep := flag.Float64("resample", 0, "Resample slice stacks to this axial step in micrometers (0 disables)")
	binaryInput := flag.Bool("binary", false, "Input volumes are already binary")
	analyze := flag.Bool("analyze", false, "Component bookkeeping, per-node table and topology attributes")
	scaleOff := flag.Bool("scale-off", false, "Keep voxel units in saved surfaces and skeletons")
	graphOff := flag.Bool("graph-off", false, "Skip the skeleton polydata export")
	labelsOff := flag.Bool("labels-off", false, "Skip the per-node component table")
	precisionOff := flag.Bool("precision-off", false, "Skip hole filling before thinning")
	exportBinary := flag.Bool("export-binary", false, "Export the binary volume as VTK")
	check := flag.Bool("check", false, "Render the detailed montage from a previous run instead of segmenting")
	out := flag.String("out", "", "Output directory (default: alongside each input)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.Pixel.XY = *xy
	cfg.Pixel.Z = *zStep
	cfg.Scales.Min = sweep.min
	cfg.Scales.Max = sweep.max
	cfg.Scales.Count = sweep.count
	cfg.Segmentation.Threshold = *threshold
	cfg.Segmentation.AdaptiveBlocks = *adaptive
	cfg.Segmentation.ZAdaptive = *zAdaptive
	cfg.Segmentation.ZBlockSize = *zBlockSize
	cfg.Segmentation.EnhanceConnectivity = *enhance
	if *componentFilter != 0 {
		cfg.Segmentation.ComponentFilter = true
		cfg.Segmentation.MinComponentSize = *componentFilter
	}
	cfg.Segmentation.Resample = *resampleStep
	cfg.Segmentation.BinaryInput = *binaryInput
	cfg.Analysis.TubuleRadius = *rad
	cfg.Analysis.Enabled = *analyze
	cfg.Output.Dir = *out
	cfg.Output.ScaleOutputs = !*scaleOff
	cfg.Output.ExportGraph = !*graphOff
	cfg.Output.ExportNodeLabels = !*labelsOff
	cfg.Output.ImproveSkeleton = !*precisionOff
	cfg.Output.ExportBinary = *exportBinary
	cfg.Output.CheckOnly = *check
	cfg.Output.Verbose = *verbose

	for _, warning := range cfg.Clamp() {
		logger.Warn().Msg(warning)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		flag.Usage()
		os.Exit(1)
	}

	datasets, err := imgio.Discover(*path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *path).Msg("no datasets found")
	}

	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.Output.Dir).Msg("cannot create output directory")
		}
	}
	if !cfg.Output.CheckOnly {
		if err := config.SaveConfig(cfg, filepath.Join(echoDir(cfg, *path), "tubetrace.config.yaml")); err != nil {
			logger.Warn().Err(err).Msg("could not write configuration echo")
		}
	}

	logger.Info().Int("datasets", len(datasets)).Msg("starting run")
	p := pipeline.New(cfg, logger)
	failed := 0
	for _, d := range datasets {
		if err := p.Process(d); err != nil {
			failed++
			logger.Error().Err(err).Str("dataset", d.Name).Msg("dataset failed")
			continue
		}
		logger.Info().Str("dataset", d.Name).Msg("dataset finished")
	}

	logger.Info().Int("processed", len(datasets)-failed).Int("failed", failed).Msg("run complete")
	if failed > 0 {
		os.Exit(1)
	}
}

// echoDir is where the effective configuration is echoed: the output
// directory when one is set, otherwise next to the input.
func echoDir(cfg *config.Config, path string) string {
	if cfg.Output.Dir != "" {
		return cfg.Output.Dir
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}
