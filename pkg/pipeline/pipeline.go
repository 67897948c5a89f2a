// Package pipeline chains the processing stages of a run: volume loading,
// normalization, tubularity segmentation, surface and skeleton extraction,
// and attribute reporting, one dataset at a time.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"tubetrace/pkg/analysis"
	"tubetrace/pkg/binarize"
	"tubetrace/pkg/components"
	"tubetrace/pkg/config"
	"tubetrace/pkg/enhance"
	"tubetrace/pkg/imgio"
	"tubetrace/pkg/mesh"
	"tubetrace/pkg/normalize"
	"tubetrace/pkg/resample"
	"tubetrace/pkg/skeleton"
	"tubetrace/pkg/vesselness"
	"tubetrace/pkg/visualization"
	"tubetrace/pkg/voxel"
)

// Pipeline runs the processing stages over one dataset at a time. All
// stages execute synchronously in a fixed order; the only state carried
// between datasets is the configuration and the logger.
type Pipeline struct {
	cfg *config.Config
	log zerolog.Logger
}

// New returns a pipeline bound to a resolved configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: logger}
}

// Process runs every stage for one dataset and writes its output files.
// In check-only mode it renders the detailed montage from the outputs of a
// previous run instead.
func (p *Pipeline) Process(d imgio.Dataset) error {
	if p.cfg.Output.CheckOnly {
		return p.check(d)
	}

	p.log.Info().Str("dataset", d.Name).Msg("loading volume")
	raw, origin, depth, err := p.load(d)
	if err != nil {
		return err
	}
	p.log.Debug().
		Int("x", raw.Dims.X).Int("y", raw.Dims.Y).Int("z", raw.Dims.Z).
		Int("bitDepth", depth).
		Msg("volume loaded")

	norm, err := p.normalized(raw, depth)
	if err != nil {
		return err
	}

	var binary *voxel.Grid
	var tris []mesh.Triangle
	if p.cfg.Segmentation.BinaryInput {
		binary = norm.Clone()
		tris = mesh.FromGrid(binary, 0.5)
	} else {
		enhanced := p.segment(norm)
		binary, err = p.binarized(d, enhanced)
		if err != nil {
			return err
		}
		tris = mesh.FromGrid(enhanced, p.cfg.Segmentation.Threshold)
	}

	scaleSpacing, scaleOrigin := p.outputTransform(raw.Spacing, origin)
	surface := mesh.Scale(tris, scaleSpacing, scaleOrigin)
	p.log.Info().Int("triangles", len(surface)).Msg("saving surface mesh")
	if err := mesh.SaveToSTL(p.outPath(d, "_surface.stl"), surface); err != nil {
		return err
	}

	var ccLabels *components.Labeling
	if p.cfg.Analysis.Enabled {
		ccLabels = components.Label(binary, voxel.Conn26, 0)
		p.log.Debug().Int("components", ccLabels.Count()).Msg("labeled binary volume")
	}

	graph := skeleton.Thin(binary).Clean()
	if p.cfg.Segmentation.EnhanceConnectivity {
		gap := 3.0 * raw.Spacing.XY
		if p.cfg.Segmentation.Threshold < 0.1 {
			gap = 5.0 * raw.Spacing.XY
		}
		graph = skeleton.Fragments(graph, gap).Clean()
	}
	p.log.Info().
		Int("points", len(graph.Points)).Int("edges", len(graph.Edges)).
		Msg("skeleton extracted")

	// The node table keeps voxel coordinates, so it is written before the
	// graph is scaled.
	if p.cfg.Analysis.Enabled && p.cfg.Output.ExportNodeLabels {
		if err := analysis.WriteNodesTable(p.outPath(d, ".nodes.txt"), graph, ccLabels, binary); err != nil {
			return err
		}
	}
	graph.Scale(scaleSpacing, scaleOrigin)

	report := analysis.Width(graph, mesh.Vertices(surface), nil)
	analysis.Length(graph)

	// Intensity lookups map the scaled points back to voxel indices by
	// spacing alone; the origin shift is not undone.
	img := *raw
	img.Spacing = scaleSpacing
	analysis.Intensity(graph, &img)

	if err := analysis.WritePointsTable(p.outPath(d, ".points.txt"), graph); err != nil {
		return err
	}

	frustum, report := analysis.VolumeFromSkeleton(graph, p.cfg.Analysis.TubuleRadius, report)
	p.log.Debug().Float64("frustumVolume", frustum).Msg("width-corrected volume estimate")
	if p.cfg.Analysis.Enabled {
		report = analysis.Topology(graph, report)
	}

	if p.cfg.Output.ExportGraph {
		err := imgio.SaveSkeletonVTK(p.outPath(d, "_skeleton.vtk"), graph,
			analysis.WidthLayer, analysis.IntensityLayer, analysis.LengthLayer, skeleton.NodeLayer)
		if err != nil {
			return err
		}
	}

	return analysis.WriteSummary(p.outPath(d, ".summary.txt"), report)
}

// load reads the dataset, optionally resamples the axial step of a slice
// stack, and shifts the grid origin to zero, keeping the recorded offset
// for output scaling.
func (p *Pipeline) load(d imgio.Dataset) (*voxel.Grid, voxel.Origin, int, error) {
	spacing := voxel.Spacing{XY: p.cfg.Pixel.XY, Z: p.cfg.Pixel.Z}
	g, depth, err := imgio.LoadVolume(d, spacing)
	if err != nil {
		return nil, voxel.Origin{}, 0, fmt.Errorf("failed to load %s: %w", d.Name, err)
	}
	if target := p.cfg.Segmentation.Resample; target > 0 && d.Kind == imgio.SliceDir {
		g = resample.Axial(g, target/spacing.XY)
		g.Spacing.Z = g.Spacing.XY
		p.log.Debug().Int("slices", g.Dims.Z).Msg("resampled axial step")
	}
	origin := g.Origin
	g.Origin = voxel.Origin{}
	return g, origin, depth, nil
}

// normalized compresses the raw grid to the 0-255 range the segmentation
// stages work on, using the gentle z-adaptive policy when configured.
func (p *Pipeline) normalized(raw *voxel.Grid, depth int) (*voxel.Grid, error) {
	policy := normalize.GlobalLinear
	if p.cfg.Segmentation.ZAdaptive {
		policy = normalize.Gentle
	}
	norm, err := normalize.Apply(raw, depth, policy, p.cfg.Segmentation.ZBlockSize)
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedDepth) {
			return nil, fmt.Errorf("%w: %v", imgio.ErrUnsupportedFormat, err)
		}
		return nil, err
	}
	return norm, nil
}

// segment turns the normalized grid into the refined tubularity field:
// multiscale vesselness, divergence refinement, boundary clearing, and the
// optional component filter and connectivity enhancement.
func (p *Pipeline) segment(norm *voxel.Grid) *voxel.Grid {
	cfg := p.cfg.Segmentation
	params := vesselness.Params{
		ScaleMin:       p.cfg.Scales.Min,
		ScaleMax:       p.cfg.Scales.Max,
		ScaleCount:     p.cfg.Scales.Count,
		AdaptiveBlocks: cfg.AdaptiveBlocks,
	}
	p.log.Info().
		Float64("scaleMin", params.ScaleMin).Float64("scaleMax", params.ScaleMax).
		Int("scaleCount", params.ScaleCount).
		Msg("computing multiscale vesselness")

	enhanced := vesselness.ClearBoundaries(vesselness.Divergence(vesselness.Multiscale(norm, params)))

	labeling := components.Label(enhanced, voxel.Conn6, cfg.Threshold)
	if labeling.Count() > 1 && cfg.ComponentFilter {
		p.log.Debug().
			Int("components", labeling.Count()).Int("minSize", cfg.MinComponentSize).
			Msg("filtering small components")
		enhanced = components.Filter(enhanced, labeling, int64(cfg.MinComponentSize))
	}

	if cfg.EnhanceConnectivity {
		strength := 1.5
		if cfg.Threshold < 0.1 {
			strength = 2.0
		}
		enhanced = enhance.Field(enhanced, strength)
	}
	return enhanced
}

// binarized cuts the refined field into the binary volume, fills enclosed
// cavities, and writes the binary export and the max projection.
func (p *Pipeline) binarized(d imgio.Dataset, enhanced *voxel.Grid) (*voxel.Grid, error) {
	cfg := p.cfg.Segmentation
	var binary *voxel.Grid
	if cfg.ZAdaptive {
		binary = binarize.Conservative(enhanced, cfg.Threshold, cfg.ZBlockSize)
	} else {
		binary = binarize.Fixed(enhanced, cfg.Threshold)
	}
	if p.cfg.Output.ImproveSkeleton {
		binary = components.FillHoles(binary)
	}
	if p.cfg.Output.ExportBinary {
		if err := imgio.SaveVTK(p.outPath(d, "_binary.vtk"), binary); err != nil {
			return nil, err
		}
	}
	if err := visualization.SavePNG(p.outPath(d, ".png"), visualization.MaxProjection(binary)); err != nil {
		return nil, err
	}
	return binary, nil
}

// check re-reads the surface and skeleton saved by a previous run and
// renders the detailed projection montage next to them.
func (p *Pipeline) check(d imgio.Dataset) error {
	p.log.Info().Str("dataset", d.Name).Msg("rendering detailed projection")
	raw, _, depth, err := p.load(d)
	if err != nil {
		return err
	}
	norm, err := normalize.Apply(raw, depth, normalize.GlobalLinear, p.cfg.Segmentation.ZBlockSize)
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedDepth) {
			return fmt.Errorf("%w: %v", imgio.ErrUnsupportedFormat, err)
		}
		return err
	}
	tris, err := mesh.LoadFromSTL(p.outPath(d, "_surface.stl"))
	if err != nil {
		return fmt.Errorf("%w: %v", imgio.ErrUnreadableInput, err)
	}
	graph, err := imgio.LoadSkeletonVTK(p.outPath(d, "_skeleton.vtk"))
	if err != nil {
		return err
	}

	spacing, _ := p.outputTransform(norm.Spacing, voxel.Origin{})
	m := visualization.Montage{
		Image:    norm,
		Surface:  mesh.Vertices(tris),
		Skeleton: graph,
		Spacing:  spacing,
	}
	return visualization.SavePNG(p.outPath(d, "_detailed.png"), m.Render())
}

// outputTransform is the voxel-to-physical map applied to saved surfaces
// and skeletons. With output scaling off the artifacts stay in voxel
// coordinates, so the map collapses to unit spacing and zero origin.
func (p *Pipeline) outputTransform(spacing voxel.Spacing, origin voxel.Origin) (voxel.Spacing, voxel.Origin) {
	if !p.cfg.Output.ScaleOutputs {
		return voxel.Spacing{XY: 1, Z: 1}, voxel.Origin{}
	}
	return spacing, origin
}

// outPath names an output artifact of the dataset, in the configured
// output directory or next to the input when none is set.
func (p *Pipeline) outPath(d imgio.Dataset, suffix string) string {
	dir := p.cfg.Output.Dir
	if dir == "" {
		dir = filepath.Dir(d.Path)
	}
	return filepath.Join(dir, d.Name+suffix)
}
