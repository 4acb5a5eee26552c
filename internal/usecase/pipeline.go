package usecase

import (
	"context"
	"fmt"
	"os"

	"go.ngs.io/gws-anomaly/internal/config"
	"go.ngs.io/gws-anomaly/internal/domain"
)

// Pipeline chains the stages in dependency order: reference grid, regrid,
// soil moisture, time alignment, groundwater.
type Pipeline struct {
	stages *Stages
	cfg    *config.Config
}

// NewPipeline binds the stages to a loaded configuration.
func NewPipeline(stages *Stages, cfg *config.Config) *Pipeline {
	return &Pipeline{stages: stages, cfg: cfg}
}

// Run executes every stage. The returned report covers the stages that ran,
// also when a fatal error stops the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	total := &Report{}

	ref, err := p.Grid()
	if err != nil {
		return total, err
	}

	steps := []func(context.Context, domain.ReferenceGrid) (*Report, error){
		p.Regrid,
		func(ctx context.Context, _ domain.ReferenceGrid) (*Report, error) { return p.SoilMoisture(ctx) },
		func(ctx context.Context, _ domain.ReferenceGrid) (*Report, error) { return p.Align(ctx) },
		func(ctx context.Context, _ domain.ReferenceGrid) (*Report, error) { return p.Groundwater(ctx) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		report, err := step(ctx, ref)
		total.Merge(report)
		if err != nil {
			return total, err
		}
	}
	total.sort()
	return total, nil
}

// Grid extracts the reference grid from the configured file.
func (p *Pipeline) Grid() (domain.ReferenceGrid, error) {
	if p.cfg.Reference.File == "" {
		return domain.ReferenceGrid{}, fmt.Errorf("reference.file is required")
	}
	return p.stages.ExtractReferenceGrid(p.cfg.Reference.File, p.cfg.Reference.Roles(), p.cfg.Reference.GridCSV)
}

// ReferenceGrid reuses the point listing of an earlier grid run when it
// exists and extracts the grid otherwise.
func (p *Pipeline) ReferenceGrid() (domain.ReferenceGrid, error) {
	if path := p.cfg.Reference.GridCSV; path != "" {
		if _, err := os.Stat(path); err == nil {
			return p.stages.LoadReferenceGrid(path)
		}
	}
	return p.Grid()
}

// Regrid resamples the gravimetry files onto ref.
func (p *Pipeline) Regrid(ctx context.Context, ref domain.ReferenceGrid) (*Report, error) {
	g := p.cfg.Gravimetry
	return p.stages.RegridDirectory(ctx, RegridRequest{
		Reference: ref.Grid,
		InputDir:  g.InputDir,
		OutputDir: g.ResampledDir,
		Variable:  g.Variable,
		Roles:     g.Roles(),
	})
}

// SoilMoisture sums the soil layers into the total column file.
func (p *Pipeline) SoilMoisture(ctx context.Context) (*Report, error) {
	l := p.cfg.Landsurface
	return p.stages.TotalSoilMoisture(ctx, SoilMoistureRequest{
		InputDir: l.SoilLayerDir,
		Layers:   l.SoilLayers,
		Output:   l.SoilOutput,
		Roles:    p.cfg.Reference.Roles(),
	})
}

// Align restricts the landsurface files to the regridded gravimetry times.
func (p *Pipeline) Align(ctx context.Context) (*Report, error) {
	l := p.cfg.Landsurface
	return p.stages.AlignDirectory(ctx, AlignRequest{
		ReferenceDir: p.cfg.Gravimetry.ResampledDir,
		TargetDir:    l.ProcessedDir,
		OutputDir:    l.AlignedDir,
		Variables:    l.Components,
		Roles:        p.cfg.Reference.Roles(),
	})
}

// Groundwater combines the aligned components with the regridded total.
func (p *Pipeline) Groundwater(ctx context.Context) (*Report, error) {
	return p.stages.ComputeGroundwater(ctx, GroundwaterRequest{
		TotalDir:         p.cfg.Gravimetry.ResampledDir,
		TotalVariable:    p.cfg.Gravimetry.Variable,
		Rebaseline:       p.cfg.Gravimetry.Rebaseline,
		ComponentSources: []string{p.cfg.Landsurface.AlignedDir},
		Components:       p.cfg.Landsurface.Components,
		Baseline:         p.cfg.Period,
		OutputDir:        p.cfg.Output.Dir,
		FileName:         p.cfg.Output.FileName,
		SplitByYear:      p.cfg.Output.SplitByYear,
		Institution:      p.cfg.Output.Institution,
	})
}
