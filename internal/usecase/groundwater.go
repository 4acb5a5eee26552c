package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/adapter/interp"
	"go.ngs.io/gws-anomaly/internal/domain"
)

// GroundwaterRequest describes the final water-balance product.
type GroundwaterRequest struct {
	// TotalDir holds the regridded total water storage files.
	TotalDir      string
	TotalVariable string
	// Rebaseline recomputes the total storage anomaly over Baseline.
	Rebaseline bool

	// ComponentSources are files or directories searched for Components.
	ComponentSources []string
	Components       []string

	Baseline    domain.BaselinePeriod
	OutputDir   string
	FileName    string
	SplitByYear bool
	Institution string
}

// ComputeGroundwater subtracts the monthly anomalies of every component from
// the total storage anomaly and writes the result in centimeters, either as
// <FileName>.nc or as one <FileName>_<year>.nc per calendar year.
func (s *Stages) ComputeGroundwater(ctx context.Context, req GroundwaterRequest) (*Report, error) {
	report := &Report{}
	err := s.timed(StageGroundwater, func() error {
		gws, err := s.groundwater(ctx, req, report)
		if err != nil {
			return err
		}
		return s.writeProduct(req, gws, report)
	})
	report.sort()
	if err != nil {
		return report, fmt.Errorf("groundwater: %w", err)
	}
	return report, nil
}

func (s *Stages) groundwater(ctx context.Context, req GroundwaterRequest, report *Report) (domain.Field, error) {
	total, err := s.readSeries(ctx, req.TotalDir, req.TotalVariable, report)
	if err != nil {
		return domain.Field{}, err
	}
	total = interp.NormalizeField(total)
	if req.Rebaseline {
		if total, err = domain.MonthlyAnomaly(total, req.Baseline); err != nil {
			return domain.Field{}, err
		}
	}

	components, err := s.readComponents(req.ComponentSources, req.Components, report)
	if err != nil {
		return domain.Field{}, err
	}
	anomalies := make([]domain.Field, len(components))
	for i, c := range components {
		anom, err := domain.MonthlyAnomaly(interp.NormalizeField(c), req.Baseline)
		if err != nil {
			return domain.Field{}, err
		}
		anomalies[i], err = domain.RestrictToTimes(anom, total.Times)
		var noTimes *domain.TimeIntersectionEmptyError
		switch {
		case errors.As(err, &noTimes):
			// Combine marks every total step missing.
			s.log.WithFields(logrus.Fields{
				"stage":     StageGroundwater,
				"component": c.Name,
			}).Warn("component shares no time step with total storage")
			anomalies[i] = anom
		case err != nil:
			return domain.Field{}, err
		}
		s.log.WithFields(logrus.Fields{
			"stage":     StageGroundwater,
			"component": c.Name,
			"steps":     len(anomalies[i].Times),
			"of":        len(total.Times),
		}).Info("component anomaly computed")
	}

	gws, err := domain.Combine(total, anomalies...)
	if err != nil {
		return domain.Field{}, err
	}
	return gws, nil
}

// readSeries concatenates variable across every dataset of dir.
func (s *Stages) readSeries(ctx context.Context, dir, variable string, report *Report) (domain.Field, error) {
	paths, err := listDatasets(dir)
	if err != nil {
		return domain.Field{}, err
	}
	parts := make([]domain.Field, len(paths))
	ok := make([]bool, len(paths))
	err = s.forEachFile(ctx, StageGroundwater, paths, report, func(_ context.Context, i int, path string) error {
		fields, err := s.files.ReadFields(path, []string{variable}, domain.CoordinateRoles{})
		if err != nil {
			return err
		}
		parts[i], ok[i] = fields[0], true
		return nil
	})
	if err != nil {
		return domain.Field{}, err
	}
	var read []domain.Field
	for i := range parts {
		if ok[i] {
			read = append(read, parts[i])
		}
	}
	if len(read) == 0 {
		return domain.Field{}, fmt.Errorf("no readable %s files in %s", variable, dir)
	}
	return domain.ConcatTime(read...)
}

// readComponents finds each component variable among sources and joins its
// files along time. Components found nowhere are reported together.
func (s *Stages) readComponents(sources, components []string, report *Report) ([]domain.Field, error) {
	paths, err := expandSources(sources)
	if err != nil {
		return nil, err
	}

	found := make(map[string][]domain.Field, len(components))
	for _, path := range paths {
		available, err := s.files.ListVariables(path)
		if err != nil {
			s.skip(report, StageGroundwater, path, err)
			continue
		}
		wanted := present(components, available)
		if len(wanted) == 0 {
			continue
		}
		fields, err := s.files.ReadFields(path, wanted, domain.CoordinateRoles{})
		if err != nil {
			if domain.IsFatal(err) {
				return nil, err
			}
			s.skip(report, StageGroundwater, path, err)
			continue
		}
		for _, f := range fields {
			found[f.Name] = append(found[f.Name], f)
		}
	}

	var missing []string
	for _, name := range components {
		if len(found[name]) == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Source: strings.Join(sources, ", "), Missing: missing}
	}

	out := make([]domain.Field, len(components))
	for i, name := range components {
		if out[i], err = domain.ConcatTime(found[name]...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// expandSources lists the datasets of every directory and keeps plain files.
func expandSources(sources []string) ([]string, error) {
	var paths []string
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("component source: %w", err)
		}
		if !info.IsDir() {
			paths = append(paths, src)
			continue
		}
		listed, err := listDatasets(src)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}
	return paths, nil
}

func (s *Stages) writeProduct(req GroundwaterRequest, gws domain.Field, report *Report) error {
	prov := domain.NewProvenance(req.Institution, "GRACE "+req.TotalVariable, req.Components, req.Baseline)
	gws = prov.Annotate(gws)
	global := prov.GlobalAttrs()

	if !req.SplitByYear {
		path := filepath.Join(req.OutputDir, req.FileName+".nc")
		if err := s.files.WriteFields(path, global, gws); err != nil {
			return err
		}
		report.wrote(path)
		s.logProduct(path, gws)
		return nil
	}

	byYear := domain.SplitByYear(gws)
	for _, year := range domain.Years(gws) {
		path := filepath.Join(req.OutputDir, fmt.Sprintf("%s_%d.nc", req.FileName, year))
		if err := s.files.WriteFields(path, global, byYear[year]); err != nil {
			return err
		}
		report.wrote(path)
		s.logProduct(path, byYear[year])
	}
	return nil
}

func (s *Stages) logProduct(path string, f domain.Field) {
	s.log.WithFields(logrus.Fields{
		"stage": StageGroundwater,
		"out":   path,
		"steps": len(f.Times),
		"valid": f.ValidCount(),
	}).Info("groundwater anomaly saved")
}
