package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/adapter/interp"
	"go.ngs.io/gws-anomaly/internal/domain"
)

// RegridRequest describes one regridding pass over a directory.
type RegridRequest struct {
	Reference domain.Grid
	InputDir  string
	OutputDir string
	Variable  string
	Roles     domain.CoordinateRoles
}

// RegridDirectory resamples Variable of every file in InputDir onto the
// reference grid, writing <name>_resampled.nc into OutputDir. A file whose
// grid misses the reference entirely is still written, all missing, and
// counted as a grid mismatch.
func (s *Stages) RegridDirectory(ctx context.Context, req RegridRequest) (*Report, error) {
	report := &Report{}
	err := s.timed(StageRegrid, func() error {
		paths, err := listDatasets(req.InputDir)
		if err != nil {
			return err
		}
		return s.forEachFile(ctx, StageRegrid, paths, report, func(_ context.Context, _ int, path string) error {
			return s.regridFile(req, path, report)
		})
	})
	report.sort()
	if err != nil {
		return report, fmt.Errorf("regrid: %w", err)
	}
	return report, nil
}

func (s *Stages) regridFile(req RegridRequest, path string, report *Report) error {
	fields, err := s.files.ReadFields(path, []string{req.Variable}, req.Roles)
	if err != nil {
		return err
	}

	out, err := interp.Regrid(fields[0], req.Reference)
	var mismatch *domain.GridMismatchError
	switch {
	case errors.As(err, &mismatch):
		s.metrics.GridMismatches.Inc()
		s.log.WithFields(logrus.Fields{
			"stage": StageRegrid,
			"file":  path,
			"error": err,
		}).Warn("source grid does not overlap reference grid, writing missing values")
	case err != nil:
		return err
	}

	outPath := filepath.Join(req.OutputDir, stem(path)+"_resampled.nc")
	attrs := intermediateAttrs(fmt.Sprintf("Regridded %s from %s", req.Variable, filepath.Base(path)))
	if err := s.files.WriteFields(outPath, attrs, out); err != nil {
		return err
	}
	report.wrote(outPath)
	s.log.WithFields(logrus.Fields{
		"stage": StageRegrid,
		"file":  path,
		"out":   outPath,
		"steps": len(out.Times),
	}).Debug("regridded")
	return nil
}
