package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// AlignRequest describes one time-alignment pass.
type AlignRequest struct {
	// ReferenceDir holds the datasets whose pooled time steps define the
	// reference set.
	ReferenceDir string
	TargetDir    string
	OutputDir    string
	// Variables are carried over from each target file when present.
	Variables []string
	Roles     domain.CoordinateRoles
}

// ReferenceTimes pools the time axes of every dataset in dir. Unreadable
// files are skipped and recorded in report.
func (s *Stages) ReferenceTimes(ctx context.Context, dir string, report *Report) ([]time.Time, error) {
	paths, err := listDatasets(dir)
	if err != nil {
		return nil, err
	}
	axes := make([][]time.Time, len(paths))
	err = s.forEachFile(ctx, StageAlign, paths, report, func(_ context.Context, i int, path string) error {
		times, err := s.files.ReadTimes(path)
		if err != nil {
			return err
		}
		axes[i] = times
		return nil
	})
	if err != nil {
		return nil, err
	}
	pool := domain.PoolTimes(axes...)
	if len(pool) == 0 {
		return nil, fmt.Errorf("no reference time steps in %s", dir)
	}
	return pool, nil
}

// AlignDirectory restricts every dataset in TargetDir to the time steps
// pooled from ReferenceDir and writes the result under the same name in
// OutputDir. A file sharing no time step with the pool is skipped.
func (s *Stages) AlignDirectory(ctx context.Context, req AlignRequest) (*Report, error) {
	report := &Report{}
	err := s.timed(StageAlign, func() error {
		pool, err := s.ReferenceTimes(ctx, req.ReferenceDir, report)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"stage": StageAlign,
			"dir":   req.ReferenceDir,
			"steps": len(pool),
		}).Info("reference times pooled")

		paths, err := listDatasets(req.TargetDir)
		if err != nil {
			return err
		}
		return s.forEachFile(ctx, StageAlign, paths, report, func(_ context.Context, _ int, path string) error {
			return s.alignFile(req, pool, path, report)
		})
	})
	report.sort()
	if err != nil {
		return report, fmt.Errorf("align: %w", err)
	}
	return report, nil
}

func (s *Stages) alignFile(req AlignRequest, pool []time.Time, path string, report *Report) error {
	available, err := s.files.ListVariables(path)
	if err != nil {
		return err
	}
	variables := present(req.Variables, available)
	if len(variables) == 0 {
		return fmt.Errorf("none of %v present", req.Variables)
	}

	fields, err := s.files.ReadFields(path, variables, req.Roles)
	if err != nil {
		return err
	}
	aligned := make([]domain.Field, len(fields))
	for i, f := range fields {
		if aligned[i], err = domain.RestrictToTimes(f, pool); err != nil {
			return err
		}
	}

	outPath := filepath.Join(req.OutputDir, stem(path)+".nc")
	attrs := intermediateAttrs("Restricted " + filepath.Base(path) + " to reference times")
	if err := s.files.WriteFields(outPath, attrs, aligned...); err != nil {
		return err
	}
	report.wrote(outPath)
	s.log.WithFields(logrus.Fields{
		"stage":     StageAlign,
		"file":      path,
		"variables": variables,
		"steps":     len(aligned[0].Times),
	}).Info("saved time-filtered data")
	return nil
}

// present keeps the wanted names found in available, in wanted order.
func present(wanted, available []string) []string {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}
	var out []string
	for _, name := range wanted {
		if have[name] {
			out = append(out, name)
		}
	}
	return out
}
