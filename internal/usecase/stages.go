// Package usecase runs the pipeline stages over directories of gridded
// datasets and serves queries against the finished product.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/gws-anomaly/internal/adapter/store"
	"go.ngs.io/gws-anomaly/internal/domain"
	"go.ngs.io/gws-anomaly/internal/observability"
)

// Stage names used in logs, metrics and reports.
const (
	StageGrid         = "grid"
	StageRegrid       = "regrid"
	StageAlign        = "align"
	StageSoilMoisture = "soilmoisture"
	StageGroundwater  = "groundwater"
)

// Stages carries the collaborators shared by every pipeline stage.
type Stages struct {
	files   store.Files
	log     logrus.FieldLogger
	metrics *observability.Metrics
	workers int
}

// NewStages creates the stage runner. workers bounds per-file parallelism.
func NewStages(files store.Files, log logrus.FieldLogger, metrics *observability.Metrics, workers int) *Stages {
	if workers < 1 {
		workers = 1
	}
	return &Stages{files: files, log: log, metrics: metrics, workers: workers}
}

// timed observes the wall time of a whole stage.
func (s *Stages) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

// forEachFile runs fn for every path on up to s.workers goroutines. Fatal
// errors cancel the remaining files and are returned. Other errors skip the
// file: they are logged, counted and recorded in report.
func (s *Stages) forEachFile(ctx context.Context, stage string, paths []string, report *Report,
	fn func(ctx context.Context, i int, path string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := fn(gctx, i, path)
			switch {
			case err == nil:
				s.metrics.FilesProcessed.WithLabelValues(stage).Inc()
				return nil
			case domain.IsFatal(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			s.skip(report, stage, path, err)
			return nil
		})
	}
	return g.Wait()
}

func (s *Stages) skip(report *Report, stage, path string, err error) {
	s.log.WithFields(logrus.Fields{
		"stage": stage,
		"file":  path,
		"error": err,
	}).Warn("skipping file")
	s.metrics.FilesSkipped.WithLabelValues(stage, skipReason(err)).Inc()
	report.skip(stage, path, err)
}

func skipReason(err error) string {
	var mismatch *domain.GridMismatchError
	var noTimes *domain.TimeIntersectionEmptyError
	switch {
	case errors.As(err, &mismatch):
		return "no_overlap"
	case errors.As(err, &noTimes):
		return "no_time_overlap"
	}
	return "io"
}

// listDatasets returns the NetCDF files of dir in name order.
func listDatasets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".nc", ".nc4":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no NetCDF files in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// stem strips the directory and extension of path.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// intermediateAttrs are the global attributes of files handed between stages.
func intermediateAttrs(history string) map[string]string {
	return map[string]string{
		"Conventions": domain.Conventions,
		"history":     history + " on " + domain.Now().Format(time.RFC3339),
	}
}
