package usecase

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// TotalSoilMoistureVariable is the summed soil moisture column.
const TotalSoilMoistureVariable = "TotalSoilMoisture_0_200cm"

// SoilMoistureRequest describes the soil column summation.
type SoilMoistureRequest struct {
	InputDir string
	Layers   []string
	Output   string
	Roles    domain.CoordinateRoles
}

// TotalSoilMoisture concatenates every file of InputDir along time and sums
// the layer variables into TotalSoilMoistureVariable. A file lacking any
// layer fails the stage with a schema error naming all of them.
func (s *Stages) TotalSoilMoisture(ctx context.Context, req SoilMoistureRequest) (*Report, error) {
	report := &Report{}
	err := s.timed(StageSoilMoisture, func() error {
		if len(req.Layers) == 0 {
			return fmt.Errorf("no soil layers configured")
		}
		paths, err := listDatasets(req.InputDir)
		if err != nil {
			return err
		}

		perFile := make([][]domain.Field, len(paths))
		err = s.forEachFile(ctx, StageSoilMoisture, paths, report, func(_ context.Context, i int, path string) error {
			fields, err := s.files.ReadFields(path, req.Layers, req.Roles)
			if err != nil {
				return err
			}
			perFile[i] = fields
			return nil
		})
		if err != nil {
			return err
		}

		total, err := sumSoilLayers(req.Layers, perFile)
		if err != nil {
			return err
		}
		attrs := intermediateAttrs(fmt.Sprintf("Summed %d soil layers from %s", len(req.Layers), filepath.Base(req.InputDir)))
		if err := s.files.WriteFields(req.Output, attrs, total); err != nil {
			return err
		}
		report.wrote(req.Output)
		s.log.WithFields(logrus.Fields{
			"stage": StageSoilMoisture,
			"out":   req.Output,
			"steps": len(total.Times),
		}).Info("total soil moisture saved")
		return nil
	})
	report.sort()
	if err != nil {
		return report, fmt.Errorf("soil moisture: %w", err)
	}
	return report, nil
}

// sumSoilLayers concatenates each layer across files, then adds the layers.
// perFile entries of skipped files are nil.
func sumSoilLayers(layers []string, perFile [][]domain.Field) (domain.Field, error) {
	series := make([][]domain.Field, len(layers))
	for _, fields := range perFile {
		for l := range fields {
			series[l] = append(series[l], fields[l])
		}
	}
	if len(series[0]) == 0 {
		return domain.Field{}, fmt.Errorf("no readable soil moisture files")
	}

	columns := make([]domain.Field, len(layers))
	for l, parts := range series {
		col, err := domain.ConcatTime(parts...)
		if err != nil {
			return domain.Field{}, err
		}
		columns[l] = col
	}
	total, err := domain.SumLayers(TotalSoilMoistureVariable, columns...)
	if err != nil {
		return domain.Field{}, err
	}
	if total.Units == "" {
		total.Units = "kg m-2"
	}
	total.LongName = "Total Soil Moisture (0-200 cm)"
	return total, nil
}
