package usecase

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/adapter/store/csv"
	"go.ngs.io/gws-anomaly/internal/domain"
)

// ExtractReferenceGrid derives the canonical grid from refFile and, when
// csvPath is set, writes its row-major point listing there.
func (s *Stages) ExtractReferenceGrid(refFile string, roles domain.CoordinateRoles, csvPath string) (domain.ReferenceGrid, error) {
	var ref domain.ReferenceGrid
	err := s.timed(StageGrid, func() error {
		var err error
		ref, err = s.files.ReadGrid(refFile, roles)
		if err != nil {
			return fmt.Errorf("reference grid from %s: %w", refFile, err)
		}
		if csvPath != "" {
			if err := csv.WriteReferenceGrid(csvPath, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.ReferenceGrid{}, err
	}

	nLat, nLon := ref.Grid.Shape()
	s.metrics.FilesProcessed.WithLabelValues(StageGrid).Inc()
	s.log.WithFields(logrus.Fields{
		"stage":  StageGrid,
		"file":   refFile,
		"lat":    nLat,
		"lon":    nLon,
		"points": len(ref.Points),
		"csv":    csvPath,
	}).Info("reference grid extracted")
	return ref, nil
}

// LoadReferenceGrid reads a grid listing written by ExtractReferenceGrid.
func (s *Stages) LoadReferenceGrid(csvPath string) (domain.ReferenceGrid, error) {
	ref, err := csv.ReadReferenceGrid(csvPath)
	if err != nil {
		return domain.ReferenceGrid{}, fmt.Errorf("reference grid listing: %w", err)
	}
	return ref, nil
}
