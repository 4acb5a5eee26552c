// Package csv reads and writes the reference grid point listing.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.ngs.io/gws-anomaly/internal/domain"
)

var gridHeader = []string{"lat", "lon"}

// WriteReferenceGrid writes every grid point, one per row, in the grid's
// row-major order under a "lat,lon" header.
func WriteReferenceGrid(path string, ref domain.ReferenceGrid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	//nolint:gosec // G304: path comes from configuration.
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(gridHeader); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, p := range ref.Points {
		record := []string{
			strconv.FormatFloat(p.Lat, 'g', -1, 64),
			strconv.FormatFloat(p.Lon, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return file.Close()
}

// ReadReferenceGrid reads a point listing and rebuilds the rectilinear grid
// from the unique sorted latitudes and longitudes.
func ReadReferenceGrid(path string) (domain.ReferenceGrid, error) {
	//nolint:gosec // G304: path comes from configuration.
	file, err := os.Open(path)
	if err != nil {
		return domain.ReferenceGrid{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.ReferenceGrid{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	latCol, lonCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "lat":
			latCol = i
		case "lon":
			lonCol = i
		}
	}
	var missing []string
	if latCol < 0 {
		missing = append(missing, "lat")
	}
	if lonCol < 0 {
		missing = append(missing, "lon")
	}
	if len(missing) > 0 {
		return domain.ReferenceGrid{}, &domain.SchemaError{Source: filepath.Base(path), Missing: missing}
	}

	var points []domain.LatLon
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ReferenceGrid{}, fmt.Errorf("failed to read CSV record: %w", err)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
		if err != nil {
			return domain.ReferenceGrid{}, fmt.Errorf("invalid latitude on line %d: %w", line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonCol]), 64)
		if err != nil {
			return domain.ReferenceGrid{}, fmt.Errorf("invalid longitude on line %d: %w", line, err)
		}
		points = append(points, domain.LatLon{Lat: lat, Lon: lon})
	}
	if len(points) == 0 {
		return domain.ReferenceGrid{}, fmt.Errorf("%s: no grid points", path)
	}

	grid, err := domain.GridFromPoints(points)
	if err != nil {
		return domain.ReferenceGrid{}, fmt.Errorf("%s: %w", path, err)
	}
	return domain.ReferenceGrid{Grid: grid, Points: points}, nil
}
