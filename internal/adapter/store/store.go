// Package store defines how pipeline stages reach gridded dataset files.
package store

import (
	"time"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// Files reads and writes (time, lat, lon) datasets by path.
type Files interface {
	// ReadGrid derives the reference grid from a dataset's coordinates.
	ReadGrid(path string, roles domain.CoordinateRoles) (domain.ReferenceGrid, error)

	// ListVariables names every variable in a dataset.
	ListVariables(path string) ([]string, error)

	// ReadGlobalAttrs returns the named text global attributes that are set.
	ReadGlobalAttrs(path string, names ...string) (map[string]string, error)

	// ReadTimes decodes a dataset's time axis.
	ReadTimes(path string) ([]time.Time, error)

	// ReadFields reads variables sharing the dataset axes, with their
	// descriptive attributes. Absent variables are reported together in one
	// *domain.SchemaError.
	ReadFields(path string, variables []string, roles domain.CoordinateRoles) ([]domain.Field, error)

	// WriteFields writes fields on shared axes with global attributes.
	WriteFields(path string, global map[string]string, fields ...domain.Field) error
}
