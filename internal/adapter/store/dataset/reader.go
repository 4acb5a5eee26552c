// Package dataset reads and writes CF-style NetCDF datasets holding
// (time, lat, lon) fields.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// TimeVariable is the conventional name of the time coordinate.
const TimeVariable = "time"

// libMu serialises every call into libnetcdf, which is not thread-safe.
var libMu sync.Mutex

// Dataset is an open NetCDF file.
type Dataset struct {
	path  string
	nc    netcdf.Dataset
	names []string
}

// Open opens the file at path read-only and indexes its variables.
func Open(path string) (*Dataset, error) {
	libMu.Lock()
	defer libMu.Unlock()

	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}

	n, err := nc.NVars()
	if err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("failed to count variables in %s: %w", path, err)
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name, err := nc.VarN(i).Name()
		if err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("failed to read variable %d name in %s: %w", i, path, err)
		}
		names = append(names, name)
	}

	return &Dataset{path: path, nc: nc, names: names}, nil
}

// Close releases the file.
func (d *Dataset) Close() error {
	libMu.Lock()
	defer libMu.Unlock()
	return d.nc.Close()
}

// Name returns the file's base name.
func (d *Dataset) Name() string {
	return filepath.Base(d.path)
}

// VariableNames lists every variable in file order.
func (d *Dataset) VariableNames() []string {
	return append([]string(nil), d.names...)
}

// Has reports whether the dataset contains a variable called name.
func (d *Dataset) Has(name string) bool {
	for _, n := range d.names {
		if n == name {
			return true
		}
	}
	return false
}

// Require fails with a *domain.SchemaError naming every absent variable.
func (d *Dataset) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if !d.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &domain.SchemaError{Source: d.Name(), Missing: missing}
	}
	return nil
}

// ReadCoordinate returns the flattened values and shape of a 1-D or 2-D
// coordinate variable.
func (d *Dataset) ReadCoordinate(name string) ([]float64, []int, error) {
	libMu.Lock()
	defer libMu.Unlock()

	v, err := d.nc.Var(name)
	if err != nil {
		return nil, nil, fmt.Errorf("variable %s: %w", name, err)
	}
	_, lens, err := shapeOf(v)
	if err != nil {
		return nil, nil, err
	}
	if len(lens) != 1 && len(lens) != 2 {
		return nil, nil, fmt.Errorf("coordinate %s: expected 1D or 2D variable, got %dD", name, len(lens))
	}
	values, err := readValues(v, product(lens))
	if err != nil {
		return nil, nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return values, lens, nil
}

// Times decodes the time coordinate.
func (d *Dataset) Times() ([]time.Time, error) {
	if err := d.Require(TimeVariable); err != nil {
		return nil, err
	}
	return d.readTimes()
}

func (d *Dataset) readTimes() ([]time.Time, error) {
	libMu.Lock()
	defer libMu.Unlock()

	v, err := d.nc.Var(TimeVariable)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", TimeVariable, err)
	}
	_, lens, err := shapeOf(v)
	if err != nil {
		return nil, err
	}
	if len(lens) != 1 {
		return nil, fmt.Errorf("time: expected 1D variable, got %dD", len(lens))
	}
	values, err := readValues(v, lens[0])
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}
	times, err := DecodeTimes(values, textAttr(v.Attr("units")), textAttr(v.Attr("calendar")))
	if err != nil {
		return nil, fmt.Errorf("time of %s: %w", d.Name(), err)
	}
	return times, nil
}

// resolveCoordinates maps the lat/lon roles to variable names, recording
// problems in schemaErr.
func (d *Dataset) resolveCoordinates(roles domain.CoordinateRoles, schemaErr *domain.SchemaError) (string, string) {
	resolve := func(role, configured string) string {
		if configured != "" {
			if d.Has(configured) {
				return configured
			}
			schemaErr.Missing = append(schemaErr.Missing, configured)
			return ""
		}
		name, ok, candidates := domain.DiscoverCoordinate(d.names, role)
		if ok {
			return name
		}
		if len(candidates) == 0 {
			schemaErr.Missing = append(schemaErr.Missing, role)
		} else {
			if schemaErr.Ambiguous == nil {
				schemaErr.Ambiguous = map[string][]string{}
			}
			schemaErr.Ambiguous[role] = candidates
		}
		return ""
	}
	return resolve("lat", roles.Lat), resolve("lon", roles.Lon)
}

// ReadField reads variable name over (time, lat, lon). Both (time, lat, lon)
// and (time, lon, lat) storage orders are accepted. Fill values become NaN and
// packed values are unpacked. Every missing variable, coordinate included, is
// reported in a single *domain.SchemaError.
func (d *Dataset) ReadField(name string, roles domain.CoordinateRoles) (domain.Field, error) {
	schemaErr := &domain.SchemaError{Source: d.Name()}
	if !d.Has(name) {
		schemaErr.Missing = append(schemaErr.Missing, name)
	}
	latName, lonName := d.resolveCoordinates(roles, schemaErr)
	if !d.Has(TimeVariable) {
		schemaErr.Missing = append(schemaErr.Missing, TimeVariable)
	}
	if len(schemaErr.Missing) > 0 || len(schemaErr.Ambiguous) > 0 {
		return domain.Field{}, schemaErr
	}

	times, err := d.readTimes()
	if err != nil {
		return domain.Field{}, err
	}
	lat, latShape, err := d.ReadCoordinate(latName)
	if err != nil {
		return domain.Field{}, err
	}
	lon, lonShape, err := d.ReadCoordinate(lonName)
	if err != nil {
		return domain.Field{}, err
	}
	if len(latShape) != 1 || len(lonShape) != 1 {
		return domain.Field{}, fmt.Errorf("%s: %s needs 1D coordinates, got %dD and %dD",
			d.Name(), name, len(latShape), len(lonShape))
	}

	libMu.Lock()
	defer libMu.Unlock()

	v, err := d.nc.Var(name)
	if err != nil {
		return domain.Field{}, fmt.Errorf("variable %s: %w", name, err)
	}
	dimNames, lens, err := shapeOf(v)
	if err != nil {
		return domain.Field{}, err
	}
	if len(lens) != 3 {
		return domain.Field{}, fmt.Errorf("%s: %s: expected 3D (time, lat, lon) data, got %dD", d.Name(), name, len(lens))
	}
	nT, nLat, nLon := len(times), len(lat), len(lon)
	if lens[0] != nT {
		return domain.Field{}, fmt.Errorf("%s: %s: leading dimension %s has %d steps, time has %d",
			d.Name(), name, dimNames[0], lens[0], nT)
	}

	raw, err := readValues(v, product(lens))
	if err != nil {
		return domain.Field{}, fmt.Errorf("%s: %s: %w", d.Name(), name, err)
	}
	unpack(v, raw)

	var values []float64
	switch {
	case lens[1] == nLat && lens[2] == nLon && !isLonDim(dimNames[1], lonName):
		values = raw
	case lens[1] == nLon && lens[2] == nLat:
		// Stored as (time, lon, lat).
		values = transposeSteps(raw, nT, nLon, nLat)
	default:
		return domain.Field{}, fmt.Errorf("%s: %s: dimension mismatch: data is %v, expected [%d, %d, %d] or [%d, %d, %d]",
			d.Name(), name, lens, nT, nLat, nLon, nT, nLon, nLat)
	}

	f, err := domain.NewField(name, times, lat, lon, values)
	if err != nil {
		return domain.Field{}, err
	}
	f.Units = textAttr(v.Attr("units"))
	f.LongName = textAttr(v.Attr("long_name"))
	return f, nil
}

// isLonDim reports whether a dimension name refers to the longitude axis.
func isLonDim(dim, lonName string) bool {
	return dim == lonName || strings.HasPrefix(strings.ToLower(dim), "lon")
}

// transposeSteps turns per-step [rows][cols] blocks into [cols][rows].
func transposeSteps(data []float64, nT, rows, cols int) []float64 {
	out := make([]float64, len(data))
	n := rows * cols
	for t := 0; t < nT; t++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out[t*n+c*rows+r] = data[t*n+r*cols+c]
			}
		}
	}
	return out
}

// GlobalAttr returns a text global attribute, or "" when absent.
func (d *Dataset) GlobalAttr(name string) string {
	libMu.Lock()
	defer libMu.Unlock()
	return textAttr(d.nc.Attr(name))
}

// VariableAttr returns a text attribute of variable, or "" when absent.
func (d *Dataset) VariableAttr(variable, name string) string {
	libMu.Lock()
	defer libMu.Unlock()
	v, err := d.nc.Var(variable)
	if err != nil {
		return ""
	}
	return textAttr(v.Attr(name))
}
