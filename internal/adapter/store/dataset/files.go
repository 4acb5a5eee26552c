package dataset

import (
	"time"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// Files is the NetCDF-backed path store.
type Files struct{}

// describingAttrs are variable attributes carried into Field.Attrs.
var describingAttrs = []string{"standard_name", "description", "baseline_period", "created_on"}

// ReadGrid derives the reference grid of the file at path.
func (Files) ReadGrid(path string, roles domain.CoordinateRoles) (domain.ReferenceGrid, error) {
	d, err := Open(path)
	if err != nil {
		return domain.ReferenceGrid{}, err
	}
	defer func() { _ = d.Close() }()
	return domain.ExtractGrid(d, roles)
}

// ListVariables names every variable of the file at path.
func (Files) ListVariables(path string) ([]string, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()
	return d.VariableNames(), nil
}

// ReadGlobalAttrs returns the named global attributes of the file at path,
// leaving out those that are absent or empty.
func (Files) ReadGlobalAttrs(path string, names ...string) (map[string]string, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()

	attrs := make(map[string]string, len(names))
	for _, name := range names {
		if v := d.GlobalAttr(name); v != "" {
			attrs[name] = v
		}
	}
	return attrs, nil
}

// ReadTimes decodes the time axis of the file at path.
func (Files) ReadTimes(path string) ([]time.Time, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()
	return d.Times()
}

// ReadFields reads every variable from the file at path.
func (Files) ReadFields(path string, variables []string, roles domain.CoordinateRoles) ([]domain.Field, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = d.Close() }()

	if err := d.Require(variables...); err != nil {
		return nil, err
	}
	fields := make([]domain.Field, 0, len(variables))
	for _, name := range variables {
		f, err := d.ReadField(name, roles)
		if err != nil {
			return nil, err
		}
		for _, attr := range describingAttrs {
			if v := d.VariableAttr(name, attr); v != "" {
				if f.Attrs == nil {
					f.Attrs = map[string]string{}
				}
				f.Attrs[attr] = v
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// WriteFields writes fields to a new file at path.
func (Files) WriteFields(path string, global map[string]string, fields ...domain.Field) error {
	return Write(path, global, fields...)
}
