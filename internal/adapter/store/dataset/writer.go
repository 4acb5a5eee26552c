package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// DeflateLevel is the zlib level applied to every data variable.
const DeflateLevel = 4

// Write creates a NetCDF-4 file at path holding fields on their shared
// (time, lat, lon) axes. NaN samples are written as domain.FillValue.
// Global attributes are written in key order.
func Write(path string, global map[string]string, fields ...domain.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("write %s: no fields", path)
	}
	base := fields[0]
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if !f.SameAxes(base) {
			return fmt.Errorf("%w: write %s: %s axes differ from %s", domain.ErrShapeMismatch, path, f.Name, base.Name)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	libMu.Lock()
	defer libMu.Unlock()

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if err := write(ds, global, base, fields); err != nil {
		_ = ds.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return ds.Close()
}

func write(ds netcdf.Dataset, global map[string]string, base domain.Field, fields []domain.Field) error {
	timeDim, err := ds.AddDim(TimeVariable, uint64(len(base.Times)))
	if err != nil {
		return err
	}
	latDim, err := ds.AddDim("lat", uint64(len(base.Lat)))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(len(base.Lon)))
	if err != nil {
		return err
	}

	timeVar, err := addCoordinate(ds, TimeVariable, timeDim, map[string]string{
		"units": TimeUnits, "calendar": "standard", "standard_name": "time", "axis": "T",
	})
	if err != nil {
		return err
	}
	latVar, err := addCoordinate(ds, "lat", latDim, map[string]string{
		"units": "degrees_north", "standard_name": "latitude", "long_name": "latitude", "axis": "Y",
	})
	if err != nil {
		return err
	}
	lonVar, err := addCoordinate(ds, "lon", lonDim, map[string]string{
		"units": "degrees_east", "standard_name": "longitude", "long_name": "longitude", "axis": "X",
	})
	if err != nil {
		return err
	}

	dims := []netcdf.Dim{timeDim, latDim, lonDim}
	dataVars := make([]netcdf.Var, len(fields))
	for i, f := range fields {
		v, err := ds.AddVar(f.Name, netcdf.DOUBLE, dims)
		if err != nil {
			return fmt.Errorf("add variable %s: %w", f.Name, err)
		}
		if err := v.SetCompression(false, true, DeflateLevel); err != nil {
			return fmt.Errorf("compress %s: %w", f.Name, err)
		}
		if err := v.Attr("_FillValue").WriteFloat64s([]float64{domain.FillValue}); err != nil {
			return fmt.Errorf("fill value of %s: %w", f.Name, err)
		}
		attrs := map[string]string{}
		for k, val := range f.Attrs {
			attrs[k] = val
		}
		if f.Units != "" {
			attrs["units"] = f.Units
		}
		if f.LongName != "" {
			attrs["long_name"] = f.LongName
		}
		if err := writeTextAttrs(v.Attr, attrs); err != nil {
			return fmt.Errorf("attributes of %s: %w", f.Name, err)
		}
		dataVars[i] = v
	}

	if err := writeTextAttrs(ds.Attr, global); err != nil {
		return fmt.Errorf("global attributes: %w", err)
	}

	if err := ds.EndDef(); err != nil {
		return err
	}

	if err := timeVar.WriteFloat64s(EncodeTimes(base.Times)); err != nil {
		return fmt.Errorf("write time: %w", err)
	}
	if err := latVar.WriteFloat64s(base.Lat); err != nil {
		return fmt.Errorf("write lat: %w", err)
	}
	if err := lonVar.WriteFloat64s(base.Lon); err != nil {
		return fmt.Errorf("write lon: %w", err)
	}
	for i, f := range fields {
		if err := dataVars[i].WriteFloat64s(packMissing(f.Values)); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return nil
}

func addCoordinate(ds netcdf.Dataset, name string, dim netcdf.Dim, attrs map[string]string) (netcdf.Var, error) {
	v, err := ds.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{dim})
	if err != nil {
		return netcdf.Var{}, fmt.Errorf("add variable %s: %w", name, err)
	}
	if err := writeTextAttrs(v.Attr, attrs); err != nil {
		return netcdf.Var{}, fmt.Errorf("attributes of %s: %w", name, err)
	}
	return v, nil
}

func writeTextAttrs(attr func(string) netcdf.Attr, attrs map[string]string) error {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := attr(k).WriteBytes([]byte(attrs[k])); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

func packMissing(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = domain.FillValue
			continue
		}
		out[i] = v
	}
	return out
}
