package dataset

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
)

// readValues reads a whole variable of n elements as float64, whatever its
// storage type.
func readValues(v netcdf.Var, n int) ([]float64, error) {
	varType, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable type: %w", err)
	}

	flat := make([]float64, n)
	switch varType {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64s(flat); err != nil {
			return nil, fmt.Errorf("failed to read float64: %w", err)
		}
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read float32: %w", err)
		}
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read int32: %w", err)
		}
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, fmt.Errorf("failed to read int16: %w", err)
		}
		for i, val := range tmp {
			flat[i] = float64(val)
		}
	case netcdf.BYTE, netcdf.CHAR, netcdf.UBYTE, netcdf.USHORT, netcdf.UINT, netcdf.INT64, netcdf.UINT64, netcdf.STRING:
		return nil, fmt.Errorf("unsupported data type: %v (expected DOUBLE, FLOAT, INT, or SHORT)", varType)
	default:
		return nil, fmt.Errorf("unsupported data type: %v", varType)
	}
	return flat, nil
}

// unpack replaces fill values with NaN and applies scale_factor and
// add_offset, in that order.
func unpack(v netcdf.Var, values []float64) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		fv, ok := numericAttr(v.Attr(name))
		if !ok {
			continue
		}
		for i, val := range values {
			if val == fv {
				values[i] = math.NaN()
			}
		}
	}

	scale, hasScale := numericAttr(v.Attr("scale_factor"))
	offset, hasOffset := numericAttr(v.Attr("add_offset"))
	if !hasScale || scale == 0 {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}
	if scale == 1 && offset == 0 {
		return
	}
	for i := range values {
		values[i] = values[i]*scale + offset
	}
}

// numericAttr reads the first element of a numeric attribute.
func numericAttr(a netcdf.Attr) (float64, bool) {
	if a == (netcdf.Attr{}) {
		return 0, false
	}
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, n)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, n)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, n)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, n)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

// textAttr reads a character attribute. Absent attributes yield "".
func textAttr(a netcdf.Attr) string {
	if a == (netcdf.Attr{}) {
		return ""
	}
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return string(trimNUL(buf))
}

func trimNUL(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}

// shapeOf returns the dimension names and lengths of v.
func shapeOf(v netcdf.Var) ([]string, []int, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	names := make([]string, len(dims))
	lens := make([]int, len(dims))
	for i, d := range dims {
		name, err := d.Name()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get dim%d name: %w", i, err)
		}
		n, err := d.Len()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get dim%d length: %w", i, err)
		}
		names[i] = name
		lens[i] = int(n)
	}
	return names, lens, nil
}

func product(lens []int) int {
	n := 1
	for _, l := range lens {
		n *= l
	}
	return n
}
