package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats"
)

// GroundwaterVariable is the name of the combined product variable.
const GroundwaterVariable = "GW_anomaly_cm"

const metersToCentimeters = 100.0

var (
	arealMass    = unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -2}
	waterDensity = unit.New(1000, unit.KilogramPerMeter3)

	// Lengths of one unit of each accepted total storage spelling.
	lengthUnits = map[string]*unit.Unit{
		"m":  unit.New(1, unit.Meter),
		"cm": unit.New(0.01, unit.Meter),
		"mm": unit.New(0.001, unit.Meter),
	}
)

func canonicalUnits(units string) string {
	u := strings.ToLower(strings.TrimSpace(units))
	u = strings.NewReplacer("^", "", "**", "", "/m2", " m-2", "meters", "m", "meter", "m").Replace(u)
	return strings.Join(strings.Fields(u), " ")
}

// TotalToMeters returns the factor converting total storage in units to
// meters of equivalent water height. Empty units are taken as meters.
func TotalToMeters(units string) (float64, error) {
	u := canonicalUnits(units)
	if u == "" {
		u = "m"
	}
	length, ok := lengthUnits[u]
	if !ok {
		return 0, &UnitError{Units: units, Want: "m"}
	}
	if err := length.Check(unit.Meter); err != nil {
		return 0, &UnitError{Units: units, Want: err.Error()}
	}
	return length.Value(), nil
}

// ComponentToMeters returns the factor converting a storage component in
// units to meters of equivalent water height. Mass per area is divided by the
// density of water; millimetres of water are accepted as equivalent. Empty
// units are taken as kg m-2.
func ComponentToMeters(units string) (float64, error) {
	u := canonicalUnits(units)
	switch u {
	case "", "kg m-2", "kgm-2", "kg.m-2":
		depth := unit.Div(unit.New(1, arealMass), waterDensity)
		if err := depth.Check(unit.Meter); err != nil {
			return 0, &UnitError{Units: units, Want: err.Error()}
		}
		return depth.Value(), nil
	case "mm":
		return lengthUnits["mm"].Value(), nil
	}
	return 0, &UnitError{Units: units, Want: "kg m-2"}
}

// Combine computes the groundwater residual
//
//	GWS [cm] = 100 * (total [m] - sum(component [m]))
//
// Components must share the total's grid. The output keeps every time step of
// total; a step at which any component has no sample is entirely missing.
// Summation is cell-wise, so missing cells propagate.
func Combine(total Field, components ...Field) (Field, error) {
	if err := total.Validate(); err != nil {
		return Field{}, err
	}
	totalFactor, err := TotalToMeters(total.Units)
	if err != nil {
		return Field{}, withUnitField(err, total.Name)
	}

	type component struct {
		field  Field
		factor float64
		steps  map[time.Time]int
	}
	comps := make([]component, 0, len(components))
	for _, c := range components {
		if err := c.Validate(); err != nil {
			return Field{}, err
		}
		if !c.SameGrid(total) {
			return Field{}, fmt.Errorf("%w: component %s grid (%d x %d) differs from %s (%d x %d)",
				ErrShapeMismatch, c.Name, len(c.Lat), len(c.Lon), total.Name, len(total.Lat), len(total.Lon))
		}
		factor, err := ComponentToMeters(c.Units)
		if err != nil {
			return Field{}, withUnitField(err, c.Name)
		}
		steps := make(map[time.Time]int, len(c.Times))
		for t, ts := range c.Times {
			steps[ts.UTC()] = t
		}
		comps = append(comps, component{field: c, factor: factor, steps: steps})
	}

	n := total.CellCount()
	values := make([]float64, len(total.Values))
	for t, ts := range total.Times {
		dst := values[t*n : (t+1)*n]
		copy(dst, total.Step(t))
		floats.Scale(totalFactor, dst)
		complete := true
		for _, c := range comps {
			ct, ok := c.steps[ts.UTC()]
			if !ok {
				complete = false
				break
			}
			floats.AddScaled(dst, -c.factor, c.field.Step(ct))
		}
		if !complete {
			for i := range dst {
				dst[i] = math.NaN()
			}
			continue
		}
		floats.Scale(metersToCentimeters, dst)
	}

	out := Field{
		Name:     GroundwaterVariable,
		Units:    "cm",
		LongName: "Groundwater Storage Anomaly",
		Attrs:    map[string]string{"standard_name": "groundwater_storage_anomaly"},
		Times:    append([]time.Time(nil), total.Times...),
		Lat:      cloneFloats(total.Lat),
		Lon:      cloneFloats(total.Lon),
		Values:   values,
	}
	return out, nil
}

func withUnitField(err error, field string) error {
	if ue, ok := err.(*UnitError); ok {
		ue.Field = field
	}
	return err
}
