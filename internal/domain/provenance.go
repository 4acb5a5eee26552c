package domain

import (
	"fmt"
	"strings"
	"time"
)

// Conventions is the CF version declared by every output file.
const Conventions = "CF-1.7"

// Provenance describes how a product was derived. It renders the global and
// variable attributes attached to output files.
type Provenance struct {
	Title       string
	Institution string
	Total       string   // total storage source, e.g. "GRACE lwe_thickness"
	Components  []string // component sources
	Baseline    BaselinePeriod
	Generated   time.Time
}

// NewProvenance stamps a provenance record with the current time.
func NewProvenance(institution, total string, components []string, baseline BaselinePeriod) Provenance {
	return Provenance{
		Title:       "GRACE-Derived Groundwater Storage Anomaly",
		Institution: institution,
		Total:       total,
		Components:  append([]string(nil), components...),
		Baseline:    baseline,
		Generated:   Now(),
	}
}

// GlobalAttrs returns the file-level attributes.
func (p Provenance) GlobalAttrs() map[string]string {
	summary := fmt.Sprintf("Monthly groundwater storage anomaly estimated from %s minus surface storage components (%s) over the baseline %s.",
		p.Total, strings.Join(p.Components, ", "), p.Baseline)
	return map[string]string{
		"title":       p.Title,
		"summary":     summary,
		"institution": p.Institution,
		"source":      strings.Join(append([]string{p.Total}, p.Components...), "; "),
		"history":     "Generated on " + p.Generated.Format(time.RFC3339),
		"Conventions": Conventions,
	}
}

// Annotate returns a copy of f carrying the variable-level provenance
// attributes.
func (p Provenance) Annotate(f Field) Field {
	out := f.WithValues(f.Times, f.Values)
	if out.Attrs == nil {
		out.Attrs = map[string]string{}
	}
	out.Attrs["description"] = fmt.Sprintf(
		"Derived from %s (total water storage anomaly) minus anomalies of %s (kg m-2, converted with 1 kg m-2 = 0.001 m). "+
			"Anomalies are relative to the monthly climatology of the baseline %s. Result in centimeters.",
		p.Total, strings.Join(p.Components, ", "), p.Baseline)
	out.Attrs["baseline_period"] = p.Baseline.String()
	out.Attrs["created_on"] = p.Generated.Format(time.RFC3339)
	return out
}
