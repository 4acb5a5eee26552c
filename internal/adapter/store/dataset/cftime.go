package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeUnits is the encoding written for every output time axis.
const TimeUnits = "days since 1970-01-01 00:00:00"

var epochLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-1-2 15:4:5",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
}

var unitDurations = map[string]time.Duration{
	"day": 24 * time.Hour, "days": 24 * time.Hour, "d": 24 * time.Hour,
	"hour": time.Hour, "hours": time.Hour, "h": time.Hour, "hr": time.Hour,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute,
	"second": time.Second, "seconds": time.Second, "s": time.Second, "sec": time.Second,
}

// ParseTimeUnits parses a CF "<unit> since <epoch>" string.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	fields := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(fields) != 2 {
		return 0, time.Time{}, fmt.Errorf("time units %q: expected \"<unit> since <epoch>\"", units)
	}
	step, ok := unitDurations[strings.ToLower(strings.TrimSpace(fields[0]))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q", units, fields[0])
	}

	ref := strings.TrimSpace(fields[1])
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " +00:00")
	ref = padYear(ref)
	for _, layout := range epochLayouts {
		if epoch, err := time.Parse(layout, ref); err == nil {
			return step, epoch.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: cannot parse epoch %q", units, ref)
}

// padYear widens a short year such as the 1 of "1-1-1 00:00:0.0" to four
// digits.
func padYear(ref string) string {
	i := strings.IndexByte(ref, '-')
	if i <= 0 || i >= 4 {
		return ref
	}
	return strings.Repeat("0", 4-i) + ref
}

// checkCalendar accepts the calendars equivalent to Go's proleptic
// Gregorian time.
func checkCalendar(calendar string) error {
	switch strings.ToLower(strings.TrimSpace(calendar)) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return nil
	}
	return fmt.Errorf("unsupported calendar %q", calendar)
}

// maxOffsetDays bounds decodable offsets to roughly 27,000 years either side
// of the epoch.
const maxOffsetDays = 1e7

// DecodeTimes converts CF offsets to UTC instants, rounded to the second.
// Whole days are added as calendar days, so offsets from early epochs such as
// 0001-01-01 decode exactly.
func DecodeTimes(values []float64, units, calendar string) ([]time.Time, error) {
	if err := checkCalendar(calendar); err != nil {
		return nil, err
	}
	step, epoch, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("time value %d is not finite", i)
		}
		seconds := math.Round(v * step.Seconds())
		days := math.Floor(seconds / 86400)
		if math.Abs(days) > maxOffsetDays {
			return nil, fmt.Errorf("time value %d (%g) is out of range for %q", i, v, units)
		}
		rem := time.Duration(seconds-days*86400) * time.Second
		out[i] = epoch.AddDate(0, 0, int(days)).Add(rem)
	}
	return out, nil
}

// EncodeTimes converts instants to offsets in TimeUnits.
func EncodeTimes(times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = float64(t.Unix()) / 86400
	}
	return out
}
