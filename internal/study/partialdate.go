package study

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnknownFieldLiteral marks an unknown component in a textual date, e.g.
// "Unknown.05.2021" for a day-less date.
const UnknownFieldLiteral = "Unknown"

// PartialDate is a date where any component from year down to second may be
// unknown. Dates are compared component by component from the most to the
// least significant; as soon as one side does not know a component the two
// dates are considered equal. This matches how clinical dates with unknown
// days or months are ordered.
type PartialDate struct {
	year   *int
	month  *int
	day    *int
	hour   *int
	minute *int
	second *int
}

// NewPartialDate builds a date with the given known components. Pass nil for
// unknown components.
func NewPartialDate(year, month, day, hour, minute, second *int) PartialDate {
	return PartialDate{year: year, month: month, day: day, hour: hour, minute: minute, second: second}
}

// PartialDateOf builds a fully known calendar date.
func PartialDateOf(year, month, day int) PartialDate {
	return PartialDate{year: &year, month: &month, day: &day}
}

// PartialDateOfTime builds a fully known date from a time.Time.
func PartialDateOfTime(t time.Time) PartialDate {
	t = t.UTC()
	y, mo, d := t.Year(), int(t.Month()), t.Day()
	h, mi, s := t.Hour(), t.Minute(), t.Second()
	return PartialDate{year: &y, month: &mo, day: &d, hour: &h, minute: &mi, second: &s}
}

func parseDatePart(part string) (*int, error) {
	if part == UnknownFieldLiteral {
		return nil, nil
	}
	n, err := strconv.Atoi(part)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ParsePartialDate parses the textual forms "2021", "05.2021", "17.05.2021",
// "10:30:00" and "17.05.2021 10:30:00". Components may be replaced by the
// literal "Unknown".
func ParsePartialDate(value string) (PartialDate, error) {
	var pd PartialDate
	parts := strings.Fields(value)
	if len(parts) == 0 {
		return pd, nil
	}

	parseDate := func(s string) error {
		segments := strings.Split(s, ".")
		var err error
		// date segments run day.month.year, the year always last
		i := len(segments) - 1
		if pd.year, err = parseDatePart(segments[i]); err != nil {
			return err
		}
		if i--; i >= 0 {
			if pd.month, err = parseDatePart(segments[i]); err != nil {
				return err
			}
			if i--; i >= 0 {
				if pd.day, err = parseDatePart(segments[i]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	parseTime := func(s string) error {
		segments := strings.Split(s, ":")
		var err error
		if pd.hour, err = parseDatePart(segments[0]); err != nil {
			return err
		}
		if len(segments) > 1 {
			if pd.minute, err = parseDatePart(segments[1]); err != nil {
				return err
			}
		}
		if len(segments) > 2 {
			if pd.second, err = parseDatePart(segments[2]); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	switch {
	case len(parts) == 2:
		if err = parseDate(parts[0]); err == nil {
			err = parseTime(parts[1])
		}
	case strings.Contains(parts[0], "."):
		err = parseDate(parts[0])
	case strings.Contains(parts[0], ":"):
		err = parseTime(parts[0])
	default:
		pd.year, err = parseDatePart(parts[0])
	}
	if err != nil {
		return PartialDate{}, fmt.Errorf("invalid partial date %q: %w", value, err)
	}
	return pd, nil
}

func (d PartialDate) Year() *int   { return d.year }
func (d PartialDate) Month() *int  { return d.month }
func (d PartialDate) Day() *int    { return d.day }
func (d PartialDate) Hour() *int   { return d.hour }
func (d PartialDate) Minute() *int { return d.minute }
func (d PartialDate) Second() *int { return d.second }

// IsComplete reports whether every component is known.
func (d PartialDate) IsComplete() bool {
	return d.year != nil && d.month != nil && d.day != nil && d.hour != nil && d.minute != nil && d.second != nil
}

// IsCompletelyUnknown reports whether no component is known.
func (d PartialDate) IsCompletelyUnknown() bool {
	return d.year == nil && d.month == nil && d.day == nil && d.hour == nil && d.minute == nil && d.second == nil
}

// IsAnchoredInTime reports whether at least the year is known.
func (d PartialDate) IsAnchoredInTime() bool { return d.year != nil }

// Compare orders two partial dates. Comparison walks the components from year
// to second and stops, declaring the dates equal, at the first component
// unknown on either side.
func (d PartialDate) Compare(other PartialDate) int {
	pairs := [][2]*int{
		{d.year, other.year},
		{d.month, other.month},
		{d.day, other.day},
		{d.hour, other.hour},
		{d.minute, other.minute},
		{d.second, other.second},
	}
	for _, pair := range pairs {
		if pair[0] == nil || pair[1] == nil {
			return 0
		}
		if *pair[0] != *pair[1] {
			return *pair[0] - *pair[1]
		}
	}
	return 0
}

func (d PartialDate) Equals(other PartialDate) bool { return d.Compare(other) == 0 }
func (d PartialDate) After(other PartialDate) bool  { return d.Compare(other) > 0 }
func (d PartialDate) Before(other PartialDate) bool { return d.Compare(other) < 0 }

func orDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// ToTime anchors the date on the wall clock, substituting defaults for
// unknown components (first of January, midnight).
func (d PartialDate) ToTime() time.Time {
	return time.Date(
		orDefault(d.year, 1),
		time.Month(orDefault(d.month, 1)),
		orDefault(d.day, 1),
		orDefault(d.hour, 0),
		orDefault(d.minute, 0),
		orDefault(d.second, 0),
		0, time.UTC)
}

func (d PartialDate) shift(years, months, days int) PartialDate {
	t := d.ToTime().AddDate(years, months, days)
	out := PartialDateOfTime(t)
	// unknown components stay unknown
	if d.year == nil {
		out.year = nil
	}
	if d.month == nil {
		out.month = nil
	}
	if d.day == nil {
		out.day = nil
	}
	if d.hour == nil {
		out.hour = nil
	}
	if d.minute == nil {
		out.minute = nil
	}
	if d.second == nil {
		out.second = nil
	}
	return out
}

// AddYears returns the date shifted by the given number of years.
func (d PartialDate) AddYears(years int) PartialDate { return d.shift(years, 0, 0) }

// AddMonths returns the date shifted by the given number of months.
func (d PartialDate) AddMonths(months int) PartialDate { return d.shift(0, months, 0) }

// AddDays returns the date shifted by the given number of days.
func (d PartialDate) AddDays(days int) PartialDate { return d.shift(0, 0, days) }

func (d PartialDate) String() string {
	literal := func(v *int, width int) string {
		if v == nil {
			return UnknownFieldLiteral
		}
		return fmt.Sprintf("%0*d", width, *v)
	}
	date := fmt.Sprintf("%s.%s.%s", literal(d.day, 2), literal(d.month, 2), literal(d.year, 4))
	if d.hour == nil && d.minute == nil && d.second == nil {
		return date
	}
	return fmt.Sprintf("%s %s:%s:%s", date, literal(d.hour, 2), literal(d.minute, 2), literal(d.second, 2))
}
