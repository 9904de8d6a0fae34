package value

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Temporal is the shared representation behind Date, DateTime, Time, and
// Duration values. Which fields are meaningful depends on the Value's Kind:
// Date/DateTime/Time store an absolute instant (DateTime keeping its zone
// offset; Date/Time projections of one), Duration stores calendar + clock
// components the way the teacher's CypherDuration does, because calendar
// units (years/months/days) have variable length and must not be collapsed
// into a fixed-length time.Duration.
type Temporal struct {
	// Instant is populated for Date, DateTime, Time.
	Instant time.Time
	HasZone bool

	// Calendar/clock components, populated for Duration.
	Years, Months, Days               int64
	Hours, Minutes, Seconds, Nanos    int64
}

func (t Temporal) Equal(o Temporal) bool {
	return t.Instant.Equal(o.Instant) &&
		t.Years == o.Years && t.Months == o.Months && t.Days == o.Days &&
		t.Hours == o.Hours && t.Minutes == o.Minutes && t.Seconds == o.Seconds && t.Nanos == o.Nanos
}

func (t Temporal) Compare(o Temporal) int {
	if !t.Instant.IsZero() || !o.Instant.IsZero() {
		if t.Instant.Before(o.Instant) {
			return -1
		}
		if t.Instant.After(o.Instant) {
			return 1
		}
		return 0
	}
	a := t.totalNanos()
	b := o.totalNanos()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// totalNanos gives Duration values an approximate, internally-consistent
// ordering: 1 year = 365.2425 days, 1 month = 30.436875 days, matching the
// averaging Neo4j uses for duration comparisons.
func (t Temporal) totalNanos() float64 {
	days := float64(t.Years)*365.2425 + float64(t.Months)*30.436875 + float64(t.Days)
	secs := days*86400 + float64(t.Hours)*3600 + float64(t.Minutes)*60 + float64(t.Seconds)
	return secs*1e9 + float64(t.Nanos)
}

func (t Temporal) String() string {
	return t.isoString(KindDateTime)
}

// StringForKind renders according to the owning Value's Kind, since Date,
// DateTime, Time, and Duration all share this struct but print differently.
func (t Temporal) StringForKind(k Kind) string {
	return t.isoString(k)
}

func (t Temporal) isoString(k Kind) string {
	switch k {
	case KindDate:
		return t.Instant.Format("2006-01-02")
	case KindTime:
		layout := "15:04:05"
		if t.HasZone {
			layout += "Z07:00"
		}
		return t.Instant.Format(layout)
	case KindDateTime:
		layout := "2006-01-02T15:04:05"
		if t.Instant.Nanosecond() != 0 {
			layout += ".000000000"
		}
		if t.HasZone {
			layout += "Z07:00"
		}
		return t.Instant.Format(layout)
	case KindDuration:
		return t.durationString()
	default:
		return t.Instant.Format(time.RFC3339)
	}
}

func (t Temporal) durationString() string {
	var b strings.Builder
	b.WriteByte('P')
	if t.Years != 0 {
		fmt.Fprintf(&b, "%dY", t.Years)
	}
	if t.Months != 0 {
		fmt.Fprintf(&b, "%dM", t.Months)
	}
	if t.Days != 0 {
		fmt.Fprintf(&b, "%dD", t.Days)
	}
	if t.Hours != 0 || t.Minutes != 0 || t.Seconds != 0 || t.Nanos != 0 {
		b.WriteByte('T')
		if t.Hours != 0 {
			fmt.Fprintf(&b, "%dH", t.Hours)
		}
		if t.Minutes != 0 {
			fmt.Fprintf(&b, "%dM", t.Minutes)
		}
		if t.Seconds != 0 || t.Nanos != 0 {
			if t.Nanos != 0 {
				fmt.Fprintf(&b, "%s", trimFloat(float64(t.Seconds)+float64(t.Nanos)/1e9))
			} else {
				fmt.Fprintf(&b, "%d", t.Seconds)
			}
			b.WriteByte('S')
		}
	}
	s := b.String()
	if s == "P" {
		return "PT0S"
	}
	return s
}

func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return s
}

var durationPattern = regexp.MustCompile(
	`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration parses an ISO-8601 duration string (P[n]Y[n]M[n]DT[n]H[n]M[n]S)
// per spec.md §4.5.2's `duration(string)`. Returns an error on failure.
func ParseDuration(s string) (Temporal, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" {
		return Temporal{}, fmt.Errorf("invalid duration format: %q", s)
	}
	var t Temporal
	get := func(i int) int64 {
		if m[i] == "" {
			return 0
		}
		n, _ := strconv.ParseInt(m[i], 10, 64)
		return n
	}
	t.Years = get(1)
	t.Months = get(2)
	t.Days = get(3)
	t.Hours = get(4)
	t.Minutes = get(5)
	if m[6] != "" {
		secF, _ := strconv.ParseFloat(m[6], 64)
		t.Seconds = int64(secF)
		t.Nanos = int64((secF - float64(t.Seconds)) * 1e9)
	}
	return t, nil
}

// AddDuration adds a Duration Temporal to a Date/DateTime/Time instant,
// applying calendar units (Y/M/D) before clock units, matching Neo4j's
// addition order.
func AddDuration(instant time.Time, d Temporal) time.Time {
	instant = instant.AddDate(int(d.Years), int(d.Months), int(d.Days))
	return instant.Add(time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second +
		time.Duration(d.Nanos))
}

// ParseDate, ParseDateTime, ParseTime parse the ISO-8601 subset Cypher's
// date()/datetime()/time() constructors accept. A zero-length string means
// "now" per spec.md §4.5.1's wall-clock note.
func ParseDate(s string, now func() time.Time) (Temporal, error) {
	if s == "" {
		n := now()
		return Temporal{Instant: time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Temporal{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Temporal{Instant: t}, nil
}

func ParseDateTime(s string, now func() time.Time) (Temporal, error) {
	if s == "" {
		return Temporal{Instant: now(), HasZone: true}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Temporal{Instant: t, HasZone: strings.ContainsAny(s, "Z+") || strings.Count(s, "-") > 2}, nil
		}
	}
	return Temporal{}, fmt.Errorf("invalid datetime %q", s)
}

func ParseTime(s string, now func() time.Time) (Temporal, error) {
	if s == "" {
		n := now()
		return Temporal{Instant: n, HasZone: true}, nil
	}
	for _, layout := range []string{"15:04:05.999999999Z07:00", "15:04:05Z07:00", "15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Temporal{Instant: t, HasZone: strings.ContainsAny(s, "Z+")}, nil
		}
	}
	return Temporal{}, fmt.Errorf("invalid time %q", s)
}

// Accessor dispatches year/month/day/hour/minute/second by operand kind per
// spec.md §4.5.2. Returns NULL (ok=false) for fields a kind doesn't carry,
// e.g. `hour` of a Date.
func Accessor(field string, k Kind, t Temporal) (Value, bool) {
	switch field {
	case "year":
		if k == KindDate || k == KindDateTime {
			return Int(int64(t.Instant.Year())), true
		}
	case "month":
		if k == KindDate || k == KindDateTime {
			return Int(int64(t.Instant.Month())), true
		}
	case "day":
		if k == KindDate || k == KindDateTime {
			return Int(int64(t.Instant.Day())), true
		}
	case "hour":
		if k == KindDateTime || k == KindTime {
			return Int(int64(t.Instant.Hour())), true
		}
	case "minute":
		if k == KindDateTime || k == KindTime {
			return Int(int64(t.Instant.Minute())), true
		}
	case "second":
		if k == KindDateTime || k == KindTime {
			return Int(int64(t.Instant.Second())), true
		}
	}
	return Null, false
}
