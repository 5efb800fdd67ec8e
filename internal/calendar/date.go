package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

const isoLayout = "2006-01-02"

// Date is a timezone-naive calendar day. Scheduling and streak arithmetic
// never look at instants; conversion happens once, at the boundary, using
// the user's location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New builds a Date, normalizing overflowing values the way time.Date does.
func New(year int, month time.Month, day int) Date {
	return fromUTC(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar day t falls on in loc.
// A nil loc means UTC.
func FromTime(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	start := now.New(t.In(loc)).BeginningOfDay()
	y, m, d := start.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today is FromTime for the current instant.
func Today(clock time.Time, loc *time.Location) Date {
	return FromTime(clock, loc)
}

// Parse reads an ISO YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return fromUTC(t), nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return now.New(first).EndOfMonth().Day()
}

func fromUTC(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return fromUTC(d.utc().AddDate(0, 0, n))
}

// AddMonths shifts d by n months keeping the day-of-month. ok is false when
// that day does not exist in the target month (Jan 31 + 1 month).
func (d Date) AddMonths(n int) (Date, bool) {
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	y, m, _ := first.Date()
	if d.Day > DaysIn(y, m) {
		return Date{}, false
	}
	return Date{Year: y, Month: m, Day: d.Day}, true
}

// DaysUntil returns the signed number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.utc().Sub(d.utc()).Hours() / 24)
}

func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// IsWeekend reports Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool  { return d.Compare(other) == 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Max returns the later of a and b.
func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

func (d Date) String() string {
	return d.utc().Format(isoLayout)
}

// Value stores the date as ISO text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan accepts ISO text or a time value from the driver.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = fromUTC(v.UTC())
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(isoLayout) {
		s = s[:len(isoLayout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType keeps the column a plain text column.
func (Date) GormDataType() string {
	return "string"
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	return d.scanString(s)
}
