package pennywise

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and display layout of a calendar date
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day
type Date struct {
	time.Time
}

// NewDate returns the date at midnight UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current local calendar date
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses YYYY-MM-DD, RFC3339 or a timestamp without zone
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unable to parse date: %s", s)
}

// MustParseDate is ParseDate for constants and tests
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// UnmarshalJSON implements json.Unmarshaler for Date
func (d *Date) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	if str == "" || str == "null" {
		d.Time = time.Time{}
		return nil
	}

	parsed, err := ParseDate(str)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements json.Marshaler for Date
func (d Date) MarshalJSON() ([]byte, error) {
	if d.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`"%s"`, d.Time.Format(DateLayout))), nil
}

// String returns the date as YYYY-MM-DD
func (d Date) String() string {
	if d.Time.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Compare orders two dates by calendar day
func (d Date) Compare(other Date) int {
	a, b := d.String(), other.String()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Within reports whether d falls in [start, end]; zero bounds are open
func (d Date) Within(start, end Date) bool {
	if !start.IsZero() && d.Compare(start) < 0 {
		return false
	}
	if !end.IsZero() && d.Compare(end) > 0 {
		return false
	}
	return true
}

// MonthKey returns the YYYY-MM bucket of the date
func (d Date) MonthKey() string {
	return d.Time.Format("2006-01")
}
