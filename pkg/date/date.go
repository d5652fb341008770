// Package date provides a calendar-day type for DATE columns and YYYY-MM-DD
// JSON fields. Loan schedules deal in days, never clock times.
package date

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Date is a calendar day without time-of-day or zone.
type Date struct {
	time.Time
}

// New builds a Date from year, month, day.
func New(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// Today returns the current UTC day.
func Today() Date {
	now := time.Now().UTC()
	return New(now.Year(), now.Month(), now.Day())
}

// From truncates a time.Time to its calendar day.
func From(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

// AddMonths advances the date by whole months.
func (d Date) AddMonths(months int) Date {
	return Date{d.AddDate(0, months, 0)}
}

// MonthsBetween counts whole calendar months from start to end, floored at
// zero when end precedes start.
func MonthsBetween(start, end Date) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func (d Date) String() string {
	return d.Format(Layout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(Layout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == `null` || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = From(v)
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into date.Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}
