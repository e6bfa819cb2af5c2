package exif

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the EXIF capture timestamp format
const DateTimeLayout = "2006:01:02 15:04:05"

// ParseDateTime parses a "YYYY:MM:DD HH:MM:SS" string. The result is the
// camera's wall clock carried in time.UTC; no zone offset is applied.
func ParseDateTime(s string) (time.Time, error) {
	halves := strings.Split(s, " ")
	if len(halves) != 2 {
		return time.Time{}, fmt.Errorf("%w: %q: want date and time separated by one space", ErrInvalidTimestampFormat, s)
	}

	date, err := parseFields(s, halves[0], 4, 2, 2)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := parseFields(s, halves[1], 2, 2, 2)
	if err != nil {
		return time.Time{}, err
	}

	year, month, day := date[0], date[1], date[2]
	hour, minute, second := clock[0], clock[1], clock[2]

	switch {
	case month < 1 || month > 12:
		return time.Time{}, fmt.Errorf("%w: %q: month %d out of range", ErrInvalidTimestampFormat, s, month)
	case day < 1 || day > 31:
		return time.Time{}, fmt.Errorf("%w: %q: day %d out of range", ErrInvalidTimestampFormat, s, day)
	case hour > 23:
		return time.Time{}, fmt.Errorf("%w: %q: hour %d out of range", ErrInvalidTimestampFormat, s, hour)
	case minute > 59:
		return time.Time{}, fmt.Errorf("%w: %q: minute %d out of range", ErrInvalidTimestampFormat, s, minute)
	case second > 59:
		return time.Time{}, fmt.Errorf("%w: %q: second %d out of range", ErrInvalidTimestampFormat, s, second)
	}

	if last := daysIn(time.Month(month), year); day > last {
		return time.Time{}, fmt.Errorf("%w: %q: %s %d has %d days", ErrInvalidTimestampFormat, s, time.Month(month), year, last)
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// FormatDateTime renders t in the EXIF capture timestamp format
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// parseFields splits a colon separated group and checks every field has the
// given width and only ASCII digits.
func parseFields(full, group string, widths ...int) ([]int, error) {
	fields := strings.Split(group, ":")
	if len(fields) != len(widths) {
		return nil, fmt.Errorf("%w: %q: %q has %d fields, want %d", ErrInvalidTimestampFormat, full, group, len(fields), len(widths))
	}

	out := make([]int, len(fields))
	for i, f := range fields {
		if len(f) != widths[i] {
			return nil, fmt.Errorf("%w: %q: field %q should be %d digits", ErrInvalidTimestampFormat, full, f, widths[i])
		}
		n := 0
		for _, c := range []byte(f) {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("%w: %q: field %q is not numeric", ErrInvalidTimestampFormat, full, f)
			}
			n = n*10 + int(c-'0')
		}
		out[i] = n
	}
	return out, nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
