package parse

import (
	"strconv"
	"strings"
	"time"
)

// Disclosure files carry blanks and stray text in numeric columns; conversion
// failures yield nil rather than aborting the row.

func safeFloat(value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func safeInt(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &i
}

var dateFormats = []string{
	"012006",   // MMYYYY
	"20060102", // YYYYMMDD
	"01022006", // MMDDYYYY
	"200601",   // YYYYMM
}

func parseFileDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, format := range dateFormats {
		if len(value) != len(format) {
			continue
		}
		if t, err := time.Parse(format, value); err == nil {
			return &t
		}
	}
	return nil
}

// parseYYYYMM resolves a six-digit year-month to the first of that month.
func parseYYYYMM(value string) *time.Time {
	value = strings.TrimSpace(value)
	if len(value) != 6 {
		return nil
	}
	t, err := time.Parse("200601", value)
	if err != nil {
		return nil
	}
	return &t
}

func optString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// impliedDecimal converts a digit string with two implied decimal places
// ("12345" -> 123.45).
func impliedDecimal(value string) *float64 {
	f := safeFloat(value)
	if f == nil {
		return nil
	}
	v := *f / 100
	return &v
}

// impliedRate converts a digit string with three implied decimal places
// ("05250" -> 5.25).
func impliedRate(value string) *float64 {
	f := safeFloat(value)
	if f == nil {
		return nil
	}
	v := *f / 1000
	return &v
}
