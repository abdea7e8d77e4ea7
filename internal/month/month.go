// Package month handles year-month identifiers for expense sheets.
//
// The external form is "2006-01" (slash commands, Drive folder lookups).
// The worksheet form is "2006_01". Sheets created before the naming change
// used the external form as the worksheet title, so both are accepted when
// resolving a worksheet.
package month

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var ymPattern = regexp.MustCompile(`^(\d{4})([-_/])(\d{1,2})$`)

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Parse parses an external year-month string such as "2025-02".
// "2025/02" and "2025_02" are tolerated as input.
func Parse(s string) (YearMonth, error) {
	m := ymPattern.FindStringSubmatch(s)
	if m == nil {
		return YearMonth{}, fmt.Errorf("invalid year-month %q (expected YYYY-MM)", s)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year in %q", s)
	}
	mon, err := strconv.Atoi(m[3])
	if err != nil || mon < 1 || mon > 12 {
		return YearMonth{}, fmt.Errorf("invalid month in %q", s)
	}
	return YearMonth{Year: year, Month: time.Month(mon)}, nil
}

// FromTime returns the YearMonth containing t.
func FromTime(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// MatchSheetTitle reports whether a worksheet title refers to this month,
// accepting both the current "2006_01" and the legacy "2006-01" naming.
func (ym YearMonth) MatchSheetTitle(title string) bool {
	return title == ym.SheetName() || title == ym.String()
}

// String returns the external form, e.g. "2025-02".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// SheetName returns the worksheet title form, e.g. "2025_02".
func (ym YearMonth) SheetName() string {
	return fmt.Sprintf("%04d_%02d", ym.Year, int(ym.Month))
}

// FirstDay returns midnight on the first day of the month in the local zone.
func (ym YearMonth) FirstDay() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.Local)
}

// FirstDayString returns the first day in the sheet's date format, e.g. "2025/02/01".
func (ym YearMonth) FirstDayString() string {
	return fmt.Sprintf("%04d/%02d/01", ym.Year, int(ym.Month))
}

// IsZero reports whether ym is the zero value.
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}
