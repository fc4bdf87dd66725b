// Package ledger holds the nested year/month ledgers embedded in member
// documents and in the shared expense document. Everything here is pure data
// manipulation; persistence and concurrency live in the calling services.
package ledger

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrEmptyDescription   = errors.New("description required")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrNothingToSubtract  = errors.New("no donation found for the selected date to subtract from")
)

const (
	MinYear = 1900
	MaxYear = 9999

	MaxDescriptionLen = 200
)

// IsInvalid reports whether err is an input validation failure.
func IsInvalid(err error) bool {
	for _, target := range []error{ErrInvalidYear, ErrInvalidMonth, ErrInvalidDay, ErrInvalidAmount, ErrEmptyDescription, ErrDescriptionTooLong} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Period addresses one month of one year.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod validates a year and a case-insensitive month name.
func ParsePeriod(year, month string) (Period, error) {
	y, err := ParseYear(year)
	if err != nil {
		return Period{}, err
	}
	m, err := ParseMonth(month)
	if err != nil {
		return Period{}, err
	}
	return Period{Year: y, Month: m}, nil
}

// ParseYear accepts a decimal year in [MinYear, MaxYear].
func ParseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < MinYear || y > MaxYear {
		return 0, ErrInvalidYear
	}
	return y, nil
}

// ParseMonth maps an English month name, in any case, to time.Month.
func ParseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, nil
		}
	}
	return 0, ErrInvalidMonth
}

// DaysIn returns the number of days in the given month, leap years included.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (p Period) Days() int { return DaysIn(p.Year, p.Month) }

func (p Period) yearKey() string  { return strconv.Itoa(p.Year) }
func (p Period) monthKey() string { return p.Month.String() }

func (p Period) String() string { return p.monthKey() + " " + p.yearKey() }

// CheckDay validates day against the calendar length of the period.
func (p Period) CheckDay(day int) error {
	if day < 1 || day > p.Days() {
		return ErrInvalidDay
	}
	return nil
}
