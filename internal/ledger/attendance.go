package ledger

import (
	"slices"
	"strconv"
	"time"
)

// Attendance maps year -> month name -> attended days.
type Attendance map[string]map[string][]int

// Days returns a sorted copy of the days recorded for p.
func (a Attendance) Days(p Period) []int {
	days := slices.Clone(a[p.yearKey()][p.monthKey()])
	slices.Sort(days)
	return days
}

// Has reports whether day is recorded for p.
func (a Attendance) Has(p Period, day int) bool {
	return slices.Contains(a[p.yearKey()][p.monthKey()], day)
}

// Add records day for p. Adding an existing day is a no-op and reports false.
func (a *Attendance) Add(p Period, day int) (bool, error) {
	if err := p.CheckDay(day); err != nil {
		return false, err
	}
	if a.Has(p, day) {
		return false, nil
	}
	if *a == nil {
		*a = Attendance{}
	}
	months, ok := (*a)[p.yearKey()]
	if !ok {
		months = map[string][]int{}
		(*a)[p.yearKey()] = months
	}
	months[p.monthKey()] = append(months[p.monthKey()], day)
	return true, nil
}

// Remove drops day from p, pruning the month and year once they are empty.
func (a Attendance) Remove(p Period, day int) bool {
	months, ok := a[p.yearKey()]
	if !ok {
		return false
	}
	days := months[p.monthKey()]
	idx := slices.Index(days, day)
	if idx < 0 {
		return false
	}
	days = slices.DeleteFunc(days, func(d int) bool { return d == day })
	if len(days) == 0 {
		delete(months, p.monthKey())
	} else {
		months[p.monthKey()] = days
	}
	if len(months) == 0 {
		delete(a, p.yearKey())
	}
	return true
}

// Year returns the days recorded for every month of year, clamped to the
// calendar length of each month. Months without data map to an empty slice.
func (a Attendance) Year(year int) map[time.Month][]int {
	out := make(map[time.Month][]int, 12)
	months := a[strconv.Itoa(year)]
	for m := time.January; m <= time.December; m++ {
		limit := DaysIn(year, m)
		days := make([]int, 0, len(months[m.String()]))
		for _, d := range months[m.String()] {
			if d >= 1 && d <= limit {
				days = append(days, d)
			}
		}
		slices.Sort(days)
		out[m] = days
	}
	return out
}
