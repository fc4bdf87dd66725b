package attendance

import (
	"time"

	"membership/internal/ledger"
	"membership/internal/members"
)

// SheetRow is one member's line on the monthly sheet.
type SheetRow struct {
	RollNo int    `json:"roll_no"`
	Name   string `json:"name"`
	Days   []int  `json:"days"`
}

// Sheet is the monthly attendance grid for the roster.
type Sheet struct {
	Year        int        `json:"year"`
	Month       string     `json:"month"`
	DaysInMonth int        `json:"days_in_month"`
	Rows        []SheetRow `json:"rows"`
}

// BuildSheet lists every member's days for p.
func BuildSheet(roster []members.Member, p ledger.Period) Sheet {
	s := Sheet{Year: p.Year, Month: p.Month.String(), DaysInMonth: p.Days(), Rows: make([]SheetRow, 0, len(roster))}
	for _, m := range roster {
		s.Rows = append(s.Rows, SheetRow{RollNo: m.RollNo, Name: m.FullName(), Days: m.Attendance.Days(p)})
	}
	return s
}

// MonthActivity is one month of a member's yearly grid.
type MonthActivity struct {
	Month       string `json:"month"`
	DaysInMonth int    `json:"days_in_month"`
	Days        []int  `json:"days"`
}

// Activity is a member's twelve-month attendance grid.
type Activity struct {
	RollNo int             `json:"roll_no"`
	Year   int             `json:"year"`
	Months []MonthActivity `json:"months"`
	Total  int             `json:"total"`
}

// BuildActivity renders m's attendance for year, clamping stray days to the
// length of each month.
func BuildActivity(m members.Member, year int) Activity {
	grid := m.Attendance.Year(year)
	a := Activity{RollNo: m.RollNo, Year: year, Months: make([]MonthActivity, 0, 12)}
	for month := time.January; month <= time.December; month++ {
		days := grid[month]
		a.Total += len(days)
		a.Months = append(a.Months, MonthActivity{
			Month:       month.String(),
			DaysInMonth: ledger.DaysIn(year, month),
			Days:        days,
		})
	}
	return a
}
