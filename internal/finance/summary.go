// Package finance aggregates donations and expenses from a roster snapshot.
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"membership/internal/ledger"
	"membership/internal/members"
)

// Summary is the yearly balance. AsOf is when the underlying data was read,
// so callers can see how stale it is.
type Summary struct {
	Year      int             `json:"year"`
	Donations decimal.Decimal `json:"donations"`
	Expenses  decimal.Decimal `json:"expenses"`
	Remaining decimal.Decimal `json:"remaining"`
	AsOf      time.Time       `json:"as_of"`
}

// Summarize totals every member's donations and every expense for year.
func Summarize(roster []members.Member, ex ledger.Expenses, year int, asOf time.Time) Summary {
	donations := decimal.Zero
	for _, m := range roster {
		donations = donations.Add(m.Donations.YearTotal(year))
	}
	spent := ex.YearTotal(year)
	return Summary{
		Year:      year,
		Donations: donations,
		Expenses:  spent,
		Remaining: donations.Sub(spent),
		AsOf:      asOf,
	}
}

// MemberDonation is one member's contribution for a month.
type MemberDonation struct {
	RollNo int             `json:"roll_no"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the monthly view used when managing finances.
type Breakdown struct {
	Year           int              `json:"year"`
	Month          string           `json:"month"`
	Donations      []MemberDonation `json:"donations"`
	TotalDonations decimal.Decimal  `json:"total_donations"`
	Expenses       []ledger.Expense `json:"expenses"`
	TotalExpenses  decimal.Decimal  `json:"total_expenses"`
	AsOf           time.Time        `json:"as_of"`
}

// MonthBreakdown lists each member's donation and the expenses for p.
func MonthBreakdown(roster []members.Member, ex ledger.Expenses, p ledger.Period, asOf time.Time) Breakdown {
	b := Breakdown{
		Year:           p.Year,
		Month:          p.Month.String(),
		Donations:      make([]MemberDonation, 0, len(roster)),
		TotalDonations: decimal.Zero,
		Expenses:       ex.List(p),
		TotalExpenses:  decimal.Zero,
		AsOf:           asOf,
	}
	for _, m := range roster {
		amount := m.Donations.Amount(p)
		b.Donations = append(b.Donations, MemberDonation{RollNo: m.RollNo, Name: m.FullName(), Amount: amount})
		b.TotalDonations = b.TotalDonations.Add(amount)
	}
	for _, x := range b.Expenses {
		b.TotalExpenses = b.TotalExpenses.Add(x.Amount)
	}
	return b
}
