package ledger

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Donations maps year -> month name -> cumulative amount.
type Donations map[string]map[string]decimal.Decimal

// ParseAmount parses a positive decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, CheckAmount(d)
}

// CheckAmount rejects zero and negative amounts.
func CheckAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Amount returns the amount for p, zero when absent.
func (d Donations) Amount(p Period) decimal.Decimal {
	if v, ok := d[p.yearKey()][p.monthKey()]; ok {
		return v
	}
	return decimal.Zero
}

// Add increments the amount for p and returns the new total.
func (d *Donations) Add(p Period, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := CheckAmount(amount); err != nil {
		return decimal.Zero, err
	}
	if *d == nil {
		*d = Donations{}
	}
	months, ok := (*d)[p.yearKey()]
	if !ok {
		months = map[string]decimal.Decimal{}
		(*d)[p.yearKey()] = months
	}
	total := months[p.monthKey()].Add(amount)
	months[p.monthKey()] = total
	return total, nil
}

// Remove subtracts amount from p with a floor of zero. A zero result prunes
// the month, and the year once it has no months left.
func (d Donations) Remove(p Period, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := CheckAmount(amount); err != nil {
		return decimal.Zero, err
	}
	months, ok := d[p.yearKey()]
	if !ok {
		return decimal.Zero, ErrNothingToSubtract
	}
	current, ok := months[p.monthKey()]
	if !ok {
		return decimal.Zero, ErrNothingToSubtract
	}
	remaining := decimal.Max(decimal.Zero, current.Sub(amount))
	if remaining.IsZero() {
		delete(months, p.monthKey())
		if len(months) == 0 {
			delete(d, p.yearKey())
		}
		return decimal.Zero, nil
	}
	months[p.monthKey()] = remaining
	return remaining, nil
}

// YearTotal sums every month of year.
func (d Donations) YearTotal(year int) decimal.Decimal {
	total := decimal.Zero
	for _, v := range d[strconv.Itoa(year)] {
		total = total.Add(v)
	}
	return total
}
