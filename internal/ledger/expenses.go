package ledger

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a single shared expense entry.
type Expense struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Expenses maps year -> month name -> expenses in insertion order.
type Expenses map[string]map[string][]Expense

// IDFunc generates expense ids.
type IDFunc func() string

// NewID is the default expense id generator.
var NewID IDFunc = uuid.NewString

// List returns a copy of the expenses recorded for p.
func (e Expenses) List(p Period) []Expense {
	src := e[p.yearKey()][p.monthKey()]
	out := make([]Expense, len(src))
	copy(out, src)
	return out
}

// Contains reports whether id is used anywhere in the ledger.
func (e Expenses) Contains(id string) bool {
	for _, months := range e {
		for _, list := range months {
			for _, x := range list {
				if x.ID == id {
					return true
				}
			}
		}
	}
	return false
}

// Append validates and stores a new expense for p. Ids colliding with an
// existing entry are regenerated.
func (e *Expenses) Append(p Period, amount decimal.Decimal, description string, newID IDFunc) (Expense, error) {
	if err := CheckAmount(amount); err != nil {
		return Expense{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Expense{}, ErrEmptyDescription
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return Expense{}, ErrDescriptionTooLong
	}
	if newID == nil {
		newID = NewID
	}
	id := newID()
	for id == "" || e.Contains(id) {
		id = newID()
	}
	if *e == nil {
		*e = Expenses{}
	}
	months, ok := (*e)[p.yearKey()]
	if !ok {
		months = map[string][]Expense{}
		(*e)[p.yearKey()] = months
	}
	x := Expense{ID: id, Amount: amount, Description: description}
	months[p.monthKey()] = append(months[p.monthKey()], x)
	return x, nil
}

// Remove deletes the expense with id wherever it is. It reports false when
// no such expense exists.
func (e Expenses) Remove(id string) bool {
	for year, months := range e {
		for month, list := range months {
			for i, x := range list {
				if x.ID != id {
					continue
				}
				list = append(list[:i:i], list[i+1:]...)
				if len(list) == 0 {
					delete(months, month)
				} else {
					months[month] = list
				}
				if len(months) == 0 {
					delete(e, year)
				}
				return true
			}
		}
	}
	return false
}

// YearTotal sums every expense recorded in year.
func (e Expenses) YearTotal(year int) decimal.Decimal {
	total := decimal.Zero
	for _, list := range e[strconv.Itoa(year)] {
		for _, x := range list {
			total = total.Add(x.Amount)
		}
	}
	return total
}
