// Package donations records per-member monthly donation totals.
package donations

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/metrics"
)

// Mutator is the slice of the member directory this service writes through.
type Mutator interface {
	Mutate(ctx context.Context, roll int, fn members.MutateFunc) (members.Member, bool, error)
}

// Service adds to and subtracts from member donation ledgers.
type Service struct {
	members Mutator
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewService(m Mutator, mt *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{members: m, metrics: mt, log: log.Named("donations")}
}

// Add increments the donation for (year, month) and returns the new total.
func (s *Service) Add(ctx context.Context, year, month string, amount decimal.Decimal, roll int) (decimal.Decimal, error) {
	p, err := ledger.ParsePeriod(year, month)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ledger.CheckAmount(amount); err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	_, _, err = s.members.Mutate(ctx, roll, func(m *members.Member) (bool, error) {
		var err error
		total, err = m.Donations.Add(p, amount)
		return err == nil, err
	})
	s.observe("add", roll, p, amount, err)
	return total, err
}

// Remove subtracts amount, flooring at zero, and returns what remains.
func (s *Service) Remove(ctx context.Context, year, month string, amount decimal.Decimal, roll int) (decimal.Decimal, error) {
	p, err := ledger.ParsePeriod(year, month)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ledger.CheckAmount(amount); err != nil {
		return decimal.Zero, err
	}
	var remaining decimal.Decimal
	_, _, err = s.members.Mutate(ctx, roll, func(m *members.Member) (bool, error) {
		var err error
		remaining, err = m.Donations.Remove(p, amount)
		return err == nil, err
	})
	s.observe("remove", roll, p, amount, err)
	return remaining, err
}

func (s *Service) observe(op string, roll int, p ledger.Period, amount decimal.Decimal, err error) {
	fields := []zap.Field{zap.String("op", op), zap.Int("roll_no", roll), zap.Stringer("period", p), zap.Stringer("amount", amount)}
	switch {
	case err == nil:
		s.metrics.Mutation("donation", op, "updated")
		s.log.Info("donation recorded", fields...)
	case errors.Is(err, ledger.ErrNothingToSubtract), errors.Is(err, members.ErrNotFound):
		s.metrics.Mutation("donation", op, "rejected")
		s.log.Info("donation rejected", append(fields, zap.Error(err))...)
	default:
		s.metrics.Mutation("donation", op, "failed")
		s.log.Error("donation write failed", append(fields, zap.Error(err))...)
	}
}
