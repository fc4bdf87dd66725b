// Package attendance records member attendance days in batches and renders
// the sheet and yearly activity views.
package attendance

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/metrics"
)

// ErrNoTargets is returned for a batch without roll numbers.
var ErrNoTargets = errors.New("at least one roll number required")

// Outcome statuses.
const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
)

// Mutator is the slice of the member directory the ledger services need.
type Mutator interface {
	Mutate(ctx context.Context, roll int, fn members.MutateFunc) (members.Member, bool, error)
}

// Outcome reports what happened to one target of a batch.
type Outcome struct {
	RollNo int    `json:"roll_no"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	err error
}

// Err returns the failure for a failed outcome.
func (o Outcome) Err() error { return o.err }

// BatchResult aggregates per-target outcomes. Targets are independent: a
// failure never rolls back earlier updates.
type BatchResult struct {
	Year      int       `json:"year"`
	Month     string    `json:"month"`
	Day       int       `json:"day"`
	Results   []Outcome `json:"results"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
}

func (b *BatchResult) record(o Outcome) {
	switch o.Status {
	case StatusUpdated:
		b.Updated++
	case StatusUnchanged:
		b.Unchanged++
	case StatusFailed:
		b.Failed++
	}
	b.Results = append(b.Results, o)
}

// Service applies attendance changes to member documents.
type Service struct {
	members Mutator
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewService creates a service writing through members.
func NewService(m Mutator, mt *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{members: m, metrics: mt, log: log.Named("attendance")}
}

// Add marks day as attended for every roll number.
func (s *Service) Add(ctx context.Context, year, month string, day int, rolls []int) (BatchResult, error) {
	return s.apply(ctx, "add", year, month, day, rolls, ledger.Period.CheckDay, func(a *ledger.Attendance, p ledger.Period) (bool, error) {
		return a.Add(p, day)
	})
}

// Remove clears day for every roll number. Days beyond the month's length are
// accepted so entries stored before write validation can still be cleared.
func (s *Service) Remove(ctx context.Context, year, month string, day int, rolls []int) (BatchResult, error) {
	return s.apply(ctx, "remove", year, month, day, rolls, anyCalendarDay, func(a *ledger.Attendance, p ledger.Period) (bool, error) {
		return a.Remove(p, day), nil
	})
}

type editFunc func(a *ledger.Attendance, p ledger.Period) (bool, error)

type dayCheck func(p ledger.Period, day int) error

func anyCalendarDay(_ ledger.Period, day int) error {
	if day < 1 || day > 31 {
		return ledger.ErrInvalidDay
	}
	return nil
}

func (s *Service) apply(ctx context.Context, op, year, month string, day int, rolls []int, check dayCheck, edit editFunc) (BatchResult, error) {
	p, err := ledger.ParsePeriod(year, month)
	if err != nil {
		return BatchResult{}, err
	}
	if err := check(p, day); err != nil {
		return BatchResult{}, err
	}
	targets := dedupe(rolls)
	if len(targets) == 0 {
		return BatchResult{}, ErrNoTargets
	}

	res := BatchResult{Year: p.Year, Month: p.Month.String(), Day: day}
	for _, roll := range targets {
		if err := ctx.Err(); err != nil {
			res.record(failed(roll, err))
			continue
		}
		_, changed, err := s.members.Mutate(ctx, roll, func(m *members.Member) (bool, error) {
			return edit(&m.Attendance, p)
		})
		var o Outcome
		switch {
		case err != nil:
			o = failed(roll, err)
			s.log.Warn("attendance update failed",
				zap.String("op", op), zap.Int("roll_no", roll), zap.Stringer("period", p), zap.Error(err))
		case changed:
			o = Outcome{RollNo: roll, Status: StatusUpdated}
		default:
			o = Outcome{RollNo: roll, Status: StatusUnchanged}
		}
		s.metrics.Mutation("attendance", op, o.Status)
		res.record(o)
	}
	s.log.Info("attendance batch applied",
		zap.String("op", op), zap.Stringer("period", p), zap.Int("day", day),
		zap.Int("updated", res.Updated), zap.Int("unchanged", res.Unchanged), zap.Int("failed", res.Failed))
	return res, nil
}

func failed(roll int, err error) Outcome {
	return Outcome{RollNo: roll, Status: StatusFailed, Error: err.Error(), err: err}
}

func dedupe(rolls []int) []int {
	seen := make(map[int]struct{}, len(rolls))
	out := make([]int, 0, len(rolls))
	for _, r := range rolls {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
