package expenses

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"membership/internal/ledger"
	"membership/internal/metrics"
	"membership/internal/queue"
	"membership/internal/store"
)

// Publisher receives change notifications after successful writes.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service appends to and removes from the shared ledger with versioned writes.
type Service struct {
	repo     *Repository
	events   Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	newID    ledger.IDFunc
	attempts int
}

func NewService(db *sql.DB, events Publisher, mt *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     NewRepository(db),
		events:   events,
		metrics:  mt,
		log:      log.Named("expenses"),
		newID:    ledger.NewID,
		attempts: store.DefaultAttempts,
	}
}

// Ledger returns the whole document.
func (s *Service) Ledger(ctx context.Context) (Document, error) {
	return s.repo.Load(ctx)
}

// List returns the expenses recorded for (year, month).
func (s *Service) List(ctx context.Context, year, month string) ([]ledger.Expense, error) {
	p, err := ledger.ParsePeriod(year, month)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Entries.List(p), nil
}

// Add records a new expense under a fresh id.
func (s *Service) Add(ctx context.Context, year, month string, amount decimal.Decimal, description string) (ledger.Expense, error) {
	p, err := ledger.ParsePeriod(year, month)
	if err != nil {
		return ledger.Expense{}, err
	}
	var added ledger.Expense
	err = s.update(ctx, func(doc *Document) (bool, error) {
		var err error
		added, err = doc.Entries.Append(p, amount, description, s.newID)
		return err == nil, err
	})
	s.observe("add", err)
	if err != nil {
		return ledger.Expense{}, err
	}
	s.log.Info("expense added", zap.String("id", added.ID), zap.Stringer("period", p), zap.Stringer("amount", added.Amount))
	return added, nil
}

// Remove deletes the expense with id. It reports false when no such expense
// exists, which is not an error.
func (s *Service) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.update(ctx, func(doc *Document) (bool, error) {
		removed = doc.Entries.Remove(id)
		return removed, nil
	})
	s.observe("remove", err)
	if err == nil && removed {
		s.log.Info("expense removed", zap.String("id", id))
	}
	return removed, err
}

func (s *Service) update(ctx context.Context, fn func(doc *Document) (bool, error)) error {
	var changed bool
	err := store.Optimistic(ctx, s.attempts, func(int) { s.metrics.Retry("expenses") }, func(ctx context.Context) error {
		doc, err := s.repo.Load(ctx)
		if err != nil {
			return err
		}
		changed, err = fn(&doc)
		if err != nil || !changed {
			return err
		}
		_, err = s.repo.Save(ctx, doc)
		return err
	})
	if err == nil && changed && s.events != nil {
		if perr := s.events.Publish(ctx, queue.Message{Type: queue.TypeExpensesChanged}); perr != nil {
			s.log.Warn("publish expense change failed", zap.Error(perr))
		}
	}
	return err
}

func (s *Service) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Mutation("expense", op, "updated")
	case ledger.IsInvalid(err):
		s.metrics.Mutation("expense", op, "rejected")
	default:
		s.metrics.Mutation("expense", op, "failed")
		s.log.Error("expense write failed", zap.String("op", op), zap.Error(err))
	}
}
