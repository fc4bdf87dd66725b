package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"membership/internal/metrics"
	"membership/internal/queue"
	"membership/internal/store"
)

// Publisher receives change notifications after successful writes.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// MutateFunc edits a member in place and reports whether anything changed.
type MutateFunc func(m *Member) (bool, error)

// Service coordinates directory reads and versioned writes.
type Service struct {
	db       *sql.DB
	repo     *Repository
	events   Publisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	attempts int
}

// NewService creates a service backed by db. events and m may be nil.
func NewService(db *sql.DB, events Publisher, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		repo:     NewRepository(db),
		events:   events,
		metrics:  m,
		log:      log.Named("members"),
		attempts: store.DefaultAttempts,
	}
}

// DB exposes the pool for callers composing transactions.
func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) List(ctx context.Context) ([]Member, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, roll int) (Member, error) {
	if roll <= 0 {
		return Member{}, ErrInvalidRoll
	}
	return s.repo.Get(ctx, roll)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (Member, error) {
	return s.repo.GetByEmail(ctx, email)
}

// NextRollNo returns one past the highest roll number in use.
func (s *Service) NextRollNo(ctx context.Context) (int, error) {
	max, err := s.repo.MaxRollNo(ctx)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// Mutate applies fn to the current version of a member and stores the result,
// re-reading and retrying when another writer got there first. Unchanged
// members are not written.
func (s *Service) Mutate(ctx context.Context, roll int, fn MutateFunc) (Member, bool, error) {
	if roll <= 0 {
		return Member{}, false, ErrInvalidRoll
	}
	var (
		out     Member
		changed bool
	)
	err := store.Optimistic(ctx, s.attempts, func(attempt int) {
		s.metrics.Retry("member")
		s.log.Debug("retrying member write", zap.Int("roll_no", roll), zap.Int("attempt", attempt))
	}, func(ctx context.Context) error {
		m, err := s.repo.Get(ctx, roll)
		if err != nil {
			return err
		}
		changed, err = fn(&m)
		if err != nil {
			return err
		}
		if !changed {
			out = m
			return nil
		}
		out, err = s.repo.Update(ctx, m)
		return err
	})
	if err != nil {
		return Member{}, false, err
	}
	if changed {
		s.Notify(ctx, roll)
	}
	return out, changed, nil
}

// Notify publishes a change event for roll. Failures are logged only; the
// cache expires on its own.
func (s *Service) Notify(ctx context.Context, roll int) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, queue.MemberChanged(roll)); err != nil {
		s.log.Warn("publish member change failed", zap.Int("roll_no", roll), zap.Error(err))
	}
}

// Save merges p into an existing member or creates a new one. New members
// must take the next roll number.
func (s *Service) Save(ctx context.Context, p Profile) (Member, bool, error) {
	p = p.normalized()
	if p.RollNo <= 0 {
		return Member{}, false, ErrInvalidRoll
	}
	if p.Email != "" {
		owner, err := s.repo.GetByEmail(ctx, p.Email)
		switch {
		case err == nil && owner.RollNo != p.RollNo:
			return Member{}, false, ErrEmailTaken
		case err != nil && !errors.Is(err, ErrNotFound):
			return Member{}, false, err
		}
	}

	m, _, err := s.Mutate(ctx, p.RollNo, func(m *Member) (bool, error) {
		return m.apply(p), nil
	})
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Member{}, false, err
	}

	next, err := s.NextRollNo(ctx)
	if err != nil {
		return Member{}, false, err
	}
	if p.RollNo != next {
		return Member{}, false, fmt.Errorf("%w: expected %d", ErrRollMismatch, next)
	}
	var fresh Member
	fresh.RollNo = p.RollNo
	fresh.apply(p)
	created, err := s.repo.Insert(ctx, fresh)
	if err != nil {
		return Member{}, false, err
	}
	s.log.Info("member created", zap.Int("roll_no", created.RollNo))
	s.Notify(ctx, created.RollNo)
	return created, true, nil
}

// SoftDelete clears a member's personal data, ledgers, credentials and roles
// while keeping the roll number reserved.
func (s *Service) SoftDelete(ctx context.Context, roll int) (Member, error) {
	m, _, err := s.Mutate(ctx, roll, func(m *Member) (bool, error) {
		m.clear()
		return true, nil
	})
	if err == nil {
		s.log.Info("member cleared", zap.Int("roll_no", roll))
	}
	return m, err
}

// SetImage stores the profile image URL.
func (s *Service) SetImage(ctx context.Context, roll int, url string) (Member, error) {
	m, _, err := s.Mutate(ctx, roll, func(m *Member) (bool, error) {
		if m.ImageURL == url {
			return false, nil
		}
		m.ImageURL = url
		return true, nil
	})
	return m, err
}

// SetRoles updates the admin flags.
func (s *Service) SetRoles(ctx context.Context, roll int, admin, superAdmin bool) (Member, error) {
	m, _, err := s.Mutate(ctx, roll, func(m *Member) (bool, error) {
		if m.IsAdmin == admin && m.IsSuperAdmin == superAdmin {
			return false, nil
		}
		m.IsAdmin, m.IsSuperAdmin = admin, superAdmin
		return true, nil
	})
	return m, err
}
