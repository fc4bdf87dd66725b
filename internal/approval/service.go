package approval

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"membership/internal/auth"
	"membership/internal/members"
	"membership/internal/store"
)

var (
	ErrNotFound       = errors.New("pending user not found")
	ErrMemberNotFound = errors.New("member not found for this roll number")
	ErrEmailPending   = errors.New("email is already awaiting approval")
	ErrRollPending    = errors.New("roll number is already awaiting approval")
	ErrAlreadyMember  = errors.New("account already registered")
	ErrIncomplete     = errors.New("email, password and roll number are required")
)

// Notifier is told about member documents changed by an approval.
type Notifier interface {
	Notify(ctx context.Context, roll int)
}

// Service runs signup and approval.
type Service struct {
	db     *sql.DB
	notify Notifier
	log    *zap.Logger
}

func NewService(db *sql.DB, n Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, notify: n, log: log.Named("approval")}
}

// Signup stores a pending registration for roll with a hashed password.
func (s *Service) Signup(ctx context.Context, email, password string, roll int) (Pending, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || roll <= 0 {
		return Pending{}, ErrIncomplete
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Pending{}, err
	}

	pending := NewRepository(s.db)
	dir := members.NewRepository(s.db)

	if ok, err := pending.ExistsEmail(ctx, email); err != nil {
		return Pending{}, err
	} else if ok {
		return Pending{}, ErrEmailPending
	}
	if ok, err := pending.ExistsRoll(ctx, roll); err != nil {
		return Pending{}, err
	} else if ok {
		return Pending{}, ErrRollPending
	}

	m, err := dir.Get(ctx, roll)
	if errors.Is(err, members.ErrNotFound) {
		return Pending{}, ErrMemberNotFound
	}
	if err != nil {
		return Pending{}, err
	}
	if m.Approved {
		return Pending{}, ErrAlreadyMember
	}
	if owner, err := dir.GetByEmail(ctx, email); err == nil && owner.RollNo != roll {
		return Pending{}, ErrAlreadyMember
	} else if err != nil && !errors.Is(err, members.ErrNotFound) {
		return Pending{}, err
	}

	p, err := pending.Insert(ctx, Pending{ID: uuid.NewString(), Email: email, PasswordHash: hash, RollNo: roll})
	if err != nil {
		return Pending{}, err
	}
	s.log.Info("signup pending", zap.String("pending_id", p.ID), zap.Int("roll_no", roll))
	return p, nil
}

// ListPending returns registrations awaiting approval.
func (s *Service) ListPending(ctx context.Context) ([]Pending, error) {
	return NewRepository(s.db).List(ctx)
}

// Approve merges the pending credentials into the member document and deletes
// the pending record in one transaction. On failure both are left untouched.
func (s *Service) Approve(ctx context.Context, id string) (members.Member, error) {
	var approved members.Member
	err := store.WithTx(ctx, s.db, nil, func(ctx context.Context, tx store.DBTX) error {
		pending := NewRepository(tx)
		dir := members.NewRepository(tx)

		p, err := pending.Get(ctx, id)
		if err != nil {
			return err
		}
		if p.Email == "" || p.PasswordHash == "" || p.RollNo <= 0 {
			return ErrIncomplete
		}
		m, err := dir.GetForUpdate(ctx, p.RollNo)
		if errors.Is(err, members.ErrNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return err
		}
		m.Email = p.Email
		m.PasswordHash = p.PasswordHash
		m.Approved = true
		if approved, err = dir.Update(ctx, m); err != nil {
			if errors.Is(err, members.ErrEmailTaken) {
				return ErrAlreadyMember
			}
			return err
		}
		return pending.Delete(ctx, id)
	})
	if err != nil {
		s.log.Warn("approval failed", zap.String("pending_id", id), zap.Error(err))
		return members.Member{}, err
	}
	s.log.Info("member approved", zap.String("pending_id", id), zap.Int("roll_no", approved.RollNo))
	if s.notify != nil {
		s.notify.Notify(ctx, approved.RollNo)
	}
	return approved, nil
}
