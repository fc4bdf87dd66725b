// Package account signs members in and out and rotates refresh tokens.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"membership/internal/approval"
	"membership/internal/auth"
	"membership/internal/members"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPendingApproval    = errors.New("account not approved yet")
	ErrNotApproved        = errors.New("account not approved")
)

// Directory looks up members.
type Directory interface {
	Get(ctx context.Context, roll int) (members.Member, error)
	GetByEmail(ctx context.Context, email string) (members.Member, error)
}

// PendingLookup finds registrations still awaiting approval.
type PendingLookup interface {
	GetByEmail(ctx context.Context, email string) (approval.Pending, error)
}

// TokenStore tracks issued refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, roll int, token string, expiresAt time.Time) error
	Consume(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, roll int) error
}

// ProfileCache is warmed on login and dropped on logout.
type ProfileCache interface {
	PutProfile(ctx context.Context, m members.Member)
	DropProfile(ctx context.Context, roll int) error
}

// Session is the result of a successful login.
type Session struct {
	Tokens auth.TokenPair `json:"tokens"`
	Member members.Member `json:"member"`
}

// Service authenticates members.
type Service struct {
	members Directory
	pending PendingLookup
	tokens  TokenStore
	issuer  *auth.Issuer
	cache   ProfileCache
	log     *zap.Logger
}

func NewService(dir Directory, pending PendingLookup, tokens TokenStore, issuer *auth.Issuer, cache ProfileCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{members: dir, pending: pending, tokens: tokens, issuer: issuer, cache: cache, log: log.Named("account")}
}

// Login checks credentials and issues a token pair whose role comes from the
// member record.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	p, err := s.pending.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !auth.CheckPassword(p.PasswordHash, password) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, ErrPendingApproval
	case !errors.Is(err, approval.ErrNotFound):
		return Session{}, err
	}

	m, err := s.members.GetByEmail(ctx, email)
	if errors.Is(err, members.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(m.PasswordHash, password) {
		s.log.Info("login rejected", zap.Int("roll_no", m.RollNo))
		return Session{}, ErrInvalidCredentials
	}
	if !m.Approved {
		return Session{}, ErrNotApproved
	}

	pair, err := s.issue(ctx, m)
	if err != nil {
		return Session{}, err
	}
	if s.cache != nil {
		s.cache.PutProfile(ctx, m)
	}
	s.log.Info("login", zap.Int("roll_no", m.RollNo), zap.String("role", m.Role()))
	return Session{Tokens: pair, Member: m}, nil
}

// Refresh rotates a refresh token. The old token is revoked and the role is
// re-read so demotions take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.issuer.Parse(refreshToken, auth.KindRefresh)
	if err != nil {
		return auth.TokenPair{}, auth.ErrInvalidToken
	}
	roll, err := claims.RollNo()
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.tokens.Consume(ctx, refreshToken); err != nil {
		return auth.TokenPair{}, err
	}
	m, err := s.members.Get(ctx, roll)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !m.Approved {
		return auth.TokenPair{}, ErrNotApproved
	}
	return s.issue(ctx, m)
}

// Logout revokes refreshToken, or every token of roll when it is empty, and
// drops the cached profile. A token issued to another member is rejected.
func (s *Service) Logout(ctx context.Context, roll int, refreshToken string) error {
	var err error
	if refreshToken != "" {
		claims, perr := s.issuer.Parse(refreshToken, auth.KindRefresh)
		if perr != nil {
			return auth.ErrInvalidToken
		}
		if owner, rerr := claims.RollNo(); rerr != nil || owner != roll {
			s.log.Warn("logout with foreign refresh token", zap.Int("roll_no", roll))
			return auth.ErrInvalidToken
		}
		err = s.tokens.Consume(ctx, refreshToken)
		if errors.Is(err, auth.ErrTokenRevoked) {
			err = nil
		}
	} else {
		err = s.tokens.RevokeAll(ctx, roll)
	}
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DropProfile(ctx, roll); err != nil {
			s.log.Warn("drop profile failed", zap.Int("roll_no", roll), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) issue(ctx context.Context, m members.Member) (auth.TokenPair, error) {
	pair, err := s.issuer.Issue(m.RollNo, m.Role())
	if err != nil {
		return auth.TokenPair{}, err
	}
	if err := s.tokens.Save(ctx, m.RollNo, pair.RefreshToken, pair.RefreshExp); err != nil {
		return auth.TokenPair{}, err
	}
	return pair, nil
}
