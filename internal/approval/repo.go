// Package approval holds self-registered accounts until an admin links them
// to a member record.
package approval

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"membership/internal/store"
)

// Pending is a registration awaiting approval.
type Pending struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RollNo       int       `json:"roll_no"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists pending users in Postgres.
type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

const pendingColumns = `id, email, password_hash, roll_no, approved, created_at`

func scanPending(row interface{ Scan(...any) error }) (Pending, error) {
	var p Pending
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.RollNo, &p.Approved, &p.CreatedAt)
	return p, err
}

// Insert stores p. Duplicate emails or roll numbers report ErrEmailPending or
// ErrRollPending.
func (r *Repository) Insert(ctx context.Context, p Pending) (Pending, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pending_users (id, email, password_hash, roll_no, approved)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING created_at
	`, p.ID, p.Email, p.PasswordHash, p.RollNo).Scan(&p.CreatedAt)
	if name, ok := store.UniqueConstraint(err); ok {
		if name == "pending_users_roll_idx" {
			return Pending{}, ErrRollPending
		}
		return Pending{}, ErrEmailPending
	}
	if err != nil {
		return Pending{}, err
	}
	return p, nil
}

// List returns pending users oldest first.
func (r *Repository) List(ctx context.Context) ([]Pending, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pendingColumns+` FROM pending_users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Pending
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Get loads one pending user and locks it for the enclosing transaction.
func (r *Repository) Get(ctx context.Context, id string) (Pending, error) {
	p, err := scanPending(r.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_users WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Pending{}, ErrNotFound
	}
	return p, err
}

// GetByEmail loads the pending registration for email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Pending, error) {
	p, err := scanPending(r.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return Pending{}, ErrNotFound
	}
	return p, err
}

// ExistsEmail reports whether email is already pending.
func (r *Repository) ExistsEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM pending_users WHERE lower(email) = lower($1))`, email)
}

// ExistsRoll reports whether roll is already pending.
func (r *Repository) ExistsRoll(ctx context.Context, roll int) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM pending_users WHERE roll_no = $1)`, roll)
}

func (r *Repository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&ok)
	return ok, err
}

// Delete removes a pending user.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
