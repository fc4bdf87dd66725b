package members

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"membership/internal/store"
)

const memberColumns = `roll_no, name, last_name, email, phone_no, address, img, password_hash,
	approved, is_admin, is_super_admin, attendance, donation, version, created_at, updated_at`

const emailIndex = "members_email_idx"

// Repository persists members in Postgres.
type Repository struct {
	db store.DBTX
}

// NewRepository binds a repository to a connection or transaction.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (Member, error) {
	var (
		m                  Member
		attendance, donate []byte
	)
	err := row.Scan(&m.RollNo, &m.Name, &m.LastName, &m.Email, &m.Phone, &m.Address, &m.ImageURL,
		&m.PasswordHash, &m.Approved, &m.IsAdmin, &m.IsSuperAdmin, &attendance, &donate,
		&m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Member{}, err
	}
	if err := json.Unmarshal(attendance, &m.Attendance); err != nil {
		return Member{}, fmt.Errorf("decode attendance for roll %d: %w", m.RollNo, err)
	}
	if err := json.Unmarshal(donate, &m.Donations); err != nil {
		return Member{}, fmt.Errorf("decode donations for roll %d: %w", m.RollNo, err)
	}
	return m, nil
}

func ledgers(m Member) ([]byte, []byte, error) {
	attendance, err := json.Marshal(emptyIfNil(m.Attendance))
	if err != nil {
		return nil, nil, err
	}
	donate, err := json.Marshal(emptyIfNil(m.Donations))
	if err != nil {
		return nil, nil, err
	}
	return attendance, donate, nil
}

func emptyIfNil[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

// List returns every member ordered by roll number.
func (r *Repository) List(ctx context.Context) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY roll_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// Get loads one member.
func (r *Repository) Get(ctx context.Context, roll int) (Member, error) {
	return r.one(ctx, `SELECT `+memberColumns+` FROM members WHERE roll_no = $1`, roll)
}

// GetForUpdate loads one member and locks the row for the enclosing transaction.
func (r *Repository) GetForUpdate(ctx context.Context, roll int) (Member, error) {
	return r.one(ctx, `SELECT `+memberColumns+` FROM members WHERE roll_no = $1 FOR UPDATE`, roll)
}

// GetByEmail loads the member owning email, compared case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Member, error) {
	return r.one(ctx, `SELECT `+memberColumns+` FROM members WHERE email <> '' AND lower(email) = lower($1)`, email)
}

func (r *Repository) one(ctx context.Context, query string, args ...any) (Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	return m, err
}

// MaxRollNo returns the highest roll number in use, zero when empty.
func (r *Repository) MaxRollNo(ctx context.Context) (int, error) {
	var max int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(roll_no), 0) FROM members`).Scan(&max)
	return max, err
}

// Insert creates a member. A taken roll number reports ErrConflict and a taken
// email ErrEmailTaken.
func (r *Repository) Insert(ctx context.Context, m Member) (Member, error) {
	attendance, donate, err := ledgers(m)
	if err != nil {
		return Member{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO members (roll_no, name, last_name, email, phone_no, address, img, password_hash,
			approved, is_admin, is_super_admin, attendance, donation)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING version, created_at, updated_at
	`, m.RollNo, m.Name, m.LastName, m.Email, m.Phone, m.Address, m.ImageURL, m.PasswordHash,
		m.Approved, m.IsAdmin, m.IsSuperAdmin, attendance, donate)
	if err := row.Scan(&m.Version, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return Member{}, uniqueErr(err)
	}
	return m, nil
}

func uniqueErr(err error) error {
	name, ok := store.UniqueConstraint(err)
	switch {
	case !ok:
		return err
	case name == emailIndex:
		return ErrEmailTaken
	default:
		return ErrConflict
	}
}

// Update writes m if its version still matches the stored one and returns the
// member with its new version. A stale version reports ErrConflict.
func (r *Repository) Update(ctx context.Context, m Member) (Member, error) {
	attendance, donate, err := ledgers(m)
	if err != nil {
		return Member{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE members SET
			name = $3, last_name = $4, email = $5, phone_no = $6, address = $7, img = $8,
			password_hash = $9, approved = $10, is_admin = $11, is_super_admin = $12,
			attendance = $13, donation = $14, version = version + 1, updated_at = NOW()
		WHERE roll_no = $1 AND version = $2
		RETURNING version, updated_at
	`, m.RollNo, m.Version, m.Name, m.LastName, m.Email, m.Phone, m.Address, m.ImageURL,
		m.PasswordHash, m.Approved, m.IsAdmin, m.IsSuperAdmin, attendance, donate)
	if err := row.Scan(&m.Version, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrConflict
		}
		return Member{}, uniqueErr(err)
	}
	return m, nil
}
