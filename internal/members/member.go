// Package members owns the member directory: profile documents keyed by roll
// number with their embedded attendance and donation ledgers.
package members

import (
	"errors"
	"strings"
	"time"

	"membership/internal/auth"
	"membership/internal/ledger"
	"membership/internal/store"
)

var (
	ErrNotFound     = errors.New("member not found")
	ErrConflict     = store.ErrConflict
	ErrRollMismatch = errors.New("new members must take the next roll number")
	ErrEmailTaken   = errors.New("email belongs to another member")
	ErrInvalidRoll  = errors.New("roll number must be positive")
)

// Member is one directory entry.
type Member struct {
	RollNo       int               `json:"roll_no"`
	Name         string            `json:"name"`
	LastName     string            `json:"last_name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone_no"`
	Address      string            `json:"address"`
	ImageURL     string            `json:"img"`
	PasswordHash string            `json:"-"`
	Approved     bool              `json:"approved"`
	IsAdmin      bool              `json:"is_admin"`
	IsSuperAdmin bool              `json:"is_super_admin"`
	Attendance   ledger.Attendance `json:"attendance"`
	Donations    ledger.Donations  `json:"donation"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Role returns the highest role granted by the member's flags.
func (m Member) Role() string {
	switch {
	case m.IsSuperAdmin:
		return auth.RoleSuperAdmin
	case m.IsAdmin:
		return auth.RoleAdmin
	default:
		return auth.RoleMember
	}
}

// FullName joins the name parts.
func (m Member) FullName() string {
	return strings.TrimSpace(m.Name + " " + m.LastName)
}

// Profile holds the editable personal fields.
type Profile struct {
	RollNo   int    `json:"roll_no"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone_no"`
	Address  string `json:"address"`
}

func (p Profile) normalized() Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address = strings.TrimSpace(p.Address)
	return p
}

func (m *Member) apply(p Profile) bool {
	changed := m.Name != p.Name || m.LastName != p.LastName || m.Email != p.Email ||
		m.Phone != p.Phone || m.Address != p.Address
	m.Name, m.LastName, m.Email, m.Phone, m.Address = p.Name, p.LastName, p.Email, p.Phone, p.Address
	return changed
}

// clear wipes everything but the roll number.
func (m *Member) clear() {
	*m = Member{
		RollNo:    m.RollNo,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
	}
}
