package members

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"membership/internal/auth"
	"membership/internal/metrics"
	"membership/internal/queue"
)

var columns = []string{"roll_no", "name", "last_name", "email", "phone_no", "address", "img", "password_hash",
	"approved", "is_admin", "is_super_admin", "attendance", "donation", "version", "created_at", "updated_at"}

const (
	selectByRoll  = `SELECT .* FROM members WHERE roll_no = \$1`
	selectByEmail = `SELECT .* FROM members WHERE email <> '' AND lower\(email\)`
	updateMember  = `UPDATE members SET`
)

type recorder struct {
	msgs []queue.Message
}

func (r *recorder) Publish(ctx context.Context, msg queue.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func memberRows(roll int, name, email string, version int64, attendance, donation string) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(columns).AddRow(roll, name, "Doe", email, "555", "Main St", "", "hash",
		true, false, false, []byte(attendance), []byte(donation), version, now, now)
}

func versionRow(version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(version, time.Now())
}

func newService(t *testing.T) (*Service, sqlmock.Sqlmock, *recorder, *metrics.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rec := &recorder{}
	m := metrics.New(prometheus.NewRegistry())
	return NewService(db, rec, m, zap.NewNop()), mock, rec, m
}

func TestMutateWritesAndNotifies(t *testing.T) {
	svc, mock, rec, _ := newService(t)

	mock.ExpectQuery(selectByRoll).WithArgs(3).WillReturnRows(memberRows(3, "Ann", "ann@x.org", 1, `{}`, `{}`))
	mock.ExpectQuery(updateMember).WillReturnRows(versionRow(2))

	m, changed, err := svc.Mutate(context.Background(), 3, func(m *Member) (bool, error) {
		m.Phone = "777"
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(2), m.Version)
	assert.Equal(t, "777", m.Phone)
	require.Len(t, rec.msgs, 1)
	roll, ok := rec.msgs[0].Roll()
	assert.True(t, ok)
	assert.Equal(t, 3, roll)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateRetriesAfterConflict(t *testing.T) {
	svc, mock, _, m := newService(t)

	mock.ExpectQuery(selectByRoll).WillReturnRows(memberRows(3, "Ann", "", 1, `{}`, `{}`))
	mock.ExpectQuery(updateMember).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectByRoll).WillReturnRows(memberRows(3, "Ann", "", 2, `{"2024":{"March":[1]}}`, `{}`))
	mock.ExpectQuery(updateMember).WillReturnRows(versionRow(3))

	calls := 0
	out, _, err := svc.Mutate(context.Background(), 3, func(m *Member) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(3), out.Version)
	assert.Equal(t, []int{1}, out.Attendance["2024"]["March"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("member")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateGivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, mock, rec, _ := newService(t)
	for i := 0; i < 3; i++ {
		mock.ExpectQuery(selectByRoll).WillReturnRows(memberRows(3, "Ann", "", int64(i+1), `{}`, `{}`))
		mock.ExpectQuery(updateMember).WillReturnError(sql.ErrNoRows)
	}

	_, _, err := svc.Mutate(context.Background(), 3, func(m *Member) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, rec.msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateSkipsUnchanged(t *testing.T) {
	svc, mock, rec, _ := newService(t)
	mock.ExpectQuery(selectByRoll).WillReturnRows(memberRows(3, "Ann", "", 1, `{}`, `{}`))

	_, changed, err := svc.Mutate(context.Background(), 3, func(m *Member) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, rec.msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateUnknownMember(t *testing.T) {
	svc, mock, _, _ := newService(t)
	mock.ExpectQuery(selectByRoll).WillReturnError(sql.ErrNoRows)

	_, _, err := svc.Mutate(context.Background(), 9, func(m *Member) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Mutate(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidRoll)
}

func TestSaveCreatesNextRoll(t *testing.T) {
	svc, mock, rec, _ := newService(t)

	mock.ExpectQuery(selectByEmail).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectByRoll).WithArgs(5).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(roll_no\), 0\) FROM members`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mock.ExpectQuery(`INSERT INTO members`).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at", "updated_at"}).AddRow(1, time.Now(), time.Now()))

	m, created, err := svc.Save(context.Background(), Profile{RollNo: 5, Name: " Bea ", Email: "Bea@X.org"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Bea", m.Name)
	assert.Equal(t, "bea@x.org", m.Email)
	assert.Len(t, rec.msgs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsGapInRollNumbers(t *testing.T) {
	svc, mock, _, _ := newService(t)

	mock.ExpectQuery(selectByRoll).WithArgs(9).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT COALESCE`).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))

	_, _, err := svc.Save(context.Background(), Profile{RollNo: 9, Name: "Cy"})
	assert.ErrorIs(t, err, ErrRollMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsEmailOfAnotherMember(t *testing.T) {
	svc, mock, _, _ := newService(t)
	mock.ExpectQuery(selectByEmail).WillReturnRows(memberRows(2, "Ann", "ann@x.org", 1, `{}`, `{}`))

	_, _, err := svc.Save(context.Background(), Profile{RollNo: 3, Email: "ann@x.org"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSoftDeleteKeepsRollOnly(t *testing.T) {
	svc, mock, _, _ := newService(t)
	mock.ExpectQuery(selectByRoll).WillReturnRows(memberRows(3, "Ann", "ann@x.org", 4, `{"2024":{"May":[2]}}`, `{"2024":{"May":"10"}}`))
	mock.ExpectQuery(updateMember).WillReturnRows(versionRow(5))

	m, err := svc.SoftDelete(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, m.RollNo)
	assert.Empty(t, m.Name)
	assert.Empty(t, m.Email)
	assert.Empty(t, m.PasswordHash)
	assert.False(t, m.Approved)
	assert.Nil(t, m.Attendance)
	assert.Nil(t, m.Donations)
	assert.Equal(t, int64(5), m.Version)
}

func TestRole(t *testing.T) {
	assert.Equal(t, auth.RoleMember, Member{}.Role())
	assert.Equal(t, auth.RoleAdmin, Member{IsAdmin: true}.Role())
	assert.Equal(t, auth.RoleSuperAdmin, Member{IsAdmin: true, IsSuperAdmin: true}.Role())
	assert.Equal(t, "Ann Doe", Member{Name: "Ann", LastName: "Doe"}.FullName())
}
