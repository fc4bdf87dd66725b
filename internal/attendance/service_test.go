package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/metrics"
)

type fakeDirectory struct {
	members map[int]*members.Member
	calls   []int
}

func (f *fakeDirectory) Mutate(ctx context.Context, roll int, fn members.MutateFunc) (members.Member, bool, error) {
	f.calls = append(f.calls, roll)
	m, ok := f.members[roll]
	if !ok {
		return members.Member{}, false, members.ErrNotFound
	}
	cp := *m
	changed, err := fn(&cp)
	if err != nil {
		return members.Member{}, false, err
	}
	if changed {
		*m = cp
	}
	return cp, changed, nil
}

func newDirectory(rolls ...int) *fakeDirectory {
	f := &fakeDirectory{members: map[int]*members.Member{}}
	for _, r := range rolls {
		f.members[r] = &members.Member{RollNo: r}
	}
	return f
}

func TestAddReportsPerTargetOutcomes(t *testing.T) {
	dir := newDirectory(1, 2)
	mt := metrics.New(prometheus.NewRegistry())
	svc := NewService(dir, mt, zap.NewNop())

	res, err := svc.Add(context.Background(), "2024", "march", 5, []int{1, 2, 7, 1})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 7}, dir.calls)
	assert.Equal(t, "March", res.Month)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	assert.Equal(t, StatusFailed, res.Results[2].Status)
	assert.ErrorIs(t, res.Results[2].Err(), members.ErrNotFound)
	assert.Equal(t, []int{5}, dir.members[1].Attendance["2024"]["March"])
	assert.Equal(t, 2.0, testutil.ToFloat64(mt.Mutations.WithLabelValues("attendance", "add", StatusUpdated)))

	res, err = svc.Add(context.Background(), "2024", "March", 5, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, []int{5}, dir.members[1].Attendance["2024"]["March"])
}

func TestAddValidatesBeforeTouchingMembers(t *testing.T) {
	dir := newDirectory(1)
	svc := NewService(dir, nil, nil)

	_, err := svc.Add(context.Background(), "2023", "February", 29, []int{1})
	assert.ErrorIs(t, err, ledger.ErrInvalidDay)
	_, err = svc.Add(context.Background(), "2023", "Smarch", 1, []int{1})
	assert.ErrorIs(t, err, ledger.ErrInvalidMonth)
	_, err = svc.Add(context.Background(), "2023", "March", 1, nil)
	assert.ErrorIs(t, err, ErrNoTargets)
	assert.Empty(t, dir.calls)
}

func TestRemovePrunesAndReportsUnchanged(t *testing.T) {
	dir := newDirectory(1, 2)
	dir.members[1].Attendance = ledger.Attendance{"2024": {"March": {5}}}
	svc := NewService(dir, nil, nil)

	res, err := svc.Remove(context.Background(), "2024", "March", 5, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
	assert.Empty(t, dir.members[1].Attendance)
}

func TestRemoveClearsDayBeyondMonthLength(t *testing.T) {
	dir := newDirectory(1)
	dir.members[1].Attendance = ledger.Attendance{"2023": {"February": {30, 3}}}
	svc := NewService(dir, nil, nil)

	res, err := svc.Remove(context.Background(), "2023", "February", 30, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []int{3}, dir.members[1].Attendance.Days(ledger.Period{Year: 2023, Month: time.February}))

	_, err = svc.Add(context.Background(), "2023", "February", 30, []int{1})
	assert.ErrorIs(t, err, ledger.ErrInvalidDay)
	_, err = svc.Remove(context.Background(), "2023", "February", 32, []int{1})
	assert.ErrorIs(t, err, ledger.ErrInvalidDay)
}

func TestBuildSheetAndActivity(t *testing.T) {
	roster := []members.Member{
		{RollNo: 1, Name: "Ann", LastName: "Doe", Attendance: ledger.Attendance{"2024": {"February": {10, 2}}}},
		{RollNo: 2, Name: "Bo"},
	}
	p := ledger.Period{Year: 2024, Month: time.February}
	sheet := BuildSheet(roster, p)
	assert.Equal(t, 29, sheet.DaysInMonth)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Ann Doe", sheet.Rows[0].Name)
	assert.Equal(t, []int{2, 10}, sheet.Rows[0].Days)
	assert.Empty(t, sheet.Rows[1].Days)

	act := BuildActivity(roster[0], 2024)
	require.Len(t, act.Months, 12)
	assert.Equal(t, "February", act.Months[1].Month)
	assert.Equal(t, 29, act.Months[1].DaysInMonth)
	assert.Equal(t, 2, act.Total)
}
