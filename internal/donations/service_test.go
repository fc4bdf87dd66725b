package donations

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/metrics"
)

type fakeDirectory struct {
	member *members.Member
	writes int
}

func (f *fakeDirectory) Mutate(ctx context.Context, roll int, fn members.MutateFunc) (members.Member, bool, error) {
	if f.member == nil || f.member.RollNo != roll {
		return members.Member{}, false, members.ErrNotFound
	}
	cp := *f.member
	cp.Donations = ledger.Donations{}
	for y, months := range f.member.Donations {
		cp.Donations[y] = map[string]decimal.Decimal{}
		for m, v := range months {
			cp.Donations[y][m] = v
		}
	}
	changed, err := fn(&cp)
	if err != nil {
		return members.Member{}, false, err
	}
	if changed {
		f.writes++
		*f.member = cp
	}
	return cp, changed, nil
}

func TestAddThenRemove(t *testing.T) {
	dir := &fakeDirectory{member: &members.Member{RollNo: 4}}
	mt := metrics.New(prometheus.NewRegistry())
	svc := NewService(dir, mt, zap.NewNop())
	ctx := context.Background()

	total, err := svc.Add(ctx, "2024", "june", decimal.NewFromInt(40), 4)
	require.NoError(t, err)
	assert.Equal(t, "40", total.String())

	total, err = svc.Add(ctx, "2024", "June", decimal.NewFromInt(10), 4)
	require.NoError(t, err)
	assert.Equal(t, "50", total.String())

	left, err := svc.Remove(ctx, "2024", "June", decimal.NewFromInt(80), 4)
	require.NoError(t, err)
	assert.True(t, left.IsZero())
	assert.Empty(t, dir.member.Donations)

	_, err = svc.Remove(ctx, "2024", "June", decimal.NewFromInt(1), 4)
	assert.ErrorIs(t, err, ledger.ErrNothingToSubtract)
	assert.Equal(t, 3, dir.writes)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.Mutations.WithLabelValues("donation", "remove", "rejected")))
}

func TestRejectsBadInput(t *testing.T) {
	dir := &fakeDirectory{member: &members.Member{RollNo: 4}}
	svc := NewService(dir, nil, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "2024", "June", decimal.Zero, 4)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = svc.Add(ctx, "20x4", "June", decimal.NewFromInt(1), 4)
	assert.ErrorIs(t, err, ledger.ErrInvalidYear)
	_, err = svc.Add(ctx, "2024", "June", decimal.NewFromInt(1), 5)
	assert.ErrorIs(t, err, members.ErrNotFound)
	assert.Zero(t, dir.writes)
}
