package repo

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func newBet(id uint64, user common.Address) *Bet {
	return &Bet{ID: id, User: user, Amount: big.NewInt(10000), OracleCost: big.NewInt(5), BlockNumber: 100}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, newBet(7, alice)))
	assert.ErrorIs(t, m.Create(ctx, newBet(7, bob)), ErrDuplicateBet)

	b, err := m.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, alice, b.User)
	assert.Equal(t, StatusPending, b.Status())
	assert.Equal(t, 0, b.Payout.Sign())
	assert.False(t, b.CreatedAt.IsZero())

	_, err = m.Get(ctx, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, newBet(1, alice)))

	b, _ := m.Get(ctx, 1)
	b.Amount.SetInt64(1)
	b.Resolved = true

	again, _ := m.Get(ctx, 1)
	assert.EqualValues(t, 10000, again.Amount.Int64())
	assert.False(t, again.Resolved)
}

func TestResolvedIsMonotonic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, newBet(1, alice)))

	require.NoError(t, m.MarkResolved(ctx, 1, big.NewInt(98000)))
	assert.ErrorIs(t, m.MarkResolved(ctx, 1, big.NewInt(1)), ErrNotPending)
	assert.ErrorIs(t, m.MarkRefunded(ctx, 1, big.NewInt(1)), ErrNotPending)
	assert.ErrorIs(t, m.MarkResolved(ctx, 2, big.NewInt(1)), ErrNotFound)

	b, _ := m.Get(ctx, 1)
	assert.Equal(t, StatusResolved, b.Status())
	assert.EqualValues(t, 98000, b.Payout.Int64())
}

func TestMarkRefunded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, newBet(1, alice)))

	require.NoError(t, m.MarkRefunded(ctx, 1, big.NewInt(10000)))
	assert.ErrorIs(t, m.MarkResolved(ctx, 1, big.NewInt(0)), ErrNotPending)

	b, _ := m.Get(ctx, 1)
	assert.True(t, b.Resolved)
	assert.Equal(t, StatusRefunded, b.Status())
}

func TestListRecent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for id := uint64(1); id <= 5; id++ {
		require.NoError(t, m.Create(ctx, newBet(id*10, alice)))
	}
	require.NoError(t, m.Create(ctx, newBet(99, bob)))

	tests := []struct {
		name  string
		count int
		want  []uint64
	}{
		{"fewer than history", 3, []uint64{50, 40, 30}},
		{"exactly history", 5, []uint64{50, 40, 30, 20, 10}},
		{"more than history", 50, []uint64{50, 40, 30, 20, 10}},
		{"zero", 0, nil},
		{"negative", -1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ListRecent(ctx, alice, tt.count)
			require.NoError(t, err)
			ids := make([]uint64, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			if tt.want == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	none, err := m.ListRecent(ctx, common.HexToAddress("0xdead"), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCountByUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	n, _ := m.CountByUser(ctx, alice)
	assert.Zero(t, n)

	require.NoError(t, m.Create(ctx, newBet(1, alice)))
	require.NoError(t, m.Create(ctx, newBet(2, alice)))

	n, _ = m.CountByUser(ctx, alice)
	assert.Equal(t, 2, n)
}

func TestMaxID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	top, err := m.MaxID(ctx)
	require.NoError(t, err)
	assert.Zero(t, top)

	for _, id := range []uint64{3, 11, 7} {
		require.NoError(t, m.Create(ctx, newBet(id, alice)))
	}
	top, err = m.MaxID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 11, top)
}
