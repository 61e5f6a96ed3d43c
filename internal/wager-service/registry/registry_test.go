package registry

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0xa1")
	partner  = common.HexToAddress("0xb2")
	stranger = common.HexToAddress("0xc3")
	token    = common.HexToAddress("0x70")
)

type memStore struct {
	mu    sync.Mutex
	saved map[common.Address]AssetConfig
	err   error
}

func (m *memStore) Save(_ context.Context, a common.Address, c AssetConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[common.Address]AssetConfig)
	}
	m.saved[a] = c
	return nil
}

func (m *memStore) LoadAll(context.Context) (map[common.Address]AssetConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, m.err
}

func TestSetHouseEdgeCap(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, nil, nil)

	require.NoError(t, r.SetHouseEdge(ctx, owner, token, 400))
	assert.EqualValues(t, 400, r.HouseEdge(token))

	err := r.SetHouseEdge(ctx, owner, token, 401)
	assert.ErrorIs(t, err, ErrExcessiveHouseEdge)
	assert.EqualValues(t, 400, r.HouseEdge(token), "rejected write must not mutate")
}

func TestAccessControl(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, nil, nil)

	assert.ErrorIs(t, r.SetMinBetAmount(ctx, partner, token, big.NewInt(1)), ErrAccessDenied)

	require.NoError(t, r.SetPartner(ctx, owner, token, partner))
	require.NoError(t, r.SetMinBetAmount(ctx, partner, token, big.NewInt(10000)))
	require.NoError(t, r.SetSubscriptionID(ctx, partner, token, 42))

	assert.ErrorIs(t, r.SetHouseEdge(ctx, stranger, token, 100), ErrAccessDenied)
	assert.ErrorIs(t, r.SetHouseEdge(ctx, common.Address{}, token, 100), ErrAccessDenied)

	cfg := r.Get(token)
	assert.Equal(t, partner, cfg.Partner)
	assert.EqualValues(t, 10000, cfg.MinBetAmount.Int64())
	assert.EqualValues(t, 42, r.SubscriptionID(token))
}

func TestSubscriptionFallsBackToDefault(t *testing.T) {
	r := New(owner, 7, nil, nil)
	assert.EqualValues(t, 7, r.SubscriptionID(token))
}

func TestOracleFeePool(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, nil, nil)

	r.AccrueOracleFee(ctx, token, big.NewInt(300))
	r.AccrueOracleFee(ctx, token, big.NewInt(200))
	assert.EqualValues(t, 500, r.Get(token).AccruedOracleFees.Int64())

	assert.False(t, r.TakeOracleFee(ctx, token, big.NewInt(501)))
	assert.EqualValues(t, 500, r.Get(token).AccruedOracleFees.Int64())

	assert.True(t, r.TakeOracleFee(ctx, token, big.NewInt(200)))
	assert.EqualValues(t, 300, r.Get(token).AccruedOracleFees.Int64())

	_, err := r.DrainOracleFees(ctx, stranger, token)
	assert.ErrorIs(t, err, ErrAccessDenied)

	drained, err := r.DrainOracleFees(ctx, owner, token)
	require.NoError(t, err)
	assert.EqualValues(t, 300, drained.Int64())
	assert.Equal(t, 0, r.Get(token).AccruedOracleFees.Sign())
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, nil, nil)
	r.AccrueOracleFee(ctx, token, big.NewInt(10))

	cfg := r.Get(token)
	cfg.AccruedOracleFees.SetInt64(999)

	assert.EqualValues(t, 10, r.Get(token).AccruedOracleFees.Int64())
}

func TestPendingCount(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, nil, nil)

	r.IncPending(ctx, token)
	r.IncPending(ctx, token)
	r.DecPending(ctx, token)
	r.DecPending(ctx, token)
	r.DecPending(ctx, token)

	assert.EqualValues(t, 0, r.Get(token).PendingCount)
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	r := New(owner, 1, store, nil)
	require.NoError(t, r.SetHouseEdge(ctx, owner, token, 150))
	r.AccrueOracleFee(ctx, token, big.NewInt(77))

	restored := New(owner, 1, store, nil)
	require.NoError(t, restored.Restore(ctx))

	cfg := restored.Get(token)
	assert.EqualValues(t, 150, cfg.HouseEdgeBps)
	assert.EqualValues(t, 77, cfg.AccruedOracleFees.Int64())
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, &memStore{err: errors.New("redis down")}, nil)

	require.NoError(t, r.SetHouseEdge(ctx, owner, token, 100))
	assert.EqualValues(t, 100, r.HouseEdge(token))
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assets.toml")
	content := `
[[asset]]
address = "0x0000000000000000000000000000000000000000"
house_edge_bps = 200
min_bet_amount = "10000"

[[asset]]
address = "0x0000000000000000000000000000000000000070"
house_edge_bps = 350
partner = "0x00000000000000000000000000000000000000b2"
subscription_id = 9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Assets, 2)

	r := New(owner, 1, nil, nil)
	require.NoError(t, f.Apply(ctx, r))

	assert.EqualValues(t, 200, r.HouseEdge(common.Address{}))
	assert.EqualValues(t, 10000, r.MinBetAmount(common.Address{}).Int64())
	assert.EqualValues(t, 350, r.HouseEdge(token))
	assert.Equal(t, partner, r.Get(token).Partner)
	assert.EqualValues(t, 9, r.SubscriptionID(token))
}

func TestBootstrapKeepsRestoredConfig(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	// alteração administrativa feita em runtime e persistida
	before := New(owner, 1, store, nil)
	require.NoError(t, before.SetHouseEdge(ctx, owner, token, 300))

	f := &File{Assets: []AssetEntry{
		{Address: token.Hex(), Partner: partner.Hex()},
		{Address: common.Address{}.Hex(), HouseEdgeBps: 200},
	}}

	// restart: Restore e depois o bootstrap, na ordem do boot
	after := New(owner, 1, store, nil)
	require.NoError(t, after.Restore(ctx))
	assert.EqualValues(t, 300, after.HouseEdge(token))
	require.NoError(t, f.Apply(ctx, after))

	assert.EqualValues(t, 300, after.HouseEdge(token))
	assert.Equal(t, common.Address{}, after.Get(token).Partner)
	assert.EqualValues(t, 200, after.HouseEdge(common.Address{}))
}

func TestConfiguredIgnoresFeeAccrual(t *testing.T) {
	ctx := context.Background()
	r := New(owner, 1, nil, nil)

	r.AccrueOracleFee(ctx, token, big.NewInt(10))
	r.IncPending(ctx, token)
	assert.False(t, r.Configured(token))

	require.NoError(t, r.SetSubscriptionID(ctx, owner, token, 4))
	assert.True(t, r.Configured(token))
}

func TestLoadFileRejectsExcessiveEdge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[asset]]\naddress = \"0x0000000000000000000000000000000000000070\"\nhouse_edge_bps = 500\n"), 0o600))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Apply(context.Background(), New(owner, 1, nil, nil)), ErrExcessiveHouseEdge)
}
