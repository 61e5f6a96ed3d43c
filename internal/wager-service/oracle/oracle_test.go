package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestKafkaRequesterAssignsIDs(t *testing.T) {
	w := &captureWriter{}
	r := NewKafkaRequester(w, &MemoryIDs{}, nil)

	req := events.RandomnessRequested{SubscriptionID: 7, NumWords: 1, User: common.HexToAddress("0x01"), Amount: big.NewInt(50_000)}
	id1, err := r.RequestRandomness(context.Background(), req)
	require.NoError(t, err)
	id2, err := r.RequestRandomness(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id1)
	assert.EqualValues(t, 2, id2)

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "2", string(w.msgs[1].Key))
	var got events.RandomnessRequested
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &got))
	assert.EqualValues(t, 2, got.RequestID)
	assert.EqualValues(t, 7, got.SubscriptionID)
	assert.EqualValues(t, 50_000, got.Amount.Int64())
}

func TestMemoryIDsSeedSkipsRecordedIDs(t *testing.T) {
	ctx := context.Background()
	ids := &MemoryIDs{}

	require.NoError(t, ids.Seed(ctx, 41))
	id, err := ids.NextID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	// semente menor que o contador não faz o id voltar
	require.NoError(t, ids.Seed(ctx, 10))
	id, err = ids.NextID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 43, id)
}

func TestKafkaRequesterWriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	_, err := NewKafkaRequester(w, &MemoryIDs{}, nil).RequestRandomness(context.Background(), events.RandomnessRequested{})
	assert.ErrorContains(t, err, "broker down")
}

func TestEstimateBeforeFirstTickIsInvalidFeed(t *testing.T) {
	feed := &WSPriceFeed{Pair: "LINK/ETH"}
	est := fees.NewEstimator(feed, NewLocalChain(time.Second, big.NewInt(1), 0), 100_000, time.Minute)

	_, err := est.Estimate(context.Background())
	assert.ErrorIs(t, err, fees.ErrInvalidPriceFeed)
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestPriceFeedApply(t *testing.T) {
	f := &WSPriceFeed{Pair: "LINK/ETH"}
	_, err := f.LatestPrice(context.Background())
	assert.ErrorIs(t, err, ErrNoPrice)

	assert.True(t, f.apply(events.PriceUpdate{Pair: "LINK/ETH", Price: big.NewInt(5e15), UpdatedAt: 1_700_000_000, RoundID: 2}))
	assert.False(t, f.apply(events.PriceUpdate{Pair: "BTC/ETH", Price: big.NewInt(1), RoundID: 3}), "other pair")
	assert.False(t, f.apply(events.PriceUpdate{Pair: "LINK/ETH", Price: big.NewInt(1), RoundID: 1}), "stale round")

	p, err := f.LatestPrice(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5e15, p.Value.Int64())
	assert.Equal(t, time.Unix(1_700_000_000, 0), p.UpdatedAt)
}

type stubChain struct{}

func (stubChain) BlockNumber(context.Context) (uint64, error) { return 123, nil }
func (stubChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(3e9), nil
}

func TestChainAdapters(t *testing.T) {
	c := NewChain(stubChain{}, 250_000)
	b, err := c.CurrentBlock(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 123, b)
	fc, err := c.FeeConfig(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 250_000, fc.FlatFeePPM)
	assert.EqualValues(t, 3e9, fc.GasPrice.Int64())

	l := NewLocalChain(12*time.Second, big.NewInt(1e9), 100)
	l.now = func() time.Time { return time.Unix(1200, 0) }
	b, err = l.CurrentBlock(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 100, b)
	l.now = func() time.Time { return time.Unix(1200+30*12, 0) }
	b, _ = l.CurrentBlock(context.Background())
	assert.EqualValues(t, 130, b)
}
