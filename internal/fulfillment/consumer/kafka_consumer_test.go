package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/engine"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// sliceReader entrega as mensagens em ordem e depois bloqueia até ctx ser cancelado
type sliceReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	r.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

type resolveCall struct {
	id   uint64
	wins bool
}

// scriptedResolver devolve os erros roteirizados por id, em ordem
type scriptedResolver struct {
	errs  map[uint64][]error
	calls []resolveCall
}

func (s *scriptedResolver) Resolve(_ context.Context, id uint64, wins bool, _ *big.Int) (*big.Int, error) {
	s.calls = append(s.calls, resolveCall{id, wins})
	if q := s.errs[id]; len(q) > 0 {
		s.errs[id] = q[1:]
		if q[0] != nil {
			return nil, q[0]
		}
	}
	return big.NewInt(0), nil
}

func outcome(t *testing.T, id uint64, wins bool) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.WagerOutcome{RequestID: id, Wins: wins, Payout: big.NewInt(100_000)})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(fmt.Sprint(id)), Value: b}
}

func run(t *testing.T, res *scriptedResolver, msgs ...kafka.Message) (*captureWriter, map[string]int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dlq := &captureWriter{}
	counts := map[string]int{}
	p := &Processor{
		Log:        zap.NewNop(),
		Reader:     &sliceReader{msgs: msgs, cancel: cancel},
		Engine:     res,
		DLQ:        dlq,
		Retries:    2,
		OnConsumed: func() { counts["consumed"]++ },
		OnResolved: func() { counts["resolved"]++ },
		OnSkipped:  func() { counts["skipped"]++ },
		OnError:    func(phase string) { counts[phase]++ },
	}
	require.NoError(t, p.Run(ctx))
	return dlq, counts
}

func TestProcessorResolvesOutcomes(t *testing.T) {
	res := &scriptedResolver{errs: map[uint64][]error{}}
	dlq, counts := run(t, res, outcome(t, 1, true), outcome(t, 2, false))

	assert.Equal(t, []resolveCall{{1, true}, {2, false}}, res.calls)
	assert.Equal(t, 2, counts["resolved"])
	assert.Empty(t, dlq.msgs)
}

func TestProcessorSkipsSettledBets(t *testing.T) {
	res := &scriptedResolver{errs: map[uint64][]error{
		1: {fmt.Errorf("%w: bet 1 is RESOLVED", engine.ErrNotPendingBet)},
	}}
	dlq, counts := run(t, res, outcome(t, 1, true))

	assert.Len(t, res.calls, 1)
	assert.Equal(t, 1, counts["skipped"])
	assert.Empty(t, dlq.msgs)
}

func TestProcessorRetriesUnknownBet(t *testing.T) {
	notYet := fmt.Errorf("%w: %w", engine.ErrNotPendingBet, repo.ErrNotFound)
	res := &scriptedResolver{errs: map[uint64][]error{
		1: {notYet, nil},
		2: {notYet, notYet, notYet},
	}}
	dlq, counts := run(t, res, outcome(t, 1, true), outcome(t, 2, true))

	assert.Len(t, res.calls, 2+3)
	assert.Equal(t, 1, counts["resolved"])
	assert.Equal(t, 1, counts["resolve"])
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "2", string(dlq.msgs[0].Key))
}

func TestProcessorDeadLettersInvalidMessages(t *testing.T) {
	res := &scriptedResolver{errs: map[uint64][]error{
		3: {fmt.Errorf("%w: payout below amount", engine.ErrInvalidPayout)},
	}}
	bad := kafka.Message{Key: []byte("x"), Value: []byte("{not json")}
	dlq, counts := run(t, res, bad, outcome(t, 3, true))

	assert.Len(t, res.calls, 1, "rejections are not retried")
	assert.Equal(t, 1, counts["decode"])
	assert.Equal(t, 1, counts["rejected"])
	require.Len(t, dlq.msgs, 2)
	assert.Equal(t, "error", dlq.msgs[0].Headers[0].Key)
}
