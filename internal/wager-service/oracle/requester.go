// Package oracle liga o engine ao serviço de aleatoriedade: pedidos, feed de preço e fonte de blocos.
package oracle

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/shared/kafka"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// RequestIDKey é o contador Redis dos request ids
const RequestIDKey = "oracle:request_id"

// IDSource aloca request ids únicos e crescentes.
// Seed garante que os próximos ids fiquem acima de floor (o maior id já gravado no ledger).
type IDSource interface {
	NextID(ctx context.Context) (uint64, error)
	Seed(ctx context.Context, floor uint64) error
}

// seedScript só avança o contador, nunca o faz voltar
var seedScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call("SET", KEYS[1], ARGV[1])
	return floor
end
return cur
`)

// RedisIDs aloca ids com INCR, compartilhados entre instâncias
type RedisIDs struct {
	rdb *redis.Client
	key string
}

func NewRedisIDs(rdb *redis.Client) *RedisIDs {
	return &RedisIDs{rdb: rdb, key: RequestIDKey}
}

func (r *RedisIDs) NextID(ctx context.Context) (uint64, error) {
	n, err := r.rdb.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", r.key, err)
	}
	return uint64(n), nil
}

func (r *RedisIDs) Seed(ctx context.Context, floor uint64) error {
	if err := seedScript.Run(ctx, r.rdb, []string{r.key}, strconv.FormatUint(floor, 10)).Err(); err != nil {
		return fmt.Errorf("seed %s: %w", r.key, err)
	}
	return nil
}

// MemoryIDs é o contador local, para execução sem Redis
type MemoryIDs struct {
	n atomic.Uint64
}

func (m *MemoryIDs) NextID(context.Context) (uint64, error) {
	return m.n.Add(1), nil
}

func (m *MemoryIDs) Seed(_ context.Context, floor uint64) error {
	for {
		cur := m.n.Load()
		if cur >= floor || m.n.CompareAndSwap(cur, floor) {
			return nil
		}
	}
}

// KafkaRequester publica o pedido de aleatoriedade em "randomness_requests".
// O id é alocado antes da publicação e devolvido de forma síncrona.
type KafkaRequester struct {
	writer kafka.MessageWriter
	ids    IDSource
	log    *zap.Logger
}

func NewKafkaRequester(w kafka.MessageWriter, ids IDSource, log *zap.Logger) *KafkaRequester {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaRequester{writer: w, ids: ids, log: log}
}

func (k *KafkaRequester) RequestRandomness(ctx context.Context, req events.RandomnessRequested) (uint64, error) {
	id, err := k.ids.NextID(ctx)
	if err != nil {
		return 0, err
	}
	req.RequestID = id

	if err := kafka.WriteJSON(ctx, k.writer, strconv.FormatUint(id, 10), req); err != nil {
		return 0, fmt.Errorf("publish randomness request: %w", err)
	}
	k.log.Debug("randomness requested",
		zap.Uint64("request_id", id),
		zap.Uint64("subscription_id", req.SubscriptionID),
		zap.Uint32("num_words", req.NumWords),
	)
	return id, nil
}
