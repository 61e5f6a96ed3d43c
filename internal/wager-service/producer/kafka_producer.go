package producer

import (
	"context"
	"strconv"
	"time"

	"github.com/radieske/vrf-wager-engine/internal/shared/kafka"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do ciclo de vida das apostas, um writer por tópico.
// A chave é o bet id, mantendo os eventos de uma aposta na mesma partição.
type KafkaPublisher struct {
	Placed   kafka.MessageWriter
	Settled  kafka.MessageWriter
	Failures kafka.MessageWriter
}

func NewKafkaPublisher(placed, settled, failures kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Settled: settled, Failures: failures}
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	return kafka.WriteJSON(ctx, p.Placed, key(e.BetID), e)
}

func (p *KafkaPublisher) PublishWagerSettled(ctx context.Context, e events.WagerSettled) error {
	return kafka.WriteJSON(ctx, p.Settled, key(e.BetID), e)
}

func (p *KafkaPublisher) PublishSettlementFailure(ctx context.Context, e events.SettlementFailure) error {
	return kafka.WriteJSON(ctx, p.Failures, key(e.BetID), e)
}

func key(id uint64) string { return strconv.FormatUint(id, 10) }
