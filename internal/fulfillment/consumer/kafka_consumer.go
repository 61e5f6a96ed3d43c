// Package consumer traduz os resultados de jogo entregues pelo oráculo em chamadas a Resolve.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/vrf-wager-engine/internal/shared/kafka"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/engine"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// Resolver é o ponto de entrada do engine para o atendimento do oráculo
type Resolver interface {
	Resolve(ctx context.Context, id uint64, wins bool, payoutIfWin *big.Int) (*big.Int, error)
}

// MessageReader é o subconjunto de *kafka.Reader usado pelo Processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Processor consome "wager_outcomes" e liquida as apostas.
// Apostas já terminais são ignoradas; mensagens inválidas ou que esgotam as tentativas vão para a DLQ.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Engine Resolver
	DLQ    sharedkafka.MessageWriter // opcional

	Retries int           // novas tentativas para aposta ainda não registrada ou falha de infraestrutura
	Backoff time.Duration // espera base entre tentativas (linear)

	OnConsumed func()       // métricas (counter++)
	OnResolved func()       // métricas
	OnSkipped  func()       // métricas: atendimento duplicado ou tardio
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo até ctx ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return nil
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.handle(ctx, m)
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var ev events.WagerOutcome
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid outcome message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, err)
		return
	}

	for attempt := 0; ; attempt++ {
		payout, err := p.Engine.Resolve(ctx, ev.RequestID, ev.Wins, ev.Payout)
		switch {
		case err == nil:
			p.Log.Info("outcome applied",
				zap.Uint64("request_id", ev.RequestID),
				zap.Bool("wins", ev.Wins),
				zap.String("payout", payout.String()),
			)
			if p.OnResolved != nil {
				p.OnResolved()
			}
			return
		case errors.Is(err, engine.ErrNotPendingBet) && !errors.Is(err, repo.ErrNotFound):
			p.Log.Info("outcome for settled bet ignored", zap.Uint64("request_id", ev.RequestID), zap.Error(err))
			if p.OnSkipped != nil {
				p.OnSkipped()
			}
			return
		case errors.Is(err, engine.ErrInvalidPayout):
			p.Log.Warn("outcome rejected", zap.Uint64("request_id", ev.RequestID), zap.Error(err))
			p.fail("rejected")
			p.deadLetter(ctx, m, err)
			return
		}

		// o atendimento pode chegar antes do registro da aposta
		if attempt >= p.Retries || ctx.Err() != nil {
			p.Log.Error("resolve failed", zap.Uint64("request_id", ev.RequestID), zap.Int("attempts", attempt+1), zap.Error(err))
			p.fail("resolve")
			p.deadLetter(ctx, m, err)
			return
		}
		if !sleep(ctx, time.Duration(attempt+1)*p.Backoff) {
			return
		}
	}
}

// deadLetter copia a mensagem original para a DLQ com o motivo no header "error"
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
		},
	}
	if err := p.DLQ.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
