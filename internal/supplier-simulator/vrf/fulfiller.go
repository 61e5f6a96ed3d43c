// Package vrf simula o coordenador de aleatoriedade e o módulo de jogo em desenvolvimento:
// consome os pedidos, sorteia as palavras e publica o resultado da aposta.
package vrf

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/vrf-wager-engine/internal/shared/kafka"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

var wordSpace = new(big.Int).Lsh(big.NewInt(1), 256)

// MessageReader é o subconjunto de *kafka.Reader usado pelo Fulfiller
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Fulfiller responde cada RandomnessRequested com um WagerOutcome após Delay
type Fulfiller struct {
	Log    *zap.Logger
	Reader MessageReader
	Writer sharedkafka.MessageWriter
	Delay  time.Duration
	Rand   io.Reader // nil usa crypto/rand

	OnFulfilled func(wins bool)
}

func (f *Fulfiller) Run(ctx context.Context) error {
	for {
		m, err := f.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.Log.Warn("kafka read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		var req events.RandomnessRequested
		if err := json.Unmarshal(m.Value, &req); err != nil {
			f.Log.Warn("invalid randomness request", zap.Error(err))
			continue
		}

		if f.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(f.Delay):
			}
		}

		out, err := f.fulfill(req)
		if err != nil {
			f.Log.Error("fulfill failed", zap.Uint64("request_id", req.RequestID), zap.Error(err))
			continue
		}
		if err := sharedkafka.WriteJSON(ctx, f.Writer, strconv.FormatUint(req.RequestID, 10), out); err != nil {
			f.Log.Error("publish outcome failed", zap.Uint64("request_id", req.RequestID), zap.Error(err))
			continue
		}
		f.Log.Info("randomness fulfilled",
			zap.Uint64("request_id", req.RequestID),
			zap.Bool("wins", out.Wins),
			zap.String("payout", out.Payout.String()),
		)
		if f.OnFulfilled != nil {
			f.OnFulfilled(out.Wins)
		}
	}
}

func (f *Fulfiller) fulfill(req events.RandomnessRequested) (events.WagerOutcome, error) {
	src := f.Rand
	if src == nil {
		src = rand.Reader
	}
	n := req.NumWords
	if n == 0 {
		n = 1
	}
	words := make([]*big.Int, 0, n)
	for i := uint32(0); i < n; i++ {
		w, err := rand.Int(src, wordSpace)
		if err != nil {
			return events.WagerOutcome{}, fmt.Errorf("random word: %w", err)
		}
		words = append(words, w)
	}
	out := Play(req, words)
	out.TsUnixMs = time.Now().UnixMilli()
	return out, nil
}

// Play aplica a regra de jogo justa: multiplicador m (em bps) vence com probabilidade 1/m
// e paga amount*m. Multiplicadores abaixo de 1x são tratados como 1x.
func Play(req events.RandomnessRequested, words []*big.Int) events.WagerOutcome {
	mult := int64(req.Multiplier)
	if mult < fees.BpsDenominator {
		mult = fees.BpsDenominator
	}
	// chance de vitória em bps: 10000 * 10000 / mult
	threshold := big.NewInt(fees.BpsDenominator * fees.BpsDenominator / mult)
	roll := new(big.Int)
	if len(words) > 0 && words[0] != nil {
		roll.Mod(words[0], big.NewInt(fees.BpsDenominator))
	}

	out := events.WagerOutcome{RequestID: req.RequestID, RandomWords: words}
	if roll.Cmp(threshold) < 0 {
		out.Wins = true
		amount := new(big.Int)
		if req.Amount != nil {
			amount.Set(req.Amount)
		}
		out.Payout = amount.Mul(amount, big.NewInt(mult))
		out.Payout.Quo(out.Payout, big.NewInt(fees.BpsDenominator))
	}
	return out
}
