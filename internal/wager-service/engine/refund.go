package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// Refund é o resultado de um estorno
type Refund struct {
	Bet        *repo.Bet
	Principal  *big.Int
	OracleCost *big.Int // zero quando o custo do oráculo não pôde ser devolvido
}

// Refund estorna uma aposta cujo atendimento não chegou após RefundConfirmations blocos.
// Qualquer um pode chamar; os fundos sempre voltam ao apostador.
func (e *Engine) Refund(ctx context.Context, id uint64) (*Refund, error) {
	bet, err := e.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	block, err := e.blocks.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("current block: %w", err)
	}
	if block < bet.BlockNumber+RefundConfirmations {
		return nil, fmt.Errorf("%w: block %d, refundable at %d", ErrNotFulfilled, block, bet.BlockNumber+RefundConfirmations)
	}

	if err := e.ledger.MarkRefunded(ctx, id, bet.Amount); err != nil {
		if errors.Is(err, repo.ErrNotPending) || errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: bet %d", ErrNotPendingBet, id)
		}
		return nil, fmt.Errorf("mark refunded: %w", err)
	}
	e.registry.DecPending(ctx, bet.Asset)
	bet.Resolved, bet.Refunded, bet.Payout = true, true, new(big.Int).Set(bet.Amount)

	legCtx := context.WithoutCancel(ctx)
	if err := e.vault.Transfer(legCtx, bet.Asset, e.self, bet.User, bet.Amount, ref(id, "refund")); err != nil {
		e.signal(legCtx, bet, BetAmountRefundFail, bet.Amount, err)
	}
	cost := e.refundOracleCost(legCtx, bet)

	betsSettled.WithLabelValues(events.ResultRefund).Inc()
	e.log.Info("bet refunded",
		zap.Uint64("bet_id", id),
		zap.String("user", bet.User.Hex()),
		zap.String("asset", bet.Asset.Hex()),
		zap.String("amount", bet.Amount.String()),
		zap.String("oracle_cost", cost.String()),
		zap.Uint64("block", block),
	)
	e.publishSettled(legCtx, bet, bet.Amount, new(big.Int), events.ResultRefund)

	return &Refund{Bet: bet, Principal: new(big.Int).Set(bet.Amount), OracleCost: cost}, nil
}

// refundOracleCost devolve a taxa prepaga a partir do pool acumulado do ativo,
// só se o pool a contiver e a conta nativa do engine cobrir o valor
func (e *Engine) refundOracleCost(ctx context.Context, bet *repo.Bet) *big.Int {
	cost := bet.OracleCost
	if cost == nil || cost.Sign() <= 0 {
		return new(big.Int)
	}

	bal, err := e.vault.Balance(ctx, e.self, NativeAsset)
	if err != nil {
		e.signal(ctx, bet, BetCostRefundFail, cost, fmt.Errorf("engine balance: %w", err))
		return new(big.Int)
	}
	if bal.Cmp(cost) < 0 {
		e.signal(ctx, bet, BetCostRefundFail, cost, fmt.Errorf("engine balance %s below cost %s", bal, cost))
		return new(big.Int)
	}
	if !e.registry.TakeOracleFee(ctx, bet.Asset, cost) {
		e.signal(ctx, bet, BetCostRefundFail, cost, errors.New("accrued oracle fees below cost"))
		return new(big.Int)
	}
	if err := e.vault.Transfer(ctx, NativeAsset, e.self, bet.User, cost, ref(bet.ID, "oracle cost refund")); err != nil {
		e.registry.AccrueOracleFee(ctx, bet.Asset, cost)
		e.signal(ctx, bet, BetCostRefundFail, cost, err)
		return new(big.Int)
	}
	return new(big.Int).Set(cost)
}
