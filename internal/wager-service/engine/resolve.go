package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// Resolve liquida a aposta com o resultado entregue pelo oráculo e devolve o payout registrado
// (zero na derrota). A aposta é marcada como resolvida antes de qualquer transferência; falhas
// nas pernas de liquidação são sinalizadas e nunca revertem a resolução.
func (e *Engine) Resolve(ctx context.Context, id uint64, wins bool, payoutIfWin *big.Int) (*big.Int, error) {
	bet, err := e.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	edge := e.registry.HouseEdge(bet.Asset)
	payout := new(big.Int)
	var feeOnPrincipal, profit, feeOnProfit, totalFee *big.Int
	if wins {
		if payoutIfWin == nil || payoutIfWin.Cmp(bet.Amount) < 0 {
			return nil, fmt.Errorf("%w: payout %v below amount %s", ErrInvalidPayout, payoutIfWin, bet.Amount)
		}
		// o payout nunca passa do que o multiplicador gravado permite
		if ceiling := maxPayout(bet); payoutIfWin.Cmp(ceiling) > 0 {
			return nil, fmt.Errorf("%w: payout %s above %s for multiplier %d", ErrInvalidPayout, payoutIfWin, ceiling, bet.Multiplier)
		}
		profit = new(big.Int).Sub(payoutIfWin, bet.Amount)
		feeOnPrincipal = fees.Fee(bet.Amount, edge)
		feeOnProfit = fees.Fee(profit, edge)
		totalFee = new(big.Int).Add(feeOnPrincipal, feeOnProfit)
		payout.Sub(payoutIfWin, totalFee)
	}

	if err := e.ledger.MarkResolved(ctx, id, payout); err != nil {
		if errors.Is(err, repo.ErrNotPending) || errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: bet %d", ErrNotPendingBet, id)
		}
		return nil, fmt.Errorf("mark resolved: %w", err)
	}
	e.registry.DecPending(ctx, bet.Asset)

	// a aposta já é terminal: as pernas seguem mesmo se o chamador cancelar
	legCtx := context.WithoutCancel(ctx)
	result := events.ResultLoss
	fee := new(big.Int)
	if wins {
		result = events.ResultWin
		fee = totalFee
		e.payWin(legCtx, bet, feeOnPrincipal, profit, feeOnProfit, totalFee)
	} else {
		e.collectLoss(legCtx, bet)
	}

	betsSettled.WithLabelValues(result).Inc()
	e.log.Info("bet resolved",
		zap.Uint64("bet_id", id),
		zap.String("user", bet.User.Hex()),
		zap.String("asset", bet.Asset.Hex()),
		zap.String("result", result),
		zap.String("payout", payout.String()),
		zap.String("fee", fee.String()),
	)
	e.publishSettled(legCtx, bet, payout, fee, result)

	return payout, nil
}

// pending carrega a aposta exigindo que exista e não esteja resolvida
func (e *Engine) pending(ctx context.Context, id uint64) (*repo.Bet, error) {
	bet, err := e.ledger.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotPendingBet, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load bet: %w", err)
	}
	if bet.Resolved || bet.User == (common.Address{}) {
		return nil, fmt.Errorf("%w: bet %d is %s", ErrNotPendingBet, id, bet.Status())
	}
	return bet, nil
}

// payWin devolve o principal líquido, repassa a taxa sobre o principal ao bank
// e pede ao bank que pague o lucro líquido
func (e *Engine) payWin(ctx context.Context, bet *repo.Bet, feeOnPrincipal, profit, feeOnProfit, totalFee *big.Int) {
	principal := new(big.Int).Sub(bet.Amount, feeOnPrincipal)
	if principal.Sign() > 0 {
		if err := e.vault.Transfer(ctx, bet.Asset, e.self, bet.User, principal, ref(bet.ID, "principal")); err != nil {
			e.signal(ctx, bet, BetAmountTransferFail, principal, err)
		}
	}
	if feeOnPrincipal.Sign() > 0 {
		if err := e.vault.Transfer(ctx, bet.Asset, e.self, e.bankAddr, feeOnPrincipal, ref(bet.ID, "principal fee")); err != nil {
			e.signal(ctx, bet, BetAmountFeeTransferFail, feeOnPrincipal, err)
		}
	}
	netProfit := new(big.Int).Sub(profit, feeOnProfit)
	if err := e.bank.Payout(ctx, bet.User, bet.Asset, netProfit, totalFee); err != nil {
		e.signal(ctx, bet, BetProfitTransferFail, netProfit, err)
	}
}

// collectLoss move o valor apostado para o bank e notifica o cash-in.
// Se a transferência falhar o bank não é notificado de um valor que não recebeu.
func (e *Engine) collectLoss(ctx context.Context, bet *repo.Bet) {
	if err := e.vault.Transfer(ctx, bet.Asset, e.self, e.bankAddr, bet.Amount, ref(bet.ID, "loss")); err != nil {
		e.signal(ctx, bet, BetAmountBankTransferFail, bet.Amount, err)
		return
	}
	if err := e.bank.CashIn(ctx, bet.Asset, bet.Amount); err != nil {
		e.signal(ctx, bet, BankCashInFail, bet.Amount, err)
	}
}

// signal registra uma perna de liquidação que falhou: log, métrica e evento
func (e *Engine) signal(ctx context.Context, bet *repo.Bet, kind string, amount *big.Int, cause error) {
	settlementFailures.WithLabelValues(kind).Inc()
	e.log.Error("settlement leg failed",
		zap.Uint64("bet_id", bet.ID),
		zap.String("kind", kind),
		zap.String("user", bet.User.Hex()),
		zap.String("asset", bet.Asset.Hex()),
		zap.String("amount", amount.String()),
		zap.Error(cause),
	)
	if e.pub == nil {
		return
	}
	ev := events.SettlementFailure{
		BetID:  bet.ID,
		Kind:   kind,
		User:   bet.User,
		Asset:  bet.Asset,
		Amount: new(big.Int).Set(amount),
		Reason: cause.Error(),
		Ts:     e.now().UTC(),
	}
	if err := e.pub.PublishSettlementFailure(ctx, ev); err != nil {
		e.log.Warn("publish settlement failure failed", zap.Uint64("bet_id", bet.ID), zap.Error(err))
	}
}

func (e *Engine) publishSettled(ctx context.Context, bet *repo.Bet, payout, fee *big.Int, result string) {
	if e.pub == nil {
		return
	}
	ev := events.WagerSettled{
		BetID:  bet.ID,
		User:   bet.User,
		Asset:  bet.Asset,
		Amount: new(big.Int).Set(bet.Amount),
		Payout: new(big.Int).Set(payout),
		Fee:    new(big.Int).Set(fee),
		Result: result,
		Ts:     e.now().UTC(),
	}
	if err := e.pub.PublishWagerSettled(ctx, ev); err != nil {
		e.log.Warn("publish wager settled failed", zap.Uint64("bet_id", bet.ID), zap.Error(err))
	}
}

// maxPayout = amount * multiplier / 10000 (multiplicador em basis points, piso de 1x)
func maxPayout(bet *repo.Bet) *big.Int {
	mult := uint64(bet.Multiplier)
	if mult < fees.BpsDenominator {
		mult = fees.BpsDenominator
	}
	v := new(big.Int).Mul(bet.Amount, new(big.Int).SetUint64(mult))
	return v.Quo(v, big.NewInt(fees.BpsDenominator))
}

func ref(id uint64, leg string) string {
	return fmt.Sprintf("bet %d %s", id, leg)
}
