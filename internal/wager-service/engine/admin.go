package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Pause bloqueia novas apostas. Resolve e Refund continuam funcionando.
func (e *Engine) Pause(caller common.Address) error {
	if caller != e.registry.Owner() {
		return ErrAccessDenied
	}
	e.paused.Store(true)
	e.log.Warn("engine paused", zap.String("caller", caller.Hex()))
	return nil
}

func (e *Engine) Unpause(caller common.Address) error {
	if caller != e.registry.Owner() {
		return ErrAccessDenied
	}
	e.paused.Store(false)
	e.log.Info("engine unpaused", zap.String("caller", caller.Hex()))
	return nil
}

func (e *Engine) Paused() bool { return e.paused.Load() }

// WithdrawOracleFees drena o pool de taxas do oráculo do ativo para o chamador.
// Se a transferência falhar o pool é restaurado.
func (e *Engine) WithdrawOracleFees(ctx context.Context, caller, asset common.Address) (*big.Int, error) {
	drained, err := e.registry.DrainOracleFees(ctx, caller, asset)
	if err != nil {
		return nil, err
	}
	if drained.Sign() == 0 {
		return drained, nil
	}
	if err := e.vault.Transfer(ctx, NativeAsset, e.self, caller, drained, "oracle fees withdraw"); err != nil {
		e.registry.AccrueOracleFee(context.WithoutCancel(ctx), asset, drained)
		return nil, fmt.Errorf("withdraw oracle fees: %w", err)
	}
	e.log.Info("oracle fees withdrawn",
		zap.String("caller", caller.Hex()),
		zap.String("asset", asset.Hex()),
		zap.String("amount", drained.String()),
	)
	return drained, nil
}

// Recover move saldo preso na custódia do engine (ex.: pernas de liquidação que falharam)
func (e *Engine) Recover(ctx context.Context, caller, asset, to common.Address, amount *big.Int) error {
	if caller != e.registry.Owner() {
		return ErrAccessDenied
	}
	if to == (common.Address{}) || amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: recipient and positive amount required", ErrInvalidWager)
	}
	if err := e.vault.Transfer(ctx, asset, e.self, to, amount, "admin recover"); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	e.log.Warn("escrow recovered",
		zap.String("caller", caller.Hex()),
		zap.String("asset", asset.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
	)
	return nil
}
