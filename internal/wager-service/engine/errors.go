package engine

import (
	"errors"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
)

// Erros de rejeição: abortam a operação sem mudança de estado.
var (
	ErrForbiddenAsset        = errors.New("forbidden asset")
	ErrUnderMinBetAmount     = errors.New("under min bet amount")
	ErrInsufficientOracleFee = errors.New("insufficient oracle fee")
	ErrNotPendingBet         = errors.New("not pending bet")
	ErrNotFulfilled          = errors.New("not fulfilled")
	ErrInvalidWager          = errors.New("invalid wager")
	ErrInvalidPayout         = errors.New("invalid payout")
	ErrPaused                = errors.New("engine paused")
	ErrReentrantCall         = errors.New("reentrant call")

	ErrInvalidPriceFeed   = fees.ErrInvalidPriceFeed
	ErrAccessDenied       = registry.ErrAccessDenied
	ErrExcessiveHouseEdge = registry.ErrExcessiveHouseEdge
	ErrNotFound           = repo.ErrNotFound
)

// Tipos de falha de perna de liquidação, publicados como SettlementFailure.Kind
const (
	BetAmountTransferFail     = "BetAmountTransferFail"
	BetAmountFeeTransferFail  = "BetAmountFeeTransferFail"
	BetProfitTransferFail     = "BetProfitTransferFail"
	BetAmountBankTransferFail = "BetAmountBankTransferFail"
	BankCashInFail            = "BankCashInFail"
	BetAmountRefundFail       = "BetAmountRefundFail"
	BetCostRefundFail         = "BetCostRefundFail"
	IntakeReturnFail          = "IntakeReturnFail"
)
