package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Resultados possíveis de uma aposta liquidada
const (
	ResultWin    = "WIN"
	ResultLoss   = "LOSS"
	ResultRefund = "REFUND"
)

// Emitido pelo wager-service após registrar uma aposta pendente.
type WagerPlaced struct {
	BetID       uint64         `json:"bet_id"`
	User        common.Address `json:"user"`
	Asset       common.Address `json:"asset"`
	Amount      *big.Int       `json:"amount"`
	Returned    *big.Int       `json:"returned"` // excedente acima do max bet devolvido
	OracleCost  *big.Int       `json:"oracle_cost"`
	Multiplier  uint32         `json:"multiplier"`
	BlockNumber uint64         `json:"block_number"`
	TsUnixMs    int64          `json:"ts_unix_ms"`
}

// Emitido quando a aposta chega a um estado terminal (resolvida ou estornada).
type WagerSettled struct {
	BetID  uint64         `json:"bet_id"`
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
	Payout *big.Int       `json:"payout"`
	Fee    *big.Int       `json:"fee"`
	Result string         `json:"result"` // WIN | LOSS | REFUND
	Ts     time.Time      `json:"ts"`
}

// Emitido para cada perna de liquidação que falhou. A aposta continua terminal;
// o valor preso é recuperado por varredura administrativa.
type SettlementFailure struct {
	BetID  uint64         `json:"bet_id"`
	Kind   string         `json:"kind"` // ex: "BetAmountTransferFail"
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
	Reason string         `json:"reason"`
	Ts     time.Time      `json:"ts"`
}
