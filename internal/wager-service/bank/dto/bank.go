package dto

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenResponse responde GET /bank/tokens/{asset}
type TokenResponse struct {
	Asset   common.Address `json:"asset"`
	Allowed bool           `json:"allowed"`
}

// MaxBetResponse responde GET /bank/tokens/{asset}/max-bet
type MaxBetResponse struct {
	Asset        common.Address `json:"asset"`
	Multiplier   uint32         `json:"multiplier"`
	MaxBetAmount *big.Int       `json:"max_bet_amount"`
}

// PayoutRequest pede ao bank que pague o lucro líquido ao apostador e registre a taxa total
type PayoutRequest struct {
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Profit *big.Int       `json:"profit"`
	Fee    *big.Int       `json:"fee"`
}

// CashInRequest notifica o bank de um valor perdido já transferido para ele
type CashInRequest struct {
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
}
