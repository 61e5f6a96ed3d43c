package dto

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
)

type BetResponse struct {
	ID          uint64         `json:"id"`
	User        common.Address `json:"user"`
	Asset       common.Address `json:"asset"`
	Amount      *big.Int       `json:"amount"`
	Multiplier  uint32         `json:"multiplier"`
	BlockNumber uint64         `json:"block_number"`
	Payout      *big.Int       `json:"payout"`
	OracleCost  *big.Int       `json:"oracle_cost"`
	Status      string         `json:"status"` // PENDING | RESOLVED | REFUNDED
	CreatedAt   time.Time      `json:"created_at"`
}

func NewBetResponse(b *repo.Bet) BetResponse {
	return BetResponse{
		ID:          b.ID,
		User:        b.User,
		Asset:       b.Asset,
		Amount:      b.Amount,
		Multiplier:  b.Multiplier,
		BlockNumber: b.BlockNumber,
		Payout:      b.Payout,
		OracleCost:  b.OracleCost,
		Status:      b.Status(),
		CreatedAt:   b.CreatedAt,
	}
}

type PlaceWagerResponse struct {
	Bet        BetResponse `json:"bet"`
	Returned   *big.Int    `json:"returned"`
	OracleCost *big.Int    `json:"oracle_cost"`
}

type RefundResponse struct {
	Bet        BetResponse `json:"bet"`
	Principal  *big.Int    `json:"principal"`
	OracleCost *big.Int    `json:"oracle_cost"`
}

type OracleCostResponse struct {
	OracleCost *big.Int `json:"oracle_cost"`
}

type AssetResponse struct {
	Asset             common.Address `json:"asset"`
	HouseEdgeBps      uint16         `json:"house_edge_bps"`
	SubscriptionID    uint64         `json:"subscription_id"`
	Partner           common.Address `json:"partner"`
	MinBetAmount      *big.Int       `json:"min_bet_amount"`
	AccruedOracleFees *big.Int       `json:"accrued_oracle_fees"`
	PendingCount      uint64         `json:"pending_count"`
}

// NewAssetResponse usa subID já resolvido (assinatura do ativo ou a global)
func NewAssetResponse(asset common.Address, c registry.AssetConfig, subID uint64) AssetResponse {
	return AssetResponse{
		Asset:             asset,
		HouseEdgeBps:      c.HouseEdgeBps,
		SubscriptionID:    subID,
		Partner:           c.Partner,
		MinBetAmount:      c.MinBetAmount,
		AccruedOracleFees: c.AccruedOracleFees,
		PendingCount:      c.PendingCount,
	}
}

type WithdrawResponse struct {
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
}

type PauseResponse struct {
	Paused bool `json:"paused"`
}

type BalanceResponse struct {
	Owner   common.Address `json:"owner"`
	Asset   common.Address `json:"asset"`
	Balance *big.Int       `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
