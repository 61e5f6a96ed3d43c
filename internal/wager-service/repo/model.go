package repo

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bet é o registro de uma aposta. ID é o request id devolvido pelo oráculo.
type Bet struct {
	ID          uint64         `json:"id"`
	User        common.Address `json:"user"`
	Asset       common.Address `json:"asset"`
	Amount      *big.Int       `json:"amount"`
	Multiplier  uint32         `json:"multiplier"`
	BlockNumber uint64         `json:"block_number"`
	Payout      *big.Int       `json:"payout"`
	OracleCost  *big.Int       `json:"oracle_cost"`
	Resolved    bool           `json:"resolved"`
	Refunded    bool           `json:"refunded"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Status deriva o estado da máquina: PENDING, RESOLVED ou REFUNDED
func (b *Bet) Status() string {
	switch {
	case b.Refunded:
		return StatusRefunded
	case b.Resolved:
		return StatusResolved
	default:
		return StatusPending
	}
}

const (
	StatusPending  = "PENDING"
	StatusResolved = "RESOLVED"
	StatusRefunded = "REFUNDED"
)

func (b *Bet) clone() *Bet {
	out := *b
	out.Amount = cloneInt(b.Amount)
	out.Payout = cloneInt(b.Payout)
	out.OracleCost = cloneInt(b.OracleCost)
	return &out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
