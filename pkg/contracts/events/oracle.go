package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Evento publicado no tópico "randomness_requests" a cada aposta aceita.
// Amount e Multiplier acompanham o pedido para que o módulo de jogo calcule o payout.
type RandomnessRequested struct {
	RequestID        uint64         `json:"request_id"`
	SubscriptionID   uint64         `json:"subscription_id"`
	CallbackGasLimit uint32         `json:"callback_gas_limit"`
	NumWords         uint32         `json:"num_words"`
	User             common.Address `json:"user"`
	Asset            common.Address `json:"asset"`
	Amount           *big.Int       `json:"amount"`
	Multiplier       uint32         `json:"multiplier"`
	TsUnixMs         int64          `json:"ts_unix_ms"`
}

// Evento publicado pelos módulos de jogo no tópico "wager_outcomes" depois que
// o oráculo entregou os números aleatórios. Payout só é lido quando Wins=true.
type WagerOutcome struct {
	RequestID   uint64     `json:"request_id"`
	RandomWords []*big.Int `json:"random_words"`
	Wins        bool       `json:"wins"`
	Payout      *big.Int   `json:"payout"`
	TsUnixMs    int64      `json:"ts_unix_ms"`
}

// Tick do feed de preço (wei por unidade da moeda de liquidação do oráculo).
type PriceUpdate struct {
	Pair      string   `json:"pair"` // ex: "LINK/ETH"
	Price     *big.Int `json:"price"`
	UpdatedAt int64    `json:"updated_at"` // unix segundos
	RoundID   uint64   `json:"round_id"`
}
