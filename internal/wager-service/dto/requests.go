package dto

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PlaceWagerRequest é o corpo de POST /v1/wagers. O apostador vem do header X-Caller.
// Value é o valor nativo anexado: aposta + taxa do oráculo (nativo) ou só a taxa (token).
type PlaceWagerRequest struct {
	Asset      common.Address `json:"asset"`
	Amount     *big.Int       `json:"amount"`
	Multiplier uint32         `json:"multiplier"`
	NumWords   uint32         `json:"num_words,omitempty"`
	Referrer   common.Address `json:"referrer"`
	Value      *big.Int       `json:"value"`
}

type HouseEdgeRequest struct {
	Bps uint16 `json:"bps"`
}

type MinBetRequest struct {
	Amount *big.Int `json:"amount"`
}

type PartnerRequest struct {
	Partner common.Address `json:"partner"`
}

type SubscriptionRequest struct {
	SubscriptionID uint64 `json:"subscription_id"`
}

// RecoverRequest move saldo preso da custódia do engine
type RecoverRequest struct {
	Asset  common.Address `json:"asset"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// DepositRequest credita saldo na conta Owner (vazio = a do chamador); restrito ao owner global
type DepositRequest struct {
	Owner       common.Address `json:"owner"`
	Asset       common.Address `json:"asset"`
	Amount      *big.Int       `json:"amount"`
	ExternalRef string         `json:"external_ref"`
}
