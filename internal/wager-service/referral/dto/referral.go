package dto

import "github.com/ethereum/go-ethereum/common"

// ReferrerResponse responde GET /referrals/{user}
type ReferrerResponse struct {
	User        common.Address `json:"user"`
	HasReferrer bool           `json:"has_referrer"`
	Referrer    common.Address `json:"referrer"`
}

// AddReferrerRequest registra o indicador de um usuário
type AddReferrerRequest struct {
	User     common.Address `json:"user"`
	Referrer common.Address `json:"referrer"`
}
