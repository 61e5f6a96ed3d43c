// Package vault custodia os saldos por (dono, ativo) de onde o engine recebe e paga apostas.
package vault

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
)

func validAmount(v *big.Int) bool { return v != nil && v.Sign() > 0 }

// Operações registradas no ledger de contas
const (
	OpCredit = "CREDIT"
	OpDebit  = "DEBIT"
)

type accountKey struct {
	owner common.Address
	asset common.Address
}
