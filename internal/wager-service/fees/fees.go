// Package fees concentra o cálculo da taxa da casa e a estimativa do custo do oráculo.
package fees

import "math/big"

const (
	// BpsDenominator é 100% em basis points.
	BpsDenominator = 10_000

	// MaxHouseEdgeBps é o teto da taxa da casa (4%).
	MaxHouseEdgeBps = 400

	// SlippagePercent é o mínimo (em %) da estimativa corrente que o chamador precisa pagar.
	SlippagePercent = 95
)

var bpsDenominator = big.NewInt(BpsDenominator)

// Fee retorna amount * bps / 10000, arredondando para baixo.
// amount nil é tratado como zero.
func Fee(amount *big.Int, bps uint16) *big.Int {
	if amount == nil || bps == 0 {
		return new(big.Int)
	}
	f := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return f.Quo(f, bpsDenominator)
}

// CoversEstimate informa se paid cobre pelo menos 95% da estimativa.
func CoversEstimate(paid, estimate *big.Int) bool {
	if estimate == nil || estimate.Sign() <= 0 {
		return true
	}
	if paid == nil {
		return false
	}
	lhs := new(big.Int).Mul(paid, big.NewInt(100))
	rhs := new(big.Int).Mul(estimate, big.NewInt(SlippagePercent))
	return lhs.Cmp(rhs) >= 0
}
