package fees

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// VerificationGas é o overhead fixo de verificação da prova do oráculo.
const VerificationGas = 200_000

var (
	ErrInvalidPriceFeed = errors.New("invalid price feed")

	ppmToWei = big.NewInt(1e12) // 1 ppm de LINK em wei de LINK
	oneEther = big.NewInt(1e18)
)

// Price é a última leitura do feed: wei da moeda nativa por unidade (1e18) da moeda do oráculo.
type Price struct {
	Value     *big.Int
	UpdatedAt time.Time
}

// PriceFeed fornece o preço corrente da moeda de liquidação do oráculo.
type PriceFeed interface {
	LatestPrice(ctx context.Context) (Price, error)
}

// FeeConfig é a tabela de taxas do coordenador do oráculo.
type FeeConfig struct {
	FlatFeePPM uint32   // taxa fixa por atendimento, em milionésimos da moeda do oráculo
	GasPrice   *big.Int // wei por unidade de gas
}

// FeeSchedule fornece a tabela de taxas corrente do coordenador.
type FeeSchedule interface {
	FeeConfig(ctx context.Context) (FeeConfig, error)
}

// Estimator calcula quanto o chamador precisa pré-pagar para cobrir o callback do oráculo.
type Estimator struct {
	Feed             PriceFeed
	Schedule         FeeSchedule
	CallbackGasLimit uint32
	MaxPriceAge      time.Duration // 0 desliga a checagem de staleness

	now func() time.Time
}

func NewEstimator(feed PriceFeed, schedule FeeSchedule, callbackGasLimit uint32, maxAge time.Duration) *Estimator {
	return &Estimator{
		Feed:             feed,
		Schedule:         schedule,
		CallbackGasLimit: callbackGasLimit,
		MaxPriceAge:      maxAge,
		now:              time.Now,
	}
}

// Estimate = gasPrice*(callbackGasLimit+VerificationGas) + flatFeePPM*1e12*price/1e18
func (e *Estimator) Estimate(ctx context.Context) (*big.Int, error) {
	p, err := e.Feed.LatestPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("price feed: %w", err)
	}
	if p.Value == nil || p.Value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price %v", ErrInvalidPriceFeed, p.Value)
	}
	if e.MaxPriceAge > 0 {
		now := time.Now
		if e.now != nil {
			now = e.now
		}
		if age := now().Sub(p.UpdatedAt); age > e.MaxPriceAge {
			return nil, fmt.Errorf("%w: price is %s old", ErrInvalidPriceFeed, age.Truncate(time.Second))
		}
	}

	fc, err := e.Schedule.FeeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}

	gas := new(big.Int).SetUint64(uint64(e.CallbackGasLimit) + VerificationGas)
	cost := new(big.Int)
	if fc.GasPrice != nil {
		cost.Mul(fc.GasPrice, gas)
	}

	flat := new(big.Int).Mul(big.NewInt(int64(fc.FlatFeePPM)), ppmToWei)
	flat.Mul(flat, p.Value)
	flat.Quo(flat, oneEther)

	return cost.Add(cost, flat), nil
}
