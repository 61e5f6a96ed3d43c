package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
)

// ChainReader é o subconjunto de *ethclient.Client lido pelo engine
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Chain usa um nó Ethereum como contador de blocos e fonte de gas price.
// Implementa engine.BlockSource e fees.FeeSchedule.
type Chain struct {
	client     ChainReader
	flatFeePPM uint32
}

func NewChain(client ChainReader, flatFeePPM uint32) *Chain {
	return &Chain{client: client, flatFeePPM: flatFeePPM}
}

// DialChain conecta ao endpoint RPC; o retorno close libera a conexão
func DialChain(ctx context.Context, rpcURL string, flatFeePPM uint32) (*Chain, func(), error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial eth rpc: %w", err)
	}
	return NewChain(c, flatFeePPM), c.Close, nil
}

func (c *Chain) CurrentBlock(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

func (c *Chain) FeeConfig(ctx context.Context) (fees.FeeConfig, error) {
	gp, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fees.FeeConfig{}, fmt.Errorf("suggest gas price: %w", err)
	}
	return fees.FeeConfig{FlatFeePPM: c.flatFeePPM, GasPrice: gp}, nil
}

// LocalChain deriva o número do bloco do relógio e usa gas price fixo.
// Blocos contam a partir da época Unix, então sobrevivem a reinícios.
type LocalChain struct {
	BlockTime  time.Duration
	GasPrice   *big.Int
	FlatFeePPM uint32

	now func() time.Time
}

func NewLocalChain(blockTime time.Duration, gasPrice *big.Int, flatFeePPM uint32) *LocalChain {
	if blockTime <= 0 {
		blockTime = 12 * time.Second
	}
	return &LocalChain{BlockTime: blockTime, GasPrice: gasPrice, FlatFeePPM: flatFeePPM, now: time.Now}
}

func (l *LocalChain) CurrentBlock(context.Context) (uint64, error) {
	return uint64(l.now().UnixNano() / int64(l.BlockTime)), nil
}

func (l *LocalChain) FeeConfig(context.Context) (fees.FeeConfig, error) {
	gp := new(big.Int)
	if l.GasPrice != nil {
		gp.Set(l.GasPrice)
	}
	return fees.FeeConfig{FlatFeePPM: l.FlatFeePPM, GasPrice: gp}, nil
}
