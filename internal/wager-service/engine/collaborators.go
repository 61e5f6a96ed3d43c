package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// Ledger é o armazenamento autoritativo das apostas (WagerLedger)
type Ledger interface {
	Create(ctx context.Context, b *repo.Bet) error
	Get(ctx context.Context, id uint64) (*repo.Bet, error)
	MarkResolved(ctx context.Context, id uint64, payout *big.Int) error
	MarkRefunded(ctx context.Context, id uint64, payout *big.Int) error
	ListRecent(ctx context.Context, user common.Address, count int) ([]repo.Bet, error)
	CountByUser(ctx context.Context, user common.Address) (int, error)
}

// Bank é o colaborador de escrow que custodia o pool da casa e paga os lucros
type Bank interface {
	IsAllowedToken(ctx context.Context, asset common.Address) (bool, error)
	GetMaxBetAmount(ctx context.Context, asset common.Address, multiplier uint32) (*big.Int, error)
	Payout(ctx context.Context, user, asset common.Address, profit, fee *big.Int) error
	CashIn(ctx context.Context, asset common.Address, amount *big.Int) error
}

// Referral é o serviço de indicações
type Referral interface {
	HasReferrer(ctx context.Context, user common.Address) (bool, error)
	AddReferrer(ctx context.Context, user, referrer common.Address) error
	UpdateReferrerActivity(ctx context.Context, user common.Address) error
}

// Oracle despacha o pedido de aleatoriedade e devolve o id de correlação de forma síncrona
type Oracle interface {
	RequestRandomness(ctx context.Context, req events.RandomnessRequested) (uint64, error)
}

// CostEstimator calcula o custo corrente do atendimento do oráculo
type CostEstimator interface {
	Estimate(ctx context.Context) (*big.Int, error)
}

// Vault movimenta os saldos custodiados (conta do engine, usuários e bank)
type Vault interface {
	Balance(ctx context.Context, owner, asset common.Address) (*big.Int, error)
	Transfer(ctx context.Context, asset, from, to common.Address, amount *big.Int, ref string) error
}

// BlockSource fornece o contador de blocos usado na janela de confirmação
type BlockSource interface {
	CurrentBlock(ctx context.Context) (uint64, error)
}

// Locker fornece o lock exclusivo por chamador contra reentrada
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Publisher emite os sinais observáveis do ciclo de vida das apostas
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
	PublishWagerSettled(ctx context.Context, e events.WagerSettled) error
	PublishSettlementFailure(ctx context.Context, e events.SettlementFailure) error
}
