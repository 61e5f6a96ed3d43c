// Package engine implementa o ciclo de vida das apostas: aceite, liquidação e estorno.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/guard"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

const (
	// MinimumBetUnit é o piso absoluto de aposta, em unidades mínimas do ativo
	MinimumBetUnit = 10_000
	// RefundConfirmations é a janela, em blocos, antes de uma aposta pendente poder ser estornada
	RefundConfirmations = 30
	// NumWords padrão de um pedido de aleatoriedade
	DefaultNumWords = 1

	defaultLockTTL = 30 * time.Second
)

// NativeAsset identifica a moeda nativa (endereço zero)
var NativeAsset = common.Address{}

// Deps agrupa os colaboradores do engine. Referral e Publisher são opcionais.
type Deps struct {
	Ledger    Ledger
	Registry  *registry.Registry
	Estimator CostEstimator
	Bank      Bank
	Referral  Referral
	Oracle    Oracle
	Vault     Vault
	Blocks    BlockSource
	Locker    Locker
	Publisher Publisher

	// Conta de custódia do engine e conta do bank no Vault
	EngineAddress common.Address
	BankAddress   common.Address

	CallbackGasLimit uint32
	LockTTL          time.Duration
}

type Engine struct {
	log *zap.Logger

	ledger    Ledger
	registry  *registry.Registry
	estimator CostEstimator
	bank      Bank
	referral  Referral
	oracle    Oracle
	vault     Vault
	blocks    BlockSource
	locker    Locker
	pub       Publisher

	self     common.Address
	bankAddr common.Address

	callbackGasLimit uint32
	lockTTL          time.Duration
	paused           atomic.Bool
	now              func() time.Time
}

func New(log *zap.Logger, d Deps) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	ttl := d.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	locker := d.Locker
	if locker == nil {
		locker = guard.NewMemory()
	}
	return &Engine{
		log:              log,
		ledger:           d.Ledger,
		registry:         d.Registry,
		estimator:        d.Estimator,
		bank:             d.Bank,
		referral:         d.Referral,
		oracle:           d.Oracle,
		vault:            d.Vault,
		blocks:           d.Blocks,
		locker:           locker,
		pub:              d.Publisher,
		self:             d.EngineAddress,
		bankAddr:         d.BankAddress,
		callbackGasLimit: d.CallbackGasLimit,
		lockTTL:          ttl,
		now:              time.Now,
	}
}

// WagerRequest é o pedido de aposta. Value é o valor nativo anexado pelo chamador:
// para o ativo nativo cobre aposta + taxa do oráculo, para tokens é só a taxa.
type WagerRequest struct {
	User       common.Address
	Asset      common.Address
	Amount     *big.Int
	Multiplier uint32
	NumWords   uint32
	Referrer   common.Address
	Value      *big.Int
}

// Placement descreve a aposta aceita
type Placement struct {
	Bet        *repo.Bet
	Returned   *big.Int // excedente acima do max bet que não foi retido
	OracleCost *big.Int
}

// NewWager valida, retém os fundos, pede aleatoriedade ao oráculo e registra a aposta pendente.
// Em caso de erro nenhum saldo é movido e nenhuma aposta é registrada.
func (e *Engine) NewWager(ctx context.Context, req WagerRequest) (*Placement, error) {
	p, err := e.newWager(ctx, req)
	if err != nil {
		wagersRejected.WithLabelValues(rejectReason(err)).Inc()
		e.log.Info("wager rejected",
			zap.String("user", req.User.Hex()),
			zap.String("asset", req.Asset.Hex()),
			zap.Error(err),
		)
		return nil, err
	}
	return p, nil
}

func (e *Engine) newWager(ctx context.Context, req WagerRequest) (*Placement, error) {
	if e.paused.Load() {
		return nil, ErrPaused
	}
	if req.User == (common.Address{}) {
		return nil, fmt.Errorf("%w: user required", ErrInvalidWager)
	}
	if req.Multiplier == 0 {
		return nil, fmt.Errorf("%w: multiplier required", ErrInvalidWager)
	}
	amount := orZero(req.Amount)
	value := orZero(req.Value)
	if amount.Sign() < 0 || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidWager)
	}
	numWords := req.NumWords
	if numWords == 0 {
		numWords = DefaultNumWords
	}

	unlock, err := e.locker.Acquire(ctx, "wager:"+req.User.Hex(), e.lockTTL)
	if errors.Is(err, guard.ErrLockHeld) {
		return nil, ErrReentrantCall
	}
	if err != nil {
		return nil, fmt.Errorf("acquire wager lock: %w", err)
	}
	defer unlock()

	allowed, err := e.bank.IsAllowedToken(ctx, req.Asset)
	if err != nil {
		return nil, fmt.Errorf("bank allowlist: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenAsset, req.Asset.Hex())
	}

	native := req.Asset == NativeAsset
	fee := new(big.Int).Set(value)
	if native {
		if value.Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: value %s below amount %s", ErrInsufficientOracleFee, value, amount)
		}
		fee.Sub(value, amount)
	}

	estimate, err := e.estimator.Estimate(ctx)
	if err != nil {
		return nil, fmt.Errorf("estimate oracle cost: %w", err)
	}
	if !fees.CoversEstimate(fee, estimate) {
		return nil, fmt.Errorf("%w: paid %s, estimate %s", ErrInsufficientOracleFee, fee, estimate)
	}

	minBet := e.minBet(req.Asset)
	if amount.Cmp(minBet) < 0 {
		return nil, fmt.Errorf("%w: %s < %s", ErrUnderMinBetAmount, amount, minBet)
	}

	maxBet, err := e.bank.GetMaxBetAmount(ctx, req.Asset, req.Multiplier)
	if err != nil {
		return nil, fmt.Errorf("bank max bet: %w", err)
	}
	betAmount := new(big.Int).Set(amount)
	returned := new(big.Int)
	if maxBet != nil && amount.Cmp(maxBet) > 0 {
		betAmount.Set(maxBet)
		if native {
			returned.Sub(amount, maxBet)
		}
	}
	// o teto do bank pode ficar abaixo do mínimo do ativo
	if betAmount.Cmp(minBet) < 0 {
		return nil, fmt.Errorf("%w: max bet %s < %s", ErrUnderMinBetAmount, betAmount, minBet)
	}

	block, err := e.blocks.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("current block: %w", err)
	}

	if err := e.intake(ctx, req.User, req.Asset, betAmount, fee); err != nil {
		return nil, fmt.Errorf("escrow intake: %w", err)
	}

	id, err := e.oracle.RequestRandomness(ctx, events.RandomnessRequested{
		SubscriptionID:   e.registry.SubscriptionID(req.Asset),
		CallbackGasLimit: e.callbackGasLimit,
		NumWords:         numWords,
		User:             req.User,
		Asset:            req.Asset,
		Amount:           betAmount,
		Multiplier:       req.Multiplier,
		TsUnixMs:         e.now().UnixMilli(),
	})
	if err != nil {
		e.release(ctx, req.User, req.Asset, betAmount, fee)
		return nil, fmt.Errorf("request randomness: %w", err)
	}

	prior, err := e.ledger.CountByUser(ctx, req.User)
	if err != nil {
		e.release(ctx, req.User, req.Asset, betAmount, fee)
		return nil, fmt.Errorf("count user bets: %w", err)
	}

	bet := &repo.Bet{
		ID:          id,
		User:        req.User,
		Asset:       req.Asset,
		Amount:      betAmount,
		Multiplier:  req.Multiplier,
		BlockNumber: block,
		Payout:      new(big.Int),
		OracleCost:  fee,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.ledger.Create(ctx, bet); err != nil {
		e.release(ctx, req.User, req.Asset, betAmount, fee)
		return nil, fmt.Errorf("create bet: %w", err)
	}

	e.registry.AccrueOracleFee(ctx, req.Asset, fee)
	e.registry.IncPending(ctx, req.Asset)

	e.trackReferral(ctx, req.User, req.Referrer, prior == 0)

	wagersPlaced.WithLabelValues(req.Asset.Hex()).Inc()
	e.log.Info("wager placed",
		zap.Uint64("bet_id", id),
		zap.String("user", req.User.Hex()),
		zap.String("asset", req.Asset.Hex()),
		zap.String("amount", betAmount.String()),
		zap.String("returned", returned.String()),
		zap.String("oracle_cost", fee.String()),
		zap.Uint64("block", block),
	)

	if e.pub != nil {
		ev := events.WagerPlaced{
			BetID:       id,
			User:        req.User,
			Asset:       req.Asset,
			Amount:      betAmount,
			Returned:    returned,
			OracleCost:  fee,
			Multiplier:  req.Multiplier,
			BlockNumber: block,
			TsUnixMs:    e.now().UnixMilli(),
		}
		if err := e.pub.PublishWagerPlaced(ctx, ev); err != nil {
			e.log.Warn("publish wager placed failed", zap.Uint64("bet_id", id), zap.Error(err))
		}
	}

	return &Placement{Bet: bet, Returned: returned, OracleCost: new(big.Int).Set(fee)}, nil
}

// minBet = max(MinimumBetUnit, minBetAmount do ativo)
func (e *Engine) minBet(asset common.Address) *big.Int {
	floor := big.NewInt(MinimumBetUnit)
	if m := e.registry.MinBetAmount(asset); m.Cmp(floor) > 0 {
		return m
	}
	return floor
}

// intake retém aposta e taxa na conta do engine. Token: aposta no ativo e taxa em nativo;
// se a segunda transferência falhar a primeira é desfeita.
func (e *Engine) intake(ctx context.Context, user, asset common.Address, amount, fee *big.Int) error {
	if asset == NativeAsset {
		total := new(big.Int).Add(amount, fee)
		return e.vault.Transfer(ctx, NativeAsset, user, e.self, total, "wager intake")
	}
	if err := e.vault.Transfer(ctx, asset, user, e.self, amount, "wager intake"); err != nil {
		return err
	}
	if fee.Sign() == 0 {
		return nil
	}
	if err := e.vault.Transfer(ctx, NativeAsset, user, e.self, fee, "oracle fee intake"); err != nil {
		if rerr := e.vault.Transfer(context.WithoutCancel(ctx), asset, e.self, user, amount, "wager intake reversal"); rerr != nil {
			e.log.Error("intake reversal failed", zap.String("user", user.Hex()), zap.Error(rerr))
		}
		return err
	}
	return nil
}

// release devolve a retenção ao usuário quando uma etapa posterior falhou
func (e *Engine) release(ctx context.Context, user, asset common.Address, amount, fee *big.Int) {
	ctx = context.WithoutCancel(ctx)
	fail := func(a common.Address, v *big.Int, err error) {
		settlementFailures.WithLabelValues(IntakeReturnFail).Inc()
		e.log.Error("intake return failed",
			zap.String("user", user.Hex()),
			zap.String("asset", a.Hex()),
			zap.String("amount", v.String()),
			zap.Error(err),
		)
	}
	if asset == NativeAsset {
		total := new(big.Int).Add(amount, fee)
		if err := e.vault.Transfer(ctx, NativeAsset, e.self, user, total, "wager intake return"); err != nil {
			fail(NativeAsset, total, err)
		}
		return
	}
	if err := e.vault.Transfer(ctx, asset, e.self, user, amount, "wager intake return"); err != nil {
		fail(asset, amount, err)
	}
	if fee.Sign() > 0 {
		if err := e.vault.Transfer(ctx, NativeAsset, e.self, user, fee, "oracle fee return"); err != nil {
			fail(NativeAsset, fee, err)
		}
	}
}

// trackReferral registra o indicador na primeira aposta ou a atividade do indicado
func (e *Engine) trackReferral(ctx context.Context, user, referrer common.Address, firstBet bool) {
	if e.referral == nil {
		return
	}
	fail := func(op string, err error) {
		referralFailures.Inc()
		e.log.Warn("referral call failed", zap.String("op", op), zap.String("user", user.Hex()), zap.Error(err))
	}

	has, err := e.referral.HasReferrer(ctx, user)
	if err != nil {
		fail("has_referrer", err)
		return
	}
	switch {
	case firstBet && !has && referrer != (common.Address{}):
		if err := e.referral.AddReferrer(ctx, user, referrer); err != nil {
			fail("add_referrer", err)
		}
	case has:
		if err := e.referral.UpdateReferrerActivity(ctx, user); err != nil {
			fail("update_activity", err)
		}
	}
}

// Get devolve a aposta pelo id
func (e *Engine) Get(ctx context.Context, id uint64) (*repo.Bet, error) {
	return e.ledger.Get(ctx, id)
}

// ListRecent devolve as últimas count apostas do usuário, mais recente primeiro
func (e *Engine) ListRecent(ctx context.Context, user common.Address, count int) ([]repo.Bet, error) {
	return e.ledger.ListRecent(ctx, user, count)
}

// EstimateOracleCost expõe o custo corrente do atendimento do oráculo
func (e *Engine) EstimateOracleCost(ctx context.Context) (*big.Int, error) {
	return e.estimator.Estimate(ctx)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, ErrForbiddenAsset):
		return "forbidden_asset"
	case errors.Is(err, ErrInsufficientOracleFee):
		return "insufficient_fee"
	case errors.Is(err, ErrUnderMinBetAmount):
		return "under_min"
	case errors.Is(err, ErrInvalidPriceFeed):
		return "price_feed"
	case errors.Is(err, ErrInvalidWager):
		return "invalid"
	default:
		return "error"
	}
}
