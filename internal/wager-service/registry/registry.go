// Package registry guarda a configuração por ativo lida pelo engine de apostas.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
)

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrExcessiveHouseEdge = errors.New("excessive house edge")
)

// AssetConfig é a configuração de um ativo. O valor zero equivale a "não configurado".
type AssetConfig struct {
	HouseEdgeBps         uint16         `json:"house_edge_bps"`
	OracleSubscriptionID uint64         `json:"oracle_subscription_id"`
	Partner              common.Address `json:"partner"`
	MinBetAmount         *big.Int       `json:"min_bet_amount"`
	AccruedOracleFees    *big.Int       `json:"accrued_oracle_fees"`
	PendingCount         uint64         `json:"pending_count"`
}

func (c AssetConfig) clone() AssetConfig {
	out := c
	out.MinBetAmount = cloneInt(c.MinBetAmount)
	out.AccruedOracleFees = cloneInt(c.AccruedOracleFees)
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Store persiste snapshots da configuração por ativo
type Store interface {
	Save(ctx context.Context, asset common.Address, cfg AssetConfig) error
	LoadAll(ctx context.Context) (map[common.Address]AssetConfig, error)
}

// Registry é o dono exclusivo das AssetConfig. Seguro para uso concorrente.
type Registry struct {
	mu           sync.RWMutex
	owner        common.Address
	defaultSubID uint64
	assets       map[common.Address]*AssetConfig

	store Store
	log   *zap.Logger
}

func New(owner common.Address, defaultSubID uint64, store Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		owner:        owner,
		defaultSubID: defaultSubID,
		assets:       make(map[common.Address]*AssetConfig),
		store:        store,
		log:          log,
	}
}

// Restore carrega os snapshots do Store, sobrescrevendo o estado em memória
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	all, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for asset, cfg := range all {
		c := cfg.clone()
		r.assets[asset] = &c
	}
	return nil
}

func (r *Registry) Owner() common.Address { return r.owner }

// Get retorna uma cópia da configuração do ativo
func (r *Registry) Get(asset common.Address) AssetConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.assets[asset]; ok {
		return c.clone()
	}
	return AssetConfig{}.clone()
}

func (r *Registry) HouseEdge(asset common.Address) uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.assets[asset]; ok {
		return c.HouseEdgeBps
	}
	return 0
}

// SubscriptionID retorna a assinatura do oráculo do ativo ou a global
func (r *Registry) SubscriptionID(asset common.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.assets[asset]; ok && c.OracleSubscriptionID != 0 {
		return c.OracleSubscriptionID
	}
	return r.defaultSubID
}

func (r *Registry) MinBetAmount(asset common.Address) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.assets[asset]; ok {
		return cloneInt(c.MinBetAmount)
	}
	return new(big.Int)
}

// Configured informa se algum campo administrativo do ativo já foi definido.
// Taxas acumuladas e contador de pendentes não contam.
func (r *Registry) Configured(asset common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.assets[asset]
	if !ok {
		return false
	}
	return c.HouseEdgeBps != 0 ||
		c.OracleSubscriptionID != 0 ||
		c.Partner != (common.Address{}) ||
		(c.MinBetAmount != nil && c.MinBetAmount.Sign() > 0)
}

// CanAdminister informa se caller é o owner global ou o parceiro do ativo
func (r *Registry) CanAdminister(caller, asset common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canAdminister(caller, asset)
}

func (r *Registry) canAdminister(caller, asset common.Address) bool {
	if caller == (common.Address{}) {
		return false
	}
	if caller == r.owner {
		return true
	}
	c, ok := r.assets[asset]
	return ok && c.Partner != (common.Address{}) && c.Partner == caller
}

func (r *Registry) SetHouseEdge(ctx context.Context, caller, asset common.Address, bps uint16) error {
	if bps > fees.MaxHouseEdgeBps {
		return fmt.Errorf("%w: %d bps > %d", ErrExcessiveHouseEdge, bps, fees.MaxHouseEdgeBps)
	}
	return r.update(ctx, caller, asset, func(c *AssetConfig) { c.HouseEdgeBps = bps })
}

func (r *Registry) SetMinBetAmount(ctx context.Context, caller, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid min bet amount %v", amount)
	}
	v := new(big.Int).Set(amount)
	return r.update(ctx, caller, asset, func(c *AssetConfig) { c.MinBetAmount = v })
}

func (r *Registry) SetPartner(ctx context.Context, caller, asset, partner common.Address) error {
	return r.update(ctx, caller, asset, func(c *AssetConfig) { c.Partner = partner })
}

func (r *Registry) SetSubscriptionID(ctx context.Context, caller, asset common.Address, subID uint64) error {
	return r.update(ctx, caller, asset, func(c *AssetConfig) { c.OracleSubscriptionID = subID })
}

// DrainOracleFees zera o pool de taxas do oráculo do ativo e devolve o valor drenado
func (r *Registry) DrainOracleFees(ctx context.Context, caller, asset common.Address) (*big.Int, error) {
	var drained *big.Int
	err := r.update(ctx, caller, asset, func(c *AssetConfig) {
		drained = c.AccruedOracleFees
		c.AccruedOracleFees = new(big.Int)
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}

// AccrueOracleFee soma amount ao pool de taxas do oráculo do ativo
func (r *Registry) AccrueOracleFee(ctx context.Context, asset common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	r.mutate(ctx, asset, func(c *AssetConfig) { c.AccruedOracleFees.Add(c.AccruedOracleFees, amount) })
}

// TakeOracleFee retira amount do pool apenas se houver saldo suficiente (tudo ou nada)
func (r *Registry) TakeOracleFee(ctx context.Context, asset common.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return true
	}
	ok := false
	r.mutate(ctx, asset, func(c *AssetConfig) {
		if c.AccruedOracleFees.Cmp(amount) >= 0 {
			c.AccruedOracleFees.Sub(c.AccruedOracleFees, amount)
			ok = true
		}
	})
	return ok
}

func (r *Registry) IncPending(ctx context.Context, asset common.Address) {
	r.mutate(ctx, asset, func(c *AssetConfig) { c.PendingCount++ })
}

func (r *Registry) DecPending(ctx context.Context, asset common.Address) {
	r.mutate(ctx, asset, func(c *AssetConfig) {
		if c.PendingCount > 0 {
			c.PendingCount--
		}
	})
}

// update aplica fn após validar o acesso de caller
func (r *Registry) update(ctx context.Context, caller, asset common.Address, fn func(*AssetConfig)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.canAdminister(caller, asset) {
		return ErrAccessDenied
	}

	r.persist(ctx, asset, r.apply(asset, fn))
	return nil
}

// mutate aplica fn sem checagem de acesso (uso interno do engine)
func (r *Registry) mutate(ctx context.Context, asset common.Address, fn func(*AssetConfig)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.persist(ctx, asset, r.apply(asset, fn))
}

// apply cria a configuração implicitamente na primeira escrita. Chamar com mu travado.
func (r *Registry) apply(asset common.Address, fn func(*AssetConfig)) AssetConfig {
	c, ok := r.assets[asset]
	if !ok {
		cfg := AssetConfig{}.clone()
		c = &cfg
		r.assets[asset] = c
	}
	fn(c)
	return c.clone()
}

// persist grava o snapshot no Store com mu travado, preservando a ordem das escritas.
// Falhas só são logadas: o estado em memória é a fonte de verdade.
func (r *Registry) persist(ctx context.Context, asset common.Address, snap AssetConfig) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, asset, snap); err != nil {
		r.log.Warn("registry persist failed", zap.String("asset", asset.Hex()), zap.Error(err))
	}
}
