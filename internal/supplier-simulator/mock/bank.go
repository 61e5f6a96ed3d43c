// Package mock implementa as versões de desenvolvimento do bank e do programa de indicações.
package mock

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	bankdto "github.com/radieske/vrf-wager-engine/internal/wager-service/bank/dto"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
)

// Bank mantém um pool por ativo. O max bet é riskBps do pool dividido pelo multiplicador.
type Bank struct {
	mu      sync.Mutex
	log     *zap.Logger
	riskBps int64
	pools   map[common.Address]*big.Int
	fees    map[common.Address]*big.Int
}

func NewBank(log *zap.Logger, assets []common.Address, initialPool *big.Int, riskBps int64) *Bank {
	b := &Bank{
		log:     log,
		riskBps: riskBps,
		pools:   make(map[common.Address]*big.Int),
		fees:    make(map[common.Address]*big.Int),
	}
	for _, a := range assets {
		b.pools[a] = new(big.Int).Set(initialPool)
		b.fees[a] = new(big.Int)
	}
	return b
}

func (b *Bank) Routes(r chi.Router) {
	r.Get("/bank/tokens/{asset}", b.token)
	r.Get("/bank/tokens/{asset}/max-bet", b.maxBet)
	r.Post("/bank/payout", b.payout)
	r.Post("/bank/cash-in", b.cashIn)
}

// Pool devolve uma cópia do pool do ativo (nil se o ativo não é aceito)
func (b *Bank) Pool(asset common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pools[asset]; ok {
		return new(big.Int).Set(p)
	}
	return nil
}

func (b *Bank) token(w http.ResponseWriter, r *http.Request) {
	asset := common.HexToAddress(chi.URLParam(r, "asset"))
	b.mu.Lock()
	_, ok := b.pools[asset]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, bankdto.TokenResponse{Asset: asset, Allowed: ok})
}

func (b *Bank) maxBet(w http.ResponseWriter, r *http.Request) {
	asset := common.HexToAddress(chi.URLParam(r, "asset"))
	mult, err := strconv.ParseUint(r.URL.Query().Get("multiplier"), 10, 32)
	if err != nil || mult == 0 {
		http.Error(w, "invalid multiplier", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	pool, ok := b.pools[asset]
	out := new(big.Int)
	if ok && pool.Sign() > 0 {
		out.Mul(pool, big.NewInt(b.riskBps))
		out.Quo(out, new(big.Int).SetUint64(mult))
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, bankdto.MaxBetResponse{Asset: asset, Multiplier: uint32(mult), MaxBetAmount: out})
}

func (b *Bank) payout(w http.ResponseWriter, r *http.Request) {
	var req bankdto.PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Profit == nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	pool, ok := b.pools[req.Asset]
	short := ok && pool.Cmp(req.Profit) < 0
	if ok && !short {
		pool.Sub(pool, req.Profit)
		if req.Fee != nil {
			b.fees[req.Asset].Add(b.fees[req.Asset], req.Fee)
		}
	}
	b.mu.Unlock()
	if !ok {
		http.Error(w, "asset not allowed", http.StatusUnprocessableEntity)
		return
	}
	if short {
		b.log.Warn("bank pool short for payout",
			zap.String("asset", req.Asset.Hex()),
			zap.String("profit", req.Profit.String()),
		)
		http.Error(w, "insufficient pool", http.StatusUnprocessableEntity)
		return
	}
	b.log.Info("bank payout",
		zap.String("user", req.User.Hex()),
		zap.String("asset", req.Asset.Hex()),
		zap.String("profit", req.Profit.String()),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bank) cashIn(w http.ResponseWriter, r *http.Request) {
	var req bankdto.CashInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	pool, ok := b.pools[req.Asset]
	if ok {
		pool.Add(pool, req.Amount)
	}
	b.mu.Unlock()
	if !ok {
		http.Error(w, "asset not allowed", http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DefaultRiskBps limita cada aposta a 1% do pool em multiplicador 1x
const DefaultRiskBps = fees.BpsDenominator / 100

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
