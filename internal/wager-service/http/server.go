package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/dto"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/engine"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/vault"
)

// CallerHeader identifica o chamador autenticado (endereço hex)
const CallerHeader = "X-Caller"

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Engine define as operações do engine expostas pela API
type Engine interface {
	NewWager(ctx context.Context, req engine.WagerRequest) (*engine.Placement, error)
	Get(ctx context.Context, id uint64) (*repo.Bet, error)
	Refund(ctx context.Context, id uint64) (*engine.Refund, error)
	ListRecent(ctx context.Context, user common.Address, count int) ([]repo.Bet, error)
	EstimateOracleCost(ctx context.Context) (*big.Int, error)
	WithdrawOracleFees(ctx context.Context, caller, asset common.Address) (*big.Int, error)
	Recover(ctx context.Context, caller, asset, to common.Address, amount *big.Int) error
	Pause(caller common.Address) error
	Unpause(caller common.Address) error
}

// Registry define a leitura e os setters administrativos por ativo
type Registry interface {
	Owner() common.Address
	Get(asset common.Address) registry.AssetConfig
	SubscriptionID(asset common.Address) uint64
	SetHouseEdge(ctx context.Context, caller, asset common.Address, bps uint16) error
	SetMinBetAmount(ctx context.Context, caller, asset common.Address, amount *big.Int) error
	SetPartner(ctx context.Context, caller, asset, partner common.Address) error
	SetSubscriptionID(ctx context.Context, caller, asset common.Address, subID uint64) error
}

// Accounts são as contas custodiadas no vault
type Accounts interface {
	Balance(ctx context.Context, owner, asset common.Address) (*big.Int, error)
	Deposit(ctx context.Context, owner, asset common.Address, amount *big.Int, ref string) (*big.Int, error)
}

// Server expõe a API REST do wager-service
type Server struct {
	log      *zap.Logger
	engine   Engine
	registry Registry
	accounts Accounts

	// CORSOrigins habilita CORS para os front-ends listados; vazio desliga
	CORSOrigins []string
}

func NewServer(log *zap.Logger, e Engine, r Registry, a Accounts) *Server {
	return &Server{log: log, engine: e, registry: r, accounts: a}
}

// Router retorna o roteador HTTP com as rotas da API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", CallerHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Post("/v1/wagers", s.placeWager)
	r.Get("/v1/wagers/{id}", s.getWager)
	r.Post("/v1/wagers/{id}/refund", s.refund)
	r.Get("/v1/users/{user}/wagers", s.listWagers) // ?limit=
	r.Get("/v1/oracle/cost", s.oracleCost)

	r.Route("/v1/assets/{asset}", func(r chi.Router) {
		r.Get("/", s.getAsset)
		r.Put("/house-edge", s.setHouseEdge)
		r.Put("/min-bet", s.setMinBet)
		r.Put("/partner", s.setPartner)
		r.Put("/subscription", s.setSubscription)
		r.Post("/oracle-fees/withdraw", s.withdrawOracleFees)
	})

	r.Post("/v1/admin/pause", s.pause)
	r.Post("/v1/admin/unpause", s.unpause)
	r.Post("/v1/admin/recover", s.recoverEscrow)

	r.Post("/v1/accounts/deposit", s.deposit)
	r.Get("/v1/accounts/{owner}/{asset}", s.balance)
	return r
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req dto.PlaceWagerRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.engine.NewWager(r.Context(), engine.WagerRequest{
		User:       caller,
		Asset:      req.Asset,
		Amount:     req.Amount,
		Multiplier: req.Multiplier,
		NumWords:   req.NumWords,
		Referrer:   req.Referrer,
		Value:      req.Value,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceWagerResponse{
		Bet:        dto.NewBetResponse(p.Bet),
		Returned:   p.Returned,
		OracleCost: p.OracleCost,
	})
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id, ok := betID(w, r)
	if !ok {
		return
	}
	b, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBetResponse(b))
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	id, ok := betID(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Refund(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.RefundResponse{
		Bet:        dto.NewBetResponse(res.Bet),
		Principal:  res.Principal,
		OracleCost: res.OracleCost,
	})
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r, "user")
	if !ok {
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}
	bets, err := s.engine.ListRecent(r.Context(), user, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]dto.BetResponse, 0, len(bets))
	for i := range bets {
		out = append(out, dto.NewBetResponse(&bets[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) oracleCost(w http.ResponseWriter, r *http.Request) {
	cost, err := s.engine.EstimateOracleCost(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OracleCostResponse{OracleCost: cost})
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := addressParam(w, r, "asset")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.assetResponse(asset))
}

func (s *Server) setHouseEdge(w http.ResponseWriter, r *http.Request) {
	var req dto.HouseEdgeRequest
	s.adminAsset(w, r, &req, func(ctx context.Context, caller, asset common.Address) error {
		return s.registry.SetHouseEdge(ctx, caller, asset, req.Bps)
	})
}

func (s *Server) setMinBet(w http.ResponseWriter, r *http.Request) {
	var req dto.MinBetRequest
	s.adminAsset(w, r, &req, func(ctx context.Context, caller, asset common.Address) error {
		return s.registry.SetMinBetAmount(ctx, caller, asset, req.Amount)
	})
}

func (s *Server) setPartner(w http.ResponseWriter, r *http.Request) {
	var req dto.PartnerRequest
	s.adminAsset(w, r, &req, func(ctx context.Context, caller, asset common.Address) error {
		return s.registry.SetPartner(ctx, caller, asset, req.Partner)
	})
}

func (s *Server) setSubscription(w http.ResponseWriter, r *http.Request) {
	var req dto.SubscriptionRequest
	s.adminAsset(w, r, &req, func(ctx context.Context, caller, asset common.Address) error {
		return s.registry.SetSubscriptionID(ctx, caller, asset, req.SubscriptionID)
	})
}

// adminAsset decodifica req, aplica fn como caller e responde com a configuração atualizada
func (s *Server) adminAsset(w http.ResponseWriter, r *http.Request, req any, fn func(context.Context, common.Address, common.Address) error) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	asset, ok := addressParam(w, r, "asset")
	if !ok {
		return
	}
	if !decode(w, r, req) {
		return
	}
	if err := fn(r.Context(), caller, asset); err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("asset config updated",
		zap.String("caller", caller.Hex()),
		zap.String("asset", asset.Hex()),
		zap.String("path", r.URL.Path),
	)
	writeJSON(w, http.StatusOK, s.assetResponse(asset))
}

func (s *Server) withdrawOracleFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	asset, ok := addressParam(w, r, "asset")
	if !ok {
		return
	}
	amount, err := s.engine.WithdrawOracleFees(r.Context(), caller, asset)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WithdrawResponse{Asset: asset, Amount: amount})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.togglePause(w, r, true)
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	s.togglePause(w, r, false)
}

func (s *Server) togglePause(w http.ResponseWriter, r *http.Request, paused bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	op := s.engine.Unpause
	if paused {
		op = s.engine.Pause
	}
	if err := op(caller); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PauseResponse{Paused: paused})
}

func (s *Server) recoverEscrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req dto.RecoverRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.Recover(r.Context(), caller, req.Asset, req.To, req.Amount); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deposit credita uma conta do vault. Só o owner global pode financiar contas.
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if caller != s.registry.Owner() {
		s.fail(w, engine.ErrAccessDenied)
		return
	}
	var req dto.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	target := req.Owner
	if target == (common.Address{}) {
		target = caller
	}
	bal, err := s.accounts.Deposit(r.Context(), target, req.Asset, req.Amount, req.ExternalRef)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("account funded",
		zap.String("caller", caller.Hex()),
		zap.String("owner", target.Hex()),
		zap.String("asset", req.Asset.Hex()),
		zap.String("amount", req.Amount.String()),
	)
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Owner: target, Asset: req.Asset, Balance: bal})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	owner, ok := addressParam(w, r, "owner")
	if !ok {
		return
	}
	asset, ok := addressParam(w, r, "asset")
	if !ok {
		return
	}
	bal, err := s.accounts.Balance(r.Context(), owner, asset)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Owner: owner, Asset: asset, Balance: bal})
}

func (s *Server) assetResponse(asset common.Address) dto.AssetResponse {
	return dto.NewAssetResponse(asset, s.registry.Get(asset), s.registry.SubscriptionID(asset))
}

// caller lê o endereço do header X-Caller
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	v := r.Header.Get(CallerHeader)
	if !common.IsHexAddress(v) {
		writeError(w, http.StatusUnauthorized, CallerHeader+" header required")
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

// fail traduz erros do domínio em status HTTP
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, engine.ErrForbiddenAsset),
		errors.Is(err, engine.ErrUnderMinBetAmount),
		errors.Is(err, engine.ErrInsufficientOracleFee),
		errors.Is(err, engine.ErrNotPendingBet),
		errors.Is(err, engine.ErrNotFulfilled),
		errors.Is(err, engine.ErrInvalidWager),
		errors.Is(err, engine.ErrPaused),
		errors.Is(err, engine.ErrExcessiveHouseEdge),
		errors.Is(err, engine.ErrInvalidPriceFeed),
		errors.Is(err, vault.ErrInsufficientFunds),
		errors.Is(err, vault.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func betID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return 0, false
	}
	return id, true
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	v := chi.URLParam(r, name)
	if !common.IsHexAddress(v) {
		writeError(w, http.StatusBadRequest, "invalid "+name+" address")
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
