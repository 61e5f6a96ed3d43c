package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/dto"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/engine"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/vault"
)

var (
	owner = common.HexToAddress("0xa1")
	alice = common.HexToAddress("0x01")
	token = common.HexToAddress("0x70")
)

type fakeEngine struct {
	lastReq   engine.WagerRequest
	lastLimit int
	err       error
	bets      map[uint64]*repo.Bet
}

func (f *fakeEngine) NewWager(_ context.Context, req engine.WagerRequest) (*engine.Placement, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	b := &repo.Bet{ID: 1, User: req.User, Asset: req.Asset, Amount: req.Amount, Payout: new(big.Int), OracleCost: big.NewInt(1000), CreatedAt: time.Unix(0, 0)}
	return &engine.Placement{Bet: b, Returned: new(big.Int), OracleCost: big.NewInt(1000)}, nil
}

func (f *fakeEngine) Get(_ context.Context, id uint64) (*repo.Bet, error) {
	if b, ok := f.bets[id]; ok {
		return b, nil
	}
	return nil, repo.ErrNotFound
}

func (f *fakeEngine) Refund(context.Context, uint64) (*engine.Refund, error) {
	return nil, f.err
}

func (f *fakeEngine) ListRecent(_ context.Context, _ common.Address, count int) ([]repo.Bet, error) {
	f.lastLimit = count
	return []repo.Bet{}, nil
}

func (f *fakeEngine) EstimateOracleCost(context.Context) (*big.Int, error) {
	return big.NewInt(1234), nil
}

func (f *fakeEngine) WithdrawOracleFees(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), f.err
}

func (f *fakeEngine) Recover(context.Context, common.Address, common.Address, common.Address, *big.Int) error {
	return f.err
}

func (f *fakeEngine) Pause(caller common.Address) error {
	if caller != owner {
		return engine.ErrAccessDenied
	}
	return nil
}

func (f *fakeEngine) Unpause(caller common.Address) error { return f.Pause(caller) }

func newTestServer(t *testing.T) (*fakeEngine, http.Handler) {
	t.Helper()
	fe := &fakeEngine{bets: map[uint64]*repo.Bet{}}
	reg := registry.New(owner, 1, nil, nil)
	return fe, NewServer(zap.NewNop(), fe, reg, vault.NewMemory()).Router()
}

func do(t *testing.T, h http.Handler, method, path string, caller *common.Address, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != nil {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceWager(t *testing.T) {
	fe, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/wagers", nil, dto.PlaceWagerRequest{Asset: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/wagers", &alice, dto.PlaceWagerRequest{
		Asset: token, Amount: big.NewInt(20_000), Multiplier: 20000, Value: big.NewInt(1000),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, alice, fe.lastReq.User)
	assert.EqualValues(t, 20_000, fe.lastReq.Amount.Int64())

	var out dto.PlaceWagerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, repo.StatusPending, out.Bet.Status)
	assert.EqualValues(t, 1000, out.OracleCost.Int64())
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{engine.ErrForbiddenAsset, http.StatusUnprocessableEntity},
		{engine.ErrInsufficientOracleFee, http.StatusUnprocessableEntity},
		{engine.ErrReentrantCall, http.StatusConflict},
		{engine.ErrAccessDenied, http.StatusForbidden},
		{vault.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		fe, h := newTestServer(t)
		fe.err = tc.err
		rec := do(t, h, http.MethodPost, "/v1/wagers", &alice, dto.PlaceWagerRequest{Asset: token})
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())

		var body dto.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.NotEmpty(t, body.Error)
	}
}

func TestGetWager(t *testing.T) {
	fe, h := newTestServer(t)
	fe.bets[5] = &repo.Bet{ID: 5, User: alice, Amount: big.NewInt(1), Payout: big.NewInt(0), OracleCost: big.NewInt(0), Resolved: true}

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/wagers/abc", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/wagers/6", nil, nil).Code)

	rec := do(t, h, http.MethodGet, "/v1/wagers/5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out dto.BetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, repo.StatusResolved, out.Status)
}

func TestRefundNotFulfilled(t *testing.T) {
	fe, h := newTestServer(t)
	fe.err = engine.ErrNotFulfilled
	rec := do(t, h, http.MethodPost, "/v1/wagers/5/refund", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListWagersLimit(t *testing.T) {
	fe, h := newTestServer(t)
	path := "/v1/users/" + alice.Hex() + "/wagers"

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path, nil, nil).Code)
	assert.Equal(t, defaultListLimit, fe.lastLimit)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path+"?limit=500", nil, nil).Code)
	assert.Equal(t, maxListLimit, fe.lastLimit)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, path+"?limit=x", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/users/nope/wagers", nil, nil).Code)
}

func TestAssetAdmin(t *testing.T) {
	_, h := newTestServer(t)
	path := "/v1/assets/" + token.Hex()
	stranger := common.HexToAddress("0xc3")

	rec := do(t, h, http.MethodPut, path+"/house-edge", &owner, dto.HouseEdgeRequest{Bps: 250})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out dto.AssetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.EqualValues(t, 250, out.HouseEdgeBps)
	assert.EqualValues(t, 1, out.SubscriptionID)

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPut, path+"/house-edge", &stranger, dto.HouseEdgeRequest{Bps: 100}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPut, path+"/house-edge", &owner, dto.HouseEdgeRequest{Bps: 401}).Code)

	rec = do(t, h, http.MethodPut, path+"/min-bet", &owner, dto.MinBetRequest{Amount: big.NewInt(20_000)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.EqualValues(t, 20_000, out.MinBetAmount.Int64())
}

func TestPauseAndOracleCost(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/v1/admin/pause", &alice, nil).Code)

	rec := do(t, h, http.MethodPost, "/v1/admin/pause", &owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p dto.PauseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.True(t, p.Paused)

	rec = do(t, h, http.MethodGet, "/v1/oracle/cost", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c dto.OracleCostResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.EqualValues(t, 1234, c.OracleCost.Int64())
}

func TestDepositAndBalance(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/accounts/deposit", &owner, dto.DepositRequest{Owner: alice, Asset: token, Amount: big.NewInt(500)})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/accounts/deposit", &owner, dto.DepositRequest{Asset: token}).Code)

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+alice.Hex()+"/"+token.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out dto.BalanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.EqualValues(t, 500, out.Balance.Int64())
}

func TestDepositIsOwnerOnly(t *testing.T) {
	_, h := newTestServer(t)
	stranger := common.HexToAddress("0xdead")

	amount, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	rec := do(t, h, http.MethodPost, "/v1/accounts/deposit", &stranger, dto.DepositRequest{Asset: common.Address{}, Amount: amount})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/accounts/"+stranger.Hex()+"/"+common.Address{}.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out dto.BalanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Zero(t, out.Balance.Sign())
}

func TestCORSPreflight(t *testing.T) {
	fe := &fakeEngine{}
	srv := NewServer(zap.NewNop(), fe, registry.New(owner, 1, nil, zap.NewNop()), vault.NewMemory())
	srv.CORSOrigins = []string{"http://app.local"}
	h := srv.Router()

	req := httptest.NewRequest(http.MethodOptions, "/v1/wagers", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", CallerHeader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/wagers", nil)
	req.Header.Set("Origin", "http://evil.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
