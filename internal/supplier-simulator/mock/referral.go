package mock

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	refdto "github.com/radieske/vrf-wager-engine/internal/wager-service/referral/dto"
)

// Referral guarda indicador e contador de atividade por usuário
type Referral struct {
	mu        sync.Mutex
	referrers map[common.Address]common.Address
	activity  map[common.Address]int
}

func NewReferral() *Referral {
	return &Referral{
		referrers: make(map[common.Address]common.Address),
		activity:  make(map[common.Address]int),
	}
}

func (f *Referral) Routes(r chi.Router) {
	r.Get("/referrals/{user}", f.get)
	r.Post("/referrals", f.add)
	r.Post("/referrals/{user}/activity", f.touch)
}

func (f *Referral) Activity(user common.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activity[user]
}

func (f *Referral) get(w http.ResponseWriter, r *http.Request) {
	user := common.HexToAddress(chi.URLParam(r, "user"))
	f.mu.Lock()
	ref, ok := f.referrers[user]
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, refdto.ReferrerResponse{User: user, HasReferrer: ok, Referrer: ref})
}

func (f *Referral) add(w http.ResponseWriter, r *http.Request) {
	var req refdto.AddReferrerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.User == req.Referrer || req.Referrer == (common.Address{}) {
		http.Error(w, "invalid referrer", http.StatusUnprocessableEntity)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.referrers[req.User]; ok {
		http.Error(w, "referrer already set", http.StatusConflict)
		return
	}
	f.referrers[req.User] = req.Referrer
	w.WriteHeader(http.StatusCreated)
}

func (f *Referral) touch(w http.ResponseWriter, r *http.Request) {
	user := common.HexToAddress(chi.URLParam(r, "user"))
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.referrers[user]; !ok {
		http.Error(w, "no referrer", http.StatusNotFound)
		return
	}
	f.activity[user]++
	w.WriteHeader(http.StatusNoContent)
}
