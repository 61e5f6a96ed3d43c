package repo

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Memory implementa o ledger de apostas em memória
type Memory struct {
	mu     sync.RWMutex
	bets   map[uint64]*Bet
	byUser map[common.Address][]uint64 // ordem de criação

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		bets:   make(map[uint64]*Bet),
		byUser: make(map[common.Address][]uint64),
		now:    time.Now,
	}
}

// Create grava a aposta pendente usando o request id do oráculo como chave
func (m *Memory) Create(_ context.Context, b *Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bets[b.ID]; ok {
		return ErrDuplicateBet
	}
	c := b.clone()
	c.Resolved, c.Refunded = false, false
	c.Payout = new(big.Int)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	m.bets[b.ID] = c
	m.byUser[b.User] = append(m.byUser[b.User], b.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id uint64) (*Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

// MarkResolved faz a transição PENDING -> RESOLVED (compare-and-set)
func (m *Memory) MarkResolved(_ context.Context, id uint64, payout *big.Int) error {
	return m.settle(id, payout, false)
}

// MarkRefunded faz a transição PENDING -> REFUNDED (compare-and-set)
func (m *Memory) MarkRefunded(_ context.Context, id uint64, payout *big.Int) error {
	return m.settle(id, payout, true)
}

func (m *Memory) settle(id uint64, payout *big.Int, refunded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bets[id]
	if !ok {
		return ErrNotFound
	}
	if b.Resolved {
		return ErrNotPending
	}
	b.Resolved = true
	b.Refunded = refunded
	b.Payout = cloneInt(payout)
	return nil
}

// ListRecent retorna até count apostas do usuário, da mais recente para a mais antiga
func (m *Memory) ListRecent(_ context.Context, user common.Address, count int) ([]Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byUser[user]
	if count <= 0 || len(ids) == 0 {
		return []Bet{}, nil
	}
	if count > len(ids) {
		count = len(ids)
	}
	out := make([]Bet, 0, count)
	for i := len(ids) - 1; i >= len(ids)-count; i-- {
		out = append(out, *m.bets[ids[i]].clone())
	}
	return out, nil
}

func (m *Memory) CountByUser(_ context.Context, user common.Address) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[user]), nil
}

// MaxID devolve o maior id já gravado (0 com o ledger vazio)
func (m *Memory) MaxID(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var top uint64
	for id := range m.bets {
		if id > top {
			top = id
		}
	}
	return top, nil
}
