package vault

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Entry é um lançamento do ledger em memória
type Entry struct {
	Owner  common.Address
	Asset  common.Address
	Op     string
	Amount *big.Int
	Ref    string
}

// Memory implementa o vault em memória (testes e ambiente local)
type Memory struct {
	mu       sync.Mutex
	balances map[accountKey]*big.Int
	entries  []Entry
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[accountKey]*big.Int)}
}

func (m *Memory) Balance(_ context.Context, owner, asset common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[accountKey{owner, asset}]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (m *Memory) Deposit(_ context.Context, owner, asset common.Address, amount *big.Int, ref string) (*big.Int, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.credit(owner, asset, amount, ref)
	return new(big.Int).Set(bal), nil
}

// Transfer move amount de from para to; falha inteira se from não tiver saldo
func (m *Memory) Transfer(_ context.Context, asset, from, to common.Address, amount *big.Int, ref string) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.balances[accountKey{from, asset}]
	if !ok || src.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	src.Sub(src, amount)
	m.entries = append(m.entries, Entry{Owner: from, Asset: asset, Op: OpDebit, Amount: new(big.Int).Set(amount), Ref: ref})
	m.credit(to, asset, amount, ref)
	return nil
}

// Entries retorna uma cópia dos lançamentos, na ordem em que ocorreram
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *Memory) credit(owner, asset common.Address, amount *big.Int, ref string) *big.Int {
	k := accountKey{owner, asset}
	bal, ok := m.balances[k]
	if !ok {
		bal = new(big.Int)
		m.balances[k] = bal
	}
	bal.Add(bal, amount)
	m.entries = append(m.entries, Entry{Owner: owner, Asset: asset, Op: OpCredit, Amount: new(big.Int).Set(amount), Ref: ref})
	return bal
}
