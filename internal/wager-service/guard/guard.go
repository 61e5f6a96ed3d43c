// Package guard implementa o lock exclusivo por chamador usado para barrar reentrada.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockHeld indica que já existe uma operação em andamento para a mesma chave
var ErrLockHeld = errors.New("lock already held")

// Memory é um lock por chave dentro do processo. Não bloqueia: Acquire falha na hora se a chave estiver ocupada.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

// Acquire devolve a função de unlock; chamá-la mais de uma vez é seguro.
// O ttl é ignorado: o lock vive até o unlock.
func (m *Memory) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return nil, ErrLockHeld
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
