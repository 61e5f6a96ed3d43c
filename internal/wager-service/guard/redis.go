package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua só apaga a chave se o token ainda for o do dono do lock
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Redis implementa o lock com SET NX + TTL, compartilhado entre instâncias do serviço
type Redis struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, unlockSc: redis.NewScript(unlockLua)}
}

func lockKey(key string) string { return "lock:" + key }

// Acquire tenta obter o lock; ErrLockHeld se outra operação já o detém.
func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := l.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// contexto próprio: o unlock precisa rodar mesmo com o ctx do chamador cancelado
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
		})
	}, nil
}
