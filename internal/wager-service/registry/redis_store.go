package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const assetsHashKey = "wager:assets"

// RedisStore persiste cada AssetConfig como um campo JSON do hash "wager:assets"
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Save(ctx context.Context, asset common.Address, cfg AssetConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, assetsHashKey, asset.Hex(), b).Err()
}

func (s *RedisStore) LoadAll(ctx context.Context) (map[common.Address]AssetConfig, error) {
	raw, err := s.rdb.HGetAll(ctx, assetsHashKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[common.Address]AssetConfig, len(raw))
	for field, v := range raw {
		var cfg AssetConfig
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return nil, fmt.Errorf("asset %s: %w", field, err)
		}
		out[common.HexToAddress(field)] = cfg
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
