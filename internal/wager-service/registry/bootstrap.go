package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// File é o formato do arquivo TOML de bootstrap de ativos:
//
//	[[asset]]
//	address = "0x0000000000000000000000000000000000000000"
//	house_edge_bps = 200
//	min_bet_amount = "10000"
//	partner = "0x..."
//	subscription_id = 7
type File struct {
	Assets []AssetEntry `toml:"asset"`
}

type AssetEntry struct {
	Address        string `toml:"address"`
	HouseEdgeBps   uint16 `toml:"house_edge_bps"`
	MinBetAmount   string `toml:"min_bet_amount"`
	Partner        string `toml:"partner"`
	SubscriptionID uint64 `toml:"subscription_id"`
}

// LoadFile lê o TOML de bootstrap
func LoadFile(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &f, nil
}

// Apply semeia, como o owner global, os ativos que ainda não têm configuração administrativa.
// Ativos já configurados (restaurados do Store) são mantidos como estão; só os campos
// presentes no arquivo são gravados. As mesmas validações das operações administrativas se aplicam.
func (f *File) Apply(ctx context.Context, r *Registry) error {
	owner := r.Owner()
	for _, a := range f.Assets {
		if a.Address != "" && !common.IsHexAddress(a.Address) {
			return fmt.Errorf("asset %q: invalid address", a.Address)
		}
		asset := common.HexToAddress(a.Address)
		if r.Configured(asset) {
			r.log.Info("bootstrap skipped, asset already configured", zap.String("asset", asset.Hex()))
			continue
		}

		if a.HouseEdgeBps != 0 {
			if err := r.SetHouseEdge(ctx, owner, asset, a.HouseEdgeBps); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Hex(), err)
			}
		}
		if a.MinBetAmount != "" {
			v, ok := new(big.Int).SetString(a.MinBetAmount, 10)
			if !ok {
				return fmt.Errorf("asset %s: invalid min_bet_amount %q", asset.Hex(), a.MinBetAmount)
			}
			if err := r.SetMinBetAmount(ctx, owner, asset, v); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Hex(), err)
			}
		}
		if a.Partner != "" {
			if !common.IsHexAddress(a.Partner) {
				return fmt.Errorf("asset %s: invalid partner %q", asset.Hex(), a.Partner)
			}
			if err := r.SetPartner(ctx, owner, asset, common.HexToAddress(a.Partner)); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Hex(), err)
			}
		}
		if a.SubscriptionID != 0 {
			if err := r.SetSubscriptionID(ctx, owner, asset, a.SubscriptionID); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Hex(), err)
			}
		}
	}
	return nil
}
