package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

// ErrNoPrice indica que nenhum tick foi recebido ainda
var ErrNoPrice = fmt.Errorf("%w: no price received yet", fees.ErrInvalidPriceFeed)

// WSPriceFeed mantém o último preço recebido por WebSocket do fornecedor.
// Implementa fees.PriceFeed.
type WSPriceFeed struct {
	URL  string      // endpoint WebSocket do fornecedor
	Pair string      // par aceito; vazio aceita qualquer um
	Log  *zap.Logger // logger estruturado

	mu    sync.RWMutex
	last  fees.Price
	round uint64
	ok    bool
}

func (f *WSPriceFeed) LatestPrice(context.Context) (fees.Price, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ok {
		return fees.Price{}, ErrNoPrice
	}
	return fees.Price{Value: f.last.Value, UpdatedAt: f.last.UpdatedAt}, nil
}

// Start mantém a conexão aberta e reconecta com espera fixa até ctx ser cancelado
func (f *WSPriceFeed) Start(ctx context.Context) error {
	for {
		if err := f.connectAndListen(ctx); err != nil {
			f.Log.Warn("price feed connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			f.Log.Info("context canceled, stopping price feed")
			return nil
		case <-time.After(3 * time.Second):
		}
	}
}

func (f *WSPriceFeed) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.Log.Info("connected to price feed", zap.String("url", f.URL))

	// desbloqueia o ReadMessage quando ctx é cancelado
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var u events.PriceUpdate
		if err := json.Unmarshal(message, &u); err != nil {
			f.Log.Warn("invalid price message", zap.Error(err))
			continue
		}
		f.apply(u)
	}
}

// apply registra o tick se for do par esperado e de um round mais novo
func (f *WSPriceFeed) apply(u events.PriceUpdate) bool {
	if f.Pair != "" && u.Pair != f.Pair {
		return false
	}
	if u.Price == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ok && u.RoundID != 0 && u.RoundID <= f.round {
		return false
	}
	f.last = fees.Price{Value: u.Price, UpdatedAt: time.Unix(u.UpdatedAt, 0)}
	f.round = u.RoundID
	f.ok = true
	return true
}
