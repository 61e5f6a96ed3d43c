package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/vrf-wager-engine/internal/shared/config"
	"github.com/radieske/vrf-wager-engine/internal/shared/kafka"
	"github.com/radieske/vrf-wager-engine/internal/shared/logger"
	"github.com/radieske/vrf-wager-engine/internal/shared/metrics"
	"github.com/radieske/vrf-wager-engine/internal/supplier-simulator/mock"
	"github.com/radieske/vrf-wager-engine/internal/supplier-simulator/vrf"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/pkg/contracts/events"
)

const pricePair = "LINK/ETH"

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus para monitoramento de conexões, mensagens e sorteios
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "supplier_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "supplier_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplier_vrf_outcomes_total",
		Help: "Resultados publicados por desfecho",
	}, []string{"result"})
)

// Representa uma conexão de cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados e faz broadcast dos ticks de preço
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Envia uma mensagem para todos os clientes conectados
func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	id := fmt.Sprintf("%d", time.Now().UnixNano())
	h.add(&clientConn{id: id, conn: conn})

	// mantém a conexão viva e remove o cliente ao desconectar
	go func() {
		defer func() {
			h.remove(id)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// tickPrices publica um passeio aleatório de ±2% em torno de 0.005 ETH por LINK a cada 3s
func tickPrices(ctx context.Context, h *hub) error {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	price := big.NewInt(5e15)
	var round uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		// variação em bps: [-200, 200]
		delta := new(big.Int).Mul(price, big.NewInt(int64(rand.Intn(401)-200)))
		price.Add(price, delta.Quo(delta, big.NewInt(10_000)))
		round++
		h.broadcast(events.PriceUpdate{
			Pair:      pricePair,
			Price:     new(big.Int).Set(price),
			UpdatedAt: time.Now().Unix(),
			RoundID:   round,
		})
	}
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "supplier-simulator"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, outcomes)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Ativos aceitos pelo bank: nativo + os do arquivo de bootstrap
	assets := []common.Address{{}}
	if cfg.AssetsFile != "" {
		f, err := registry.LoadFile(cfg.AssetsFile)
		if err != nil {
			log.Fatal("assets file", zap.Error(err))
		}
		for _, a := range f.Assets {
			assets = append(assets, common.HexToAddress(a.Address))
		}
	}
	pool, _ := new(big.Int).SetString("1000000000000000000000", 10) // 1000 unidades de 18 casas
	bank := mock.NewBank(log.Named("bank"), assets, pool, mock.DefaultRiskBps)
	referrals := mock.NewReferral()
	h := newHub(log)

	// Sorteio: consome os pedidos do engine e publica os resultados
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRandomnessRequests, "supplier-vrf")
	defer reader.Close()
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerOutcomes)
	defer writer.Close()
	fulfiller := &vrf.Fulfiller{
		Log:    log.Named("vrf"),
		Reader: reader,
		Writer: writer,
		Delay:  time.Second,
		OnFulfilled: func(wins bool) {
			if wins {
				outcomes.WithLabelValues(events.ResultWin).Inc()
			} else {
				outcomes.WithLabelValues(events.ResultLoss).Inc()
			}
		},
	}

	// ==== Roteador público: /ws, bank e referral
	r := chi.NewRouter()
	r.Get("/ws", h.serveWS)
	bank.Routes(r)
	referrals.Routes(r)

	publicSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort)

	log.Info("supplier simulator running",
		zap.String("addr", publicSrv.Addr),
		zap.String("metrics", metricsSrv.Addr),
		zap.Int("assets", len(assets)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, publicSrv) })
	g.Go(func() error { return metrics.Serve(gctx, metricsSrv) })
	g.Go(func() error { return tickPrices(gctx, h) })
	g.Go(func() error { return fulfiller.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("supplier simulator stopped with error", zap.Error(err))
		return
	}
	log.Info("supplier simulator stopped")
}
