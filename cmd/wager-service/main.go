package main

import (
	"context"
	"math/big"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/vrf-wager-engine/internal/fulfillment/consumer"
	sharedcache "github.com/radieske/vrf-wager-engine/internal/shared/cache"
	"github.com/radieske/vrf-wager-engine/internal/shared/config"
	"github.com/radieske/vrf-wager-engine/internal/shared/db"
	"github.com/radieske/vrf-wager-engine/internal/shared/kafka"
	"github.com/radieske/vrf-wager-engine/internal/shared/logger"
	"github.com/radieske/vrf-wager-engine/internal/shared/metrics"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/bank"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/engine"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/fees"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/guard"
	httpapi "github.com/radieske/vrf-wager-engine/internal/wager-service/http"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/oracle"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/producer"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/referral"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/registry"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/repo"
	"github.com/radieske/vrf-wager-engine/internal/wager-service/vault"
)

// betLedger é o ledger do engine mais o maior id gravado, usado para semear os request ids
type betLedger interface {
	engine.Ledger
	MaxID(ctx context.Context) (uint64, error)
}

// accountStore é o vault visto pelo engine e pela API de contas
type accountStore interface {
	engine.Vault
	httpapi.Accounts
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wager-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var checks []metrics.HealthFunc

	// Ledger de apostas e vault: Postgres quando configurado, memória caso contrário
	var (
		ledger   betLedger
		accounts accountStore
	)
	if cfg.PostgresDSN != "" {
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()

		bets := repo.NewPostgres(pg)
		if err := bets.Migrate(ctx); err != nil {
			log.Fatal("bets migrate", zap.Error(err))
		}
		v := vault.NewPostgres(pg)
		if err := v.Migrate(ctx); err != nil {
			log.Fatal("vault migrate", zap.Error(err))
		}
		ledger, accounts = bets, v
		checks = append(checks, pg.PingContext)
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory ledger and vault")
		ledger, accounts = repo.NewMemory(), vault.NewMemory()
	}

	// Redis: snapshots do registry, lock anti-reentrada e contador de request ids
	var (
		regStore registry.Store
		locker   engine.Locker   = guard.NewMemory()
		ids      oracle.IDSource = &oracle.MemoryIDs{}
	)
	if cfg.RedisAddr != "" {
		rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		regStore = registry.NewRedisStore(rdb)
		locker = guard.NewRedis(rdb)
		ids = oracle.NewRedisIDs(rdb)
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		log.Warn("REDIS_ADDR not set, request ids seeded from the in-memory ledger")
	}

	// Request ids sempre acima das apostas já gravadas: um id reutilizado liquidaria a aposta antiga
	maxID, err := ledger.MaxID(ctx)
	if err != nil {
		log.Fatal("ledger max id", zap.Error(err))
	}
	if err := ids.Seed(ctx, maxID); err != nil {
		log.Fatal("seed request ids", zap.Error(err))
	}

	owner := common.HexToAddress(cfg.OwnerAddress)
	reg := registry.New(owner, cfg.DefaultSubscriptionID, regStore, log.Named("registry"))
	if err := reg.Restore(ctx); err != nil {
		log.Fatal("registry restore", zap.Error(err))
	}
	if cfg.AssetsFile != "" {
		f, err := registry.LoadFile(cfg.AssetsFile)
		if err != nil {
			log.Fatal("assets file", zap.Error(err))
		}
		if err := f.Apply(ctx, reg); err != nil {
			log.Fatal("assets bootstrap", zap.Error(err))
		}
		log.Info("assets loaded", zap.String("file", cfg.AssetsFile), zap.Int("count", len(f.Assets)))
	}

	// Fonte de blocos e tabela de taxas: nó Ethereum ou relógio local
	var (
		blocks   engine.BlockSource
		schedule fees.FeeSchedule
	)
	if cfg.EthRPCURL != "" {
		chain, closeChain, err := oracle.DialChain(ctx, cfg.EthRPCURL, cfg.FlatFeePPM)
		if err != nil {
			log.Fatal("eth rpc", zap.Error(err))
		}
		defer closeChain()
		blocks, schedule = chain, chain
	} else {
		gasPrice, ok := new(big.Int).SetString(cfg.GasPriceWei, 10)
		if !ok {
			log.Fatal("invalid ORACLE_GAS_PRICE_WEI", zap.String("value", cfg.GasPriceWei))
		}
		local := oracle.NewLocalChain(12*time.Second, gasPrice, cfg.FlatFeePPM)
		blocks, schedule = local, local
	}

	feed := &oracle.WSPriceFeed{URL: cfg.PriceFeedURL, Pair: "LINK/ETH", Log: log.Named("pricefeed")}
	estimator := fees.NewEstimator(feed, schedule, cfg.CallbackGasLimit, cfg.PriceMaxAge)

	// Kafka: pedidos ao oráculo, eventos do ciclo de vida e DLQ dos atendimentos
	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, log,
			cfg.TopicRandomnessRequests, cfg.TopicWagerOutcomes, cfg.TopicWagerOutcomesDLQ,
			cfg.TopicWagerPlaced, cfg.TopicWagerSettled, cfg.TopicSettlementFailures,
		); err != nil {
			log.Warn("kafka topics", zap.Error(err))
		}
	}
	requestsW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRandomnessRequests)
	placedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerSettled)
	failuresW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementFailures)
	dlqW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerOutcomesDLQ)
	for _, w := range []*kafka.Writer{requestsW, placedW, settledW, failuresW, dlqW} {
		defer w.Close()
	}
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicWagerOutcomes, "wager-fulfillment")
	defer reader.Close()

	eng := engine.New(log.Named("engine"), engine.Deps{
		Ledger:           ledger,
		Registry:         reg,
		Estimator:        estimator,
		Bank:             bank.New(cfg.BankURL),
		Referral:         referral.New(cfg.ReferralURL),
		Oracle:           oracle.NewKafkaRequester(requestsW, ids, log.Named("oracle")),
		Vault:            accounts,
		Blocks:           blocks,
		Locker:           locker,
		Publisher:        producer.NewKafkaPublisher(placedW, settledW, failuresW),
		EngineAddress:    common.HexToAddress(cfg.EngineAddress),
		BankAddress:      common.HexToAddress(cfg.BankAddress),
		CallbackGasLimit: cfg.CallbackGasLimit,
	})

	// Métricas do consumer de atendimentos
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_messages_consumed_total", Help: "mensagens consumidas"})
	resolved := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_bets_resolved_total", Help: "apostas resolvidas"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "fulfillment_outcomes_skipped_total", Help: "atendimentos de apostas já terminais"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fulfillment_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, resolved, skipped, errorsBy)

	proc := &consumer.Processor{
		Log:        log.Named("fulfillment"),
		Reader:     reader,
		Engine:     eng,
		DLQ:        dlqW,
		Retries:    5,
		Backoff:    200 * time.Millisecond,
		OnConsumed: func() { consumed.Inc() },
		OnResolved: func() { resolved.Inc() },
		OnSkipped:  func() { skipped.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	api := httpapi.NewServer(log.Named("http"), eng, reg, accounts)
	api.CORSOrigins = cfg.CORSOrigins
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, checks...)

	log.Info("wager-service started",
		zap.String("http", apiSrv.Addr),
		zap.String("metrics", metricsSrv.Addr),
		zap.String("owner", owner.Hex()),
		zap.String("consume", cfg.TopicWagerOutcomes),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return metrics.Serve(gctx, apiSrv) })
	g.Go(func() error { return metrics.Serve(gctx, metricsSrv) })
	g.Go(func() error { return feed.Start(gctx) })
	g.Go(func() error { return proc.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("wager-service stopped with error", zap.Error(err))
		return
	}
	log.Info("wager-service stopped")
}
