package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ctopics "github.com/radieske/vrf-wager-engine/pkg/contracts/topics"
)

// Config centraliza variáveis de ambiente e parâmetros de execução dos serviços
// Inclui conexões, tópicos, endereços on-chain, URLs dos colaboradores e portas
type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string // ex: "wager-service", "supplier-simulator"

	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string // "a:9092,b:9092"

	// Tópicos
	TopicRandomnessRequests string
	TopicWagerOutcomes      string
	TopicWagerOutcomesDLQ   string
	TopicWagerPlaced        string
	TopicWagerSettled       string
	TopicSettlementFailures string

	// Endereços (hex) usados pelo engine
	OwnerAddress  string // administrador global
	EngineAddress string // conta de custódia do engine no vault
	BankAddress   string // conta do bank no vault

	// Colaboradores externos
	BankURL      string
	ReferralURL  string
	PriceFeedURL string
	EthRPCURL    string // vazio => gas price fixo e contador de blocos local

	// Oráculo
	CallbackGasLimit      uint32
	FlatFeePPM            uint32
	GasPriceWei           string // usado quando não há EthRPCURL
	DefaultSubscriptionID uint64
	PriceMaxAge           time.Duration

	// Bootstrap de ativos (TOML)
	AssetsFile string

	// Origens liberadas para CORS na API pública
	CORSOrigins []string

	// Portas do serviço atual
	HTTPPort    string // Porta pública (ex.: API REST)
	MetricsPort string // Porta exclusiva para /metrics e /healthz
}

// Load carrega .env (se existir) e variáveis de ambiente, definindo defaults
// Resolve portas conforme o SERVICE_NAME
func Load() Config {
	_ = godotenv.Load()

	svc := getEnv("SERVICE_NAME", "")
	env := getEnv("ENV", "local")

	cfg := Config{
		Env:         env,
		ServiceName: svc,

		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),

		TopicRandomnessRequests: getEnv("KAFKA_TOPIC_RANDOMNESS_REQUESTS", ctopics.RandomnessRequests),
		TopicWagerOutcomes:      getEnv("KAFKA_TOPIC_WAGER_OUTCOMES", ctopics.WagerOutcomes),
		TopicWagerOutcomesDLQ:   getEnv("KAFKA_TOPIC_WAGER_OUTCOMES_DLQ", ctopics.WagerOutcomesDLQ),
		TopicWagerPlaced:        getEnv("KAFKA_TOPIC_WAGER_PLACED", ctopics.WagerPlaced),
		TopicWagerSettled:       getEnv("KAFKA_TOPIC_WAGER_SETTLED", ctopics.WagerSettled),
		TopicSettlementFailures: getEnv("KAFKA_TOPIC_SETTLEMENT_FAILURES", ctopics.SettlementFailures),

		OwnerAddress:  getEnv("OWNER_ADDRESS", "0x00000000000000000000000000000000000000a1"),
		EngineAddress: getEnv("ENGINE_ADDRESS", "0x00000000000000000000000000000000000000e1"),
		BankAddress:   getEnv("BANK_ADDRESS", "0x00000000000000000000000000000000000000b1"),

		BankURL:      getEnv("BANK_URL", "http://localhost:8081"),
		ReferralURL:  getEnv("REFERRAL_URL", "http://localhost:8081"),
		PriceFeedURL: getEnv("PRICE_FEED_URL", "ws://localhost:8081/ws"),
		EthRPCURL:    getEnv("ETH_RPC_URL", ""),

		CallbackGasLimit:      uint32(getEnvUint("ORACLE_CALLBACK_GAS_LIMIT", 100000)),
		FlatFeePPM:            uint32(getEnvUint("ORACLE_FLAT_FEE_PPM", 250000)),
		GasPriceWei:           getEnv("ORACLE_GAS_PRICE_WEI", "3000000000"),
		DefaultSubscriptionID: getEnvUint("ORACLE_SUBSCRIPTION_ID", 1),
		PriceMaxAge:           getEnvDuration("PRICE_MAX_AGE", 5*time.Minute),

		AssetsFile: getEnv("ASSETS_FILE", ""),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	// Define portas padrão para cada serviço
	switch svc {
	case "wager-service":
		cfg.HTTPPort = getEnv("HTTP_PORT_WAGER", "8083")
		cfg.MetricsPort = getEnv("METRICS_PORT_WAGER", "9099")
	case "supplier-simulator":
		cfg.HTTPPort = getEnv("HTTP_PORT_SUPPLIER", "8081")
		cfg.MetricsPort = getEnv("METRICS_PORT_SUPPLIER", "9094")
	default:
		cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
		cfg.MetricsPort = getEnv("METRICS_PORT", "9095")
	}

	return cfg
}

// ErrPostgresWithoutRedis: o ledger persiste mas o contador de request ids e o
// pool de taxas do oráculo ficariam só em memória e voltariam a zero no restart
var ErrPostgresWithoutRedis = errors.New("POSTGRES_DSN requires REDIS_ADDR")

// Validate rejeita combinações que o wager-service não suporta
func (c Config) Validate() error {
	if c.PostgresDSN != "" && c.RedisAddr == "" {
		return ErrPostgresWithoutRedis
	}
	return nil
}

// getEnv retorna o valor da variável de ambiente ou o default
func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvUint(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// splitList quebra uma lista separada por vírgulas descartando itens vazios
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
