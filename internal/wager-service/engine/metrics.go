package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wagersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_engine_wagers_placed_total",
		Help: "apostas aceitas por ativo",
	}, []string{"asset"})

	wagersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_engine_wagers_rejected_total",
		Help: "apostas rejeitadas por motivo",
	}, []string{"reason"})

	betsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_engine_bets_settled_total",
		Help: "apostas liquidadas por resultado (WIN, LOSS, REFUND)",
	}, []string{"result"})

	settlementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_engine_settlement_failures_total",
		Help: "pernas de liquidação que falharam, por tipo",
	}, []string{"kind"})

	referralFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_engine_referral_failures_total",
		Help: "chamadas ao serviço de indicação que falharam (não fatais)",
	})
)
