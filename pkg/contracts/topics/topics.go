package topics

const (
	// Oráculo
	RandomnessRequests = "randomness_requests"
	WagerOutcomes      = "wager_outcomes"

	// Apostas
	WagerPlaced        = "wager_placed"
	WagerSettled       = "wager_settled"
	SettlementFailures = "settlement_failures"

	// DLQs
	WagerOutcomesDLQ = "wager_outcomes_dlq"
)
