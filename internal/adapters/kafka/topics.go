package kafka

// Topic definitions for Kafka event streaming
const (
	// Signal lifecycle events
	TopicSignalRegistered = "signals.registered"
	TopicSignalClaimed    = "signals.claimed"

	// Trading events
	TopicTradeExecuted = "trades.executed"
	TopicTradeFailed   = "trades.failed"
	TopicCycleOpened   = "cycles.opened"
	TopicCycleClosed   = "cycles.closed"
)
