package common

const (
	RedisStreamSignalGeneration = "signals.generate"

	RedisStreamGroup    = "signal-worker-group"
	RedisStreamConsumer = "signal-worker-consumer"
)
