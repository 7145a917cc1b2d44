package rabbitmq

// Processing and cleanup ride separate queues so a backlog of long
// transcodes cannot starve the periodic sweep.
const (
	ExchangeName = "media_exchange"

	ProcessQueueName  = "media_process_queue"
	ProcessRoutingKey = "media.process"

	DeadLetterExchangeName = "media_exchange_dlx"
	ProcessDLQName         = "media_process_queue_dlq"
	ProcessDLQRoutingKey   = "dlq.media.process"

	CleanupQueueName  = "media_cleanup_queue"
	CleanupRoutingKey = "media.cleanup"
)
