package kafka

// Topics сервиса.
const (
	TopicOrderEvents     = "checkout.order.events"
	TopicDeadLetterQueue = "checkout.dlq"
)

// Headers, сопровождающие каждую опубликованную запись.
const (
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
	HeaderEventType     = "x-event-type"
	HeaderPublishedAt   = "x-published-at"
)
