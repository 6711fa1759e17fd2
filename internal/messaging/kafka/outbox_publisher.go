package kafka

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// OutboxTopicPublisher доставляет outbox-сообщения в Kafka topic. Значением
// записи служит payload события без обёрток, метаданные уходят в headers,
// ключом партиционирования — идентификатор агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.Publish(Record{
		Topic: p.topic,
		Key:   key,
		Value: event.Payload,
		Headers: map[string]string{
			HeaderOutboxID:      event.ID,
			HeaderAggregateType: event.AggregateType,
			HeaderEventType:     event.EventType,
			HeaderPublishedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}
