package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Record — одна запись для публикации в Kafka. Key задаёт партиционирование,
// Headers несут метаданные события рядом с полезной нагрузкой.
type Record struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer публикует записи через sarama.SyncProducer.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer создаёт идемпотентный producer: acks=all, snappy,
// один in-flight запрос на соединение.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// Publish синхронно отправляет запись и возвращает ошибку брокера как есть.
func (p *Producer) Publish(record Record) error {
	msg := &sarama.ProducerMessage{
		Topic:     record.Topic,
		Key:       sarama.StringEncoder(record.Key),
		Value:     sarama.ByteEncoder(record.Value),
		Timestamp: time.Now(),
	}
	for name, value := range record.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{
			Key:   []byte(name),
			Value: []byte(value),
		})
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": record.Topic,
			"key":   record.Key,
		}).Error("отправка записи в kafka не удалась")
		return fmt.Errorf("send record: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     record.Topic,
		"key":       record.Key,
		"partition": partition,
		"offset":    offset,
	}).Debug("запись отправлена в kafka")

	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
