package repository

import (
	"context"
	"fmt"

	"AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
	pkgkafka "AgriPull/pkg/kafka"
)

// KafkaPublisher publishes price observations to a Kafka topic, keyed by
// market so per-market ordering is preserved under hash partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, o *models.PriceObservation) error {
	if o == nil {
		return fmt.Errorf("observation is nil")
	}
	return p.producer.Publish(ctx, p.topic, []byte(o.Market), o)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, obs []*models.PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(obs))
	for _, o := range obs {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(o.Market), Value: o})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)
