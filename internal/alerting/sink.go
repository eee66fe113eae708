package alerting

import (
	"context"
	"fmt"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
)

// Publisher is the part of the Kafka producer the sink needs
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// KafkaSink publishes alert notifications keyed by tent and metric so that
// every state change of one metric lands on the same partition
type KafkaSink struct {
	producer Publisher
}

// NewKafkaSink creates a sink over a producer
func NewKafkaSink(producer Publisher) *KafkaSink {
	return &KafkaSink{producer: producer}
}

// Emit encodes and publishes a notification
func (k *KafkaSink) Emit(ctx context.Context, notification *protocol.AlertNotification) error {
	data, err := protocol.EncodeAlertNotification(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	key := fmt.Sprintf("%d-%s", notification.TentID, notification.Metric)
	return k.producer.Publish(ctx, key, data)
}
