package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrRetry marks a handler failure that must leave the message uncommitted.
// The group redelivers it after the next rebalance or restart.
var ErrRetry = errors.New("message left for redelivery")

// TentKey is the message key for a tent's traffic. Keying by tent keeps the
// AM and PM logs of one tent ordered on a single partition.
func TentKey(tentID int64) string {
	return strconv.FormatInt(tentID, 10)
}

// Producer publishes keyed messages on one topic
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a synchronous producer for a topic
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			// Readings arrive one at a time; waiting for a full batch only
			// delays the ack sent back to the controller.
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes one message and waits for the broker ack
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads a topic as a member of a consumer group with manual commits
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer joins groupID on topic. A new group starts at the newest offset.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
	}
}

// Consume fetches the next message without committing it
func (c *Consumer) Consume(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

// Commit marks msg as processed for the group
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

// Close leaves the group
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// ConsumerStats is the part of the reader statistics the services log
type ConsumerStats struct {
	Topic    string
	Messages int64
	Bytes    int64
	Errors   int64
	Lag      int64
}

// Stats returns the counters accumulated since the previous call
func (c *Consumer) Stats() ConsumerStats {
	s := c.reader.Stats()
	return ConsumerStats{
		Topic:    s.Topic,
		Messages: s.Messages,
		Bytes:    s.Bytes,
		Errors:   s.Errors,
		Lag:      s.Lag,
	}
}

// HandlerFunc processes one consumed message
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Run feeds every message of src to handle until ctx is cancelled. A message
// is committed once handled, including when handle fails, unless the error
// wraps ErrRetry.
func Run(ctx context.Context, src MessageSource, handle HandlerFunc, logger *zap.Logger) {
	for {
		msg, err := src.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to consume message", zap.Error(err))
			continue
		}

		if err := handle(ctx, msg); err != nil {
			if errors.Is(err, ErrRetry) {
				logger.Warn("message not committed",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
			logger.Error("failed to handle message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}

		if err := src.Commit(ctx, msg); err != nil {
			logger.Error("failed to commit offset", zap.Error(err))
		}
	}
}

// EnsureTopics creates the topics that do not exist yet. Existing topics are
// left untouched.
func EnsureTopics(brokers []string, topics []kafka.TopicConfig, logger *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	for _, t := range topics {
		err := controllerConn.CreateTopics(t)
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			logger.Debug("topic exists", zap.String("topic", t.Topic))
		case err != nil:
			return fmt.Errorf("failed to create topic %s: %w", t.Topic, err)
		default:
			logger.Info("created topic",
				zap.String("topic", t.Topic),
				zap.Int("partitions", t.NumPartitions))
		}
	}
	return nil
}
