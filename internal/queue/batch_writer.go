package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
)

// MessageSource is the consuming side of a topic
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// LogStore persists daily logs
type LogStore interface {
	UpsertDailyLog(ctx context.Context, l *cultivation.DailyLog) error
}

// BatchWriter consumes daily-log messages and batch-writes them to the database
type BatchWriter struct {
	consumer      MessageSource
	store         LogStore
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer MessageSource, store LogStore, batchSize int, flushInterval time.Duration, logger *zap.Logger) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchWriter{
		consumer:      consumer,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the database
func (bw *BatchWriter) Start(ctx context.Context) error {
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop flushes the pending batch and stops the writer
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		defer close(msgChan)
		for {
			msg, err := bw.consumer.Consume(consumeCtx)
			if err != nil {
				if consumeCtx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				bw.logger.Error("consumer error", zap.Error(err))
				continue
			}
			select {
			case msgChan <- msg:
			case <-consumeCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			bw.flush(ctx, batch)
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.logger.Debug("flush interval reached", zap.Int("messages", len(batch)))
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg, ok := <-msgChan:
			if !ok {
				bw.flush(ctx, batch)
				return
			}
			bw.logger.Debug("consumed message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
			batch = append(batch, msg)

			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	successCount := 0
	for _, msg := range batch {
		if err := bw.processMessage(ctx, msg); err != nil {
			bw.logger.Error("failed to process message",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		successCount++

		if err := bw.consumer.Commit(ctx, msg); err != nil {
			bw.logger.Error("failed to commit offset", zap.Error(err))
		}
	}

	bw.logger.Info("flushed batch",
		zap.Int("written", successCount),
		zap.Int("batch", len(batch)))
}

func (bw *BatchWriter) processMessage(ctx context.Context, msg kafka.Message) error {
	logMsg, err := protocol.DecodeDailyLogMessage(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	dailyLog, err := logMsg.Data.Parse(logMsg.TentID)
	if err != nil {
		return fmt.Errorf("failed to parse reading: %w", err)
	}

	if err := bw.store.UpsertDailyLog(ctx, &dailyLog); err != nil {
		return fmt.Errorf("failed to upsert daily log: %w", err)
	}
	return nil
}
