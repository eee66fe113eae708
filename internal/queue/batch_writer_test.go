package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
)

type chanSource struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newChanSource() *chanSource {
	return &chanSource{msgs: make(chan kafka.Message, 10)}
}

func (s *chanSource) Consume(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-s.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *chanSource) Commit(ctx context.Context, msg kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msg.Offset)
	return nil
}

func (s *chanSource) Committed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type memLogStore struct {
	mu   sync.Mutex
	logs []cultivation.DailyLog
}

func (m *memLogStore) UpsertDailyLog(ctx context.Context, l *cultivation.DailyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memLogStore) Logs() []cultivation.DailyLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cultivation.DailyLog(nil), m.logs...)
}

func readingMessage(t *testing.T, offset int64, tentID int64, turn string) kafka.Message {
	temp := 24.0
	value, err := protocol.EncodeDailyLogMessage(&protocol.DailyLogMessage{
		TentID:     tentID,
		ReceivedAt: time.Now(),
		Data: protocol.ReadingData{
			LogDate: "2026-03-10",
			Turn:    turn,
			Temp:    &temp,
		},
	})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestBatchWriter_FlushesFullBatch(t *testing.T) {
	source := newChanSource()
	store := &memLogStore{}
	bw := NewBatchWriter(source, store, 2, time.Hour, zap.NewNop())

	require.NoError(t, bw.Start(context.Background()))

	source.msgs <- readingMessage(t, 1, 1, "AM")
	source.msgs <- readingMessage(t, 2, 1, "PM")

	assert.Eventually(t, func() bool { return len(store.Logs()) == 2 }, time.Second, 10*time.Millisecond)
	bw.Stop()

	logs := store.Logs()
	assert.Equal(t, cultivation.TurnAM, logs[0].Turn)
	assert.Equal(t, cultivation.TurnPM, logs[1].Turn)
	assert.Equal(t, []int64{1, 2}, source.Committed())
}

func TestBatchWriter_FlushesOnStop(t *testing.T) {
	source := newChanSource()
	store := &memLogStore{}
	bw := NewBatchWriter(source, store, 100, time.Hour, zap.NewNop())

	require.NoError(t, bw.Start(context.Background()))
	source.msgs <- readingMessage(t, 5, 2, "AM")

	// Give the consumer goroutine time to hand the message over.
	time.Sleep(50 * time.Millisecond)
	bw.Stop()

	require.Len(t, store.Logs(), 1)
	assert.Equal(t, int64(2), store.Logs()[0].TentID)
}

func TestBatchWriter_SkipsUndecodableMessages(t *testing.T) {
	source := newChanSource()
	store := &memLogStore{}
	bw := NewBatchWriter(source, store, 2, time.Hour, zap.NewNop())

	require.NoError(t, bw.Start(context.Background()))

	source.msgs <- kafka.Message{Offset: 1, Value: []byte("not json")}
	source.msgs <- readingMessage(t, 2, 1, "AM")

	assert.Eventually(t, func() bool { return len(source.Committed()) == 1 }, time.Second, 10*time.Millisecond)
	bw.Stop()

	assert.Len(t, store.Logs(), 1)
	assert.Equal(t, []int64{2}, source.Committed())
}
