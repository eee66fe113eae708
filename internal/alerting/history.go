package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// HistoryState is the last known alert state of a tent metric
type HistoryState struct {
	Status    cultivation.AlertStatus `json:"status"`
	AlertID   string                  `json:"alert_id,omitempty"`
	FirstSeen time.Time               `json:"first_seen"`
	LastSeen  time.Time               `json:"last_seen"`
	Value     float64                 `json:"value"`
	// Pending is set while the raised notification has not reached the sink
	Pending bool `json:"pending,omitempty"`
}

// Open reports whether an alert is still outstanding for the metric
func (s *HistoryState) Open() bool {
	return s.Status == cultivation.AlertActive || s.Status == cultivation.AlertAcknowledged
}

// HistoryStore keeps alert states in Redis so the same deviation is not
// re-emitted for every log entry
type HistoryStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewHistoryStore creates a history store
func NewHistoryStore(redisClient *redis.Client, ttl time.Duration) *HistoryStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &HistoryStore{redis: redisClient, ttl: ttl}
}

func historyKey(tentID int64, metric cultivation.Metric) string {
	return fmt.Sprintf("alert_state:%d:%s", tentID, metric)
}

// Get returns the state of a tent metric. A metric with no state is RESOLVED.
func (h *HistoryStore) Get(ctx context.Context, tentID int64, metric cultivation.Metric) (*HistoryState, error) {
	data, err := h.redis.Get(ctx, historyKey(tentID, metric)).Result()
	if errors.Is(err, redis.Nil) {
		return &HistoryState{Status: cultivation.AlertResolved}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert state from Redis: %w", err)
	}

	var state HistoryState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert state: %w", err)
	}
	return &state, nil
}

// Set stores the state of a tent metric
func (h *HistoryStore) Set(ctx context.Context, tentID int64, metric cultivation.Metric, state *HistoryState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal alert state: %w", err)
	}
	if err := h.redis.Set(ctx, historyKey(tentID, metric), data, h.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set alert state in Redis: %w", err)
	}
	return nil
}

// Delete forgets the state of a tent metric
func (h *HistoryStore) Delete(ctx context.Context, tentID int64, metric cultivation.Metric) error {
	return h.redis.Del(ctx, historyKey(tentID, metric)).Err()
}

// Open returns every outstanding alert state keyed by its Redis key
func (h *HistoryStore) Open(ctx context.Context) (map[string]*HistoryState, error) {
	states := make(map[string]*HistoryState)

	iter := h.redis.Scan(ctx, 0, "alert_state:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := h.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var state HistoryState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			continue
		}
		if state.Open() {
			states[key] = &state
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return states, nil
}
