package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultConfigKey is where the reminder config lives in Redis
const DefaultConfigKey = "reminder_config"

// ConfigStore persists the reminder config in Redis
type ConfigStore struct {
	redis  *redis.Client
	key    string
	logger *zap.Logger
}

// NewConfigStore creates a config store under key
func NewConfigStore(redisClient *redis.Client, key string, logger *zap.Logger) *ConfigStore {
	if key == "" {
		key = DefaultConfigKey
	}
	return &ConfigStore{redis: redisClient, key: key, logger: logger}
}

// Load returns the stored config, or the defaults if nothing is stored. A
// legacy document is migrated and written back in the current shape.
func (s *ConfigStore) Load(ctx context.Context) (Config, error) {
	raw, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to get reminder config from Redis: %w", err)
	}

	cfg, migrated, err := MigrateReminderConfig(raw)
	if err != nil {
		return Config{}, err
	}

	if migrated {
		s.logger.Info("migrated legacy reminder config",
			zap.String("key", s.key),
			zap.Strings("times", cfg.ReminderTimes))
		if err := s.Save(ctx, cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Save normalizes and stores the config
func (s *ConfigStore) Save(ctx context.Context, cfg Config) error {
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set reminder config in Redis: %w", err)
	}
	return nil
}
