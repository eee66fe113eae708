package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "cultivo.daily_logs", cfg.Kafka.TopicDailyLogs)
	assert.Equal(t, "reminder_config", cfg.Reminder.ConfigKey)
	assert.Equal(t, "10:00", cfg.Reminder.TaskCheckTime)
	assert.Equal(t, 7*24*time.Hour, cfg.Alerting.HistoryTTL)
	assert.False(t, cfg.SMTP.Enabled())
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TCP_INACTIVITY_TIMEOUT", "90s")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_TO", "grower@example.com")
	t.Setenv("METRICS_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.Database.Port)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.TCPServer.InactivityTimeout)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("TCP_READ_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.TCPServer.ReadTimeout)
}

func TestLoad_RejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("WRITER_BATCH_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "cultivo", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cultivo sslmode=disable", d.ConnectionString())
}
