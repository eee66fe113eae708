package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	TCPServer TCPServerConfig
	Writer    WriterConfig
	Alerting  AlertingConfig
	Reminder  ReminderConfig
	SMTP      SMTPConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
	AutoMigrate   bool
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers        []string
	TopicDailyLogs string
	TopicAlerts    string
	NumPartitions  int
}

type TCPServerConfig struct {
	Port              int
	MaxConnections    int
	IdentifyTimeout   time.Duration
	InactivityTimeout time.Duration
	ReadTimeout       time.Duration
}

type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

type AlertingConfig struct {
	TargetCacheTTL time.Duration
	HistoryTTL     time.Duration
}

type ReminderConfig struct {
	ConfigKey       string
	TaskCheckTime   string
	RefreshInterval time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Enabled reports whether enough is configured to send mail
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.To != ""
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "cultivo_user"),
			Password:      getEnv("DB_PASSWORD", "cultivo_pass"),
			DBName:        getEnv("DB_NAME", "cultivo_db"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
			AutoMigrate:   getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicDailyLogs: getEnv("KAFKA_TOPIC_DAILY_LOGS", "cultivo.daily_logs"),
			TopicAlerts:    getEnv("KAFKA_TOPIC_ALERTS", "cultivo.alerts"),
			NumPartitions:  getEnvAsInt("KAFKA_NUM_PARTITIONS", 4),
		},
		TCPServer: TCPServerConfig{
			Port:              getEnvAsInt("TCP_PORT", 8080),
			MaxConnections:    getEnvAsInt("TCP_MAX_CONNECTIONS", 1000),
			IdentifyTimeout:   getEnvAsDuration("TCP_IDENTIFY_TIMEOUT", 10*time.Second),
			InactivityTimeout: getEnvAsDuration("TCP_INACTIVITY_TIMEOUT", 10*time.Minute),
			ReadTimeout:       getEnvAsDuration("TCP_READ_TIMEOUT", 30*time.Second),
		},
		Writer: WriterConfig{
			BatchSize:     getEnvAsInt("WRITER_BATCH_SIZE", 50),
			FlushInterval: getEnvAsDuration("WRITER_FLUSH_INTERVAL", 5*time.Second),
		},
		Alerting: AlertingConfig{
			TargetCacheTTL: getEnvAsDuration("ALERTING_TARGET_CACHE_TTL", 5*time.Minute),
			HistoryTTL:     getEnvAsDuration("ALERTING_HISTORY_TTL", 7*24*time.Hour),
		},
		Reminder: ReminderConfig{
			ConfigKey:       getEnv("REMINDER_CONFIG_KEY", "reminder_config"),
			TaskCheckTime:   getEnv("REMINDER_TASK_CHECK_TIME", "10:00"),
			RefreshInterval: getEnvAsDuration("REMINDER_REFRESH_INTERVAL", time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "cultivo@example.com"),
			To:       getEnv("SMTP_TO", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Writer.BatchSize <= 0 {
		return fmt.Errorf("WRITER_BATCH_SIZE must be positive, got %d", c.Writer.BatchSize)
	}
	if c.TCPServer.MaxConnections <= 0 {
		return fmt.Errorf("TCP_MAX_CONNECTIONS must be positive, got %d", c.TCPServer.MaxConnections)
	}
	if c.Reminder.RefreshInterval <= 0 {
		return fmt.Errorf("REMINDER_REFRESH_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
