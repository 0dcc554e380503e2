package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	// NodeID seeds the snowflake generator; unique per running instance.
	NodeID int64

	OTLPEndpoint string
	MetricsAddr  string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis  RedisConfig
	AMQP   AMQPConfig
	Email  EmailConfig
	Lock   LockConfig
	Worker WorkerConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Enabled reports whether notifications go through RabbitMQ instead of in-process.
func (c AMQPConfig) Enabled() bool { return c.URL != "" }

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type LockConfig struct {
	Wait time.Duration
	TTL  time.Duration
}

type WorkerConfig struct {
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	BatchSize         int
	MaxAttempts       int
	JobTimeout        time.Duration
	EnabledJobs       []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "schoolride"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		NodeID:            int64(getenvInt("NODE_ID", 1)),
		OTLPEndpoint:      strings.TrimSpace(getenv("OTLP_ENDPOINT", "")),
		MetricsAddr:       strings.TrimSpace(getenv("METRICS_ADDR", ":9090")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "schoolride"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL:      strings.TrimSpace(getenv("AMQP_URL", "")),
			Exchange: getenv("AMQP_EXCHANGE", "schoolride.notifications"),
			Queue:    getenv("AMQP_QUEUE", "schoolride.receipts"),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "billing@schoolride.local"),
		},
		Lock: LockConfig{
			Wait: getenvDuration("LOCK_WAIT", 5*time.Second),
			TTL:  getenvDuration("LOCK_TTL", 15*time.Second),
		},
		Worker: WorkerConfig{
			SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
			SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize:         getenvInt("SCHEDULER_BATCH_SIZE", 50),
			MaxAttempts:       getenvInt("NOTIFICATION_MAX_ATTEMPTS", 5),
			JobTimeout:        getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
			EnabledJobs:       getenvList("SCHEDULER_JOBS"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewBillingConfigHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// getenvList splits a comma separated value, dropping blanks.
func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
