package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabaseURL   string
	DatabasePath  string
	SessionSecret string
	GinMode       string
	LogLevel      string
	LogFile       string
	RedisURL      string
	RabbitMQURL   string
	SiteBaseURL   string

	ResendAPIKey  string
	ResendBaseURL string
	EmailFrom     string

	CronSecret            string
	IdentityWebhookSecret string
	DigestUserDelay       time.Duration
	DigestRetryBaseDelay  time.Duration
}

// Load 从环境变量（以及可选的 .env 文件）读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	// .env 不存在时忽略
	_ = godotenv.Load()

	port := envOrDefault("PORT", "8080")

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabasePath:  envOrDefault("DATABASE_PATH", "habitlog.db"),
		SessionSecret: envOrDefault("SESSION_SECRET", "habitlog-dev-secret"),
		GinMode:       envOrDefault("GIN_MODE", "release"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		LogFile:       strings.TrimSpace(os.Getenv("LOG_FILE")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		RabbitMQURL:   strings.TrimSpace(os.Getenv("RABBITMQ_URL")),
		SiteBaseURL:   envOrDefault("SITE_BASE_URL", "https://trackersiya.com"),

		ResendAPIKey:  strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		ResendBaseURL: envOrDefault("RESEND_BASE_URL", "https://api.resend.com"),
		EmailFrom:     strings.TrimSpace(os.Getenv("EMAIL_FROM")),

		CronSecret:            strings.TrimSpace(os.Getenv("CRON_WEEKLY_EMAIL_SECRET")),
		IdentityWebhookSecret: strings.TrimSpace(os.Getenv("IDENTITY_WEBHOOK_SECRET")),
		DigestUserDelay:       durationOrDefault("DIGEST_USER_DELAY", 600*time.Millisecond),
		DigestRetryBaseDelay:  durationOrDefault("DIGEST_RETRY_BASE_DELAY", 600*time.Millisecond),
	}
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
