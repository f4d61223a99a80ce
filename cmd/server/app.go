package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/config"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/eventbus"
	"github.com/siyavash-momeni/tracker/internal/handler"
	"github.com/siyavash-momeni/tracker/internal/logger"
	"github.com/siyavash-momeni/tracker/internal/service"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

// app 持有命令共享的依赖
type app struct {
	cfg    config.AppConfig
	logger *log.Logger
	db     *gorm.DB
	events eventbus.Publisher
	cache  service.RangeCache
	api    *handler.API
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	l, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	gdb, err := db.Open(db.Options{
		URL:    cfg.DatabaseURL,
		Path:   cfg.DatabasePath,
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	events := eventbus.Connect(cfg.RabbitMQURL, l)
	cache := service.ConnectRangeCache(ctx, cfg.RedisURL, l)

	// 未配置 API key 时保持 sender 为 nil，派发返回 ErrDigestNotConfigured
	var sender service.EmailSender
	if client := service.NewResendClient(cfg.ResendAPIKey, cfg.ResendBaseURL); client != nil {
		sender = service.NewBreakerSender(client, breakerFailureThreshold, breakerOpenTimeout, l)
	} else {
		l.Warn("RESEND_API_KEY is not set, weekly digest is disabled")
	}

	api := handler.NewAPI(gdb, handler.Options{
		CronSecret:           cfg.CronSecret,
		WebhookSecret:        cfg.IdentityWebhookSecret,
		Cache:                cache,
		Events:               events,
		Sender:               sender,
		EmailFrom:            cfg.EmailFrom,
		SiteURL:              cfg.SiteBaseURL,
		DigestUserDelay:      cfg.DigestUserDelay,
		DigestRetryBaseDelay: cfg.DigestRetryBaseDelay,
		Logger:               l,
	})

	return &app{cfg: cfg, logger: l, db: gdb, events: events, cache: cache, api: api}, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("failed to close event publisher", "error", err)
	}
	if closer, ok := a.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("failed to close range cache", "error", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
