// Package eventbus 发布进度与摘要派发的领域事件。
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/siyavash-momeni/tracker/internal/logger"
)

// 路由键
const (
	RoutingProgressRecorded = "progress.recorded"
	RoutingDigestSent       = "digest.sent"
	RoutingDigestFailed     = "digest.failed"
)

// Publisher 将消息发送到指定路由键
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// ProgressRecorded 在一次进度写入成功后发布
type ProgressRecorded struct {
	OwnerID         string    `json:"ownerId"`
	HabitID         string    `json:"habitId"`
	Date            string    `json:"date"`
	Value           int       `json:"value"`
	CurrentProgress int       `json:"currentProgress"`
	Target          int       `json:"target"`
	IsCompleted     bool      `json:"isCompleted"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// DigestDispatched 在摘要派发进入终态时发布
type DigestDispatched struct {
	UserID        string    `json:"userId"`
	WeekStartDate string    `json:"weekStartDate"`
	Status        string    `json:"status"`
	MessageID     string    `json:"messageId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// PublishJSON 序列化并发布事件；失败只记录日志，不影响调用方
func PublishJSON(ctx context.Context, p Publisher, l *log.Logger, routingKey string, event any) {
	if p == nil {
		return
	}
	l = logger.OrDiscard(l)

	payload, err := json.Marshal(event)
	if err != nil {
		l.Warn("failed to encode event", "routing_key", routingKey, "error", err)
		return
	}

	if err := p.Publish(ctx, routingKey, payload); err != nil {
		l.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

// NoopPublisher 不投递任何消息，未配置 RabbitMQ 时使用
type NoopPublisher struct {
	logger *log.Logger
}

// NewNoopPublisher 创建空发布器
func NewNoopPublisher(l *log.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger.OrDiscard(l)}
}

// Publish 仅记录调试日志
func (p *NoopPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish", "routing_key", routingKey, "size", len(payload))
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}
