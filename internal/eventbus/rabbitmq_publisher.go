package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/siyavash-momeni/tracker/internal/logger"
)

// ExchangeName 是领域事件使用的 topic exchange
const ExchangeName = "habitlog.events"

// RabbitMQPublisher publishes events to RabbitMQ.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *log.Logger
	mu       sync.Mutex
}

// NewRabbitMQPublisher 连接 RabbitMQ 并声明 exchange
func NewRabbitMQPublisher(url string, l *log.Logger) (*RabbitMQPublisher, error) {
	l = logger.OrDiscard(l)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	l.Info("rabbitmq publisher connected", "exchange", ExchangeName)

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  ch,
		exchange: ExchangeName,
		logger:   l,
	}, nil
}

// Publish 以持久化消息发送 JSON 载荷
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Debug("message published", "routing_key", routingKey, "size", len(payload))
	return nil
}

// Close 关闭 channel 与连接
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing channel", "error", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Connect 在 url 为空或连接失败时回退到 NoopPublisher
func Connect(url string, l *log.Logger) Publisher {
	if url == "" {
		return NewNoopPublisher(l)
	}
	publisher, err := NewRabbitMQPublisher(url, l)
	if err != nil {
		logger.OrDiscard(l).Warn("rabbitmq not available, using noop publisher", "error", err)
		return NewNoopPublisher(l)
	}
	return publisher
}
