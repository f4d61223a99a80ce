package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/siyavash-momeni/tracker/internal/logger"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultResendBaseURL   = "https://api.resend.com"
	defaultSendMaxAttempts = 4
	defaultSendBaseDelay   = 600 * time.Millisecond
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// EmailMessage 是一封待发送的邮件
type EmailMessage struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender 发送邮件并返回服务商的消息 ID
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// SendError 是邮件服务返回的结构化错误
type SendError struct {
	StatusCode int
	Message    string
}

func (e *SendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("email provider returned %d: %s", e.StatusCode, e.Message)
	}
	return "email provider error: " + e.Message
}

// RateLimited 判断该错误是否为限流
func (e *SendError) RateLimited() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return isRateLimitMessage(e.Message)
}

func isRateLimitMessage(message string) bool {
	normalized := strings.ToLower(message)
	return strings.Contains(normalized, "too many requests") ||
		strings.Contains(normalized, "429") ||
		strings.Contains(normalized, "rate limit")
}

// IsRetryable 只有限流错误值得重试，其余失败立即放弃
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.RateLimited()
	}
	return isRateLimitMessage(err.Error())
}

// ResendClient 通过 Resend HTTP API 发送邮件
type ResendClient struct {
	apiKey  string
	baseURL string
	http    httpDoer
}

// NewResendClient 构造客户端；apiKey 为空时返回 nil
func NewResendClient(apiKey, baseURL string) *ResendClient {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultResendBaseURL
	}
	return &ResendClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHTTPClient 替换底层 HTTP 客户端，主要用于测试
func (c *ResendClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
		return
	}
	c.http = client
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type resendEmailResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send 调用 POST /emails
func (c *ResendClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	body, err := json.Marshal(resendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "habitlog/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &SendError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	var parsed resendEmailResponse
	_ = json.Unmarshal(respBody, &parsed)

	if resp.StatusCode >= http.StatusBadRequest {
		message := strings.TrimSpace(parsed.Message)
		if message == "" {
			message = strings.TrimSpace(string(respBody))
		}
		if message == "" {
			message = resp.Status
		}
		return "", &SendError{StatusCode: resp.StatusCode, Message: message}
	}

	return parsed.ID, nil
}

// RetryPolicy 描述限流重试：最多 MaxAttempts 次，第 n 次失败后等待 n × BaseDelay
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy 返回 4 次尝试、600ms 线性退避的策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultSendMaxAttempts, BaseDelay: defaultSendBaseDelay}
}

// Delay 返回第 attempt 次失败后的等待时间
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SendWithRetry 发送邮件，仅在 IsRetryable 为真时重试
func SendWithRetry(ctx context.Context, sender EmailSender, msg EmailMessage, policy RetryPolicy) (string, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := sender.Send(ctx, msg)
		if err == nil {
			return id, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			break
		}
		if err := policy.sleep(ctx, policy.Delay(attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// BreakerSender 用熔断器包装 EmailSender，服务商持续故障时快速失败
// 限流不计入失败次数
type BreakerSender struct {
	next    EmailSender
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerSender 连续失败 threshold 次后熔断，openTimeout 后进入半开状态
func NewBreakerSender(next EmailSender, threshold uint32, openTimeout time.Duration, l *log.Logger) *BreakerSender {
	l = logger.OrDiscard(l)
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "email",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerSender{next: next, breaker: gobreaker.NewCircuitBreaker[string](settings)}
}

// Send 经过熔断器转发
func (s *BreakerSender) Send(ctx context.Context, msg EmailMessage) (string, error) {
	id, err := s.breaker.Execute(func() (string, error) {
		return s.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", &SendError{Message: err.Error()}
	}
	return id, err
}
