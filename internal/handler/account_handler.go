package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/service"
)

const (
	// WebhookSignatureHeader 携带请求体的 HMAC-SHA256 十六进制签名
	WebhookSignatureHeader = "X-Webhook-Signature"

	maxWebhookBody = 1 << 20
)

type preferencesPayload struct {
	WeeklyEmailEnabled *bool `json:"weeklyEmailEnabled"`
}

type identityWebhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID                  string `json:"id"`
		PrimaryEmailAddress string `json:"primary_email_address"`
		EmailAddresses      []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

func (p identityWebhookPayload) email() string {
	for _, addr := range p.Data.EmailAddresses {
		if email := strings.TrimSpace(addr.EmailAddress); email != "" {
			return email
		}
	}
	return strings.TrimSpace(p.Data.PrimaryEmailAddress)
}

// GetMe 返回当前用户及其偏好
func (a *API) GetMe(c *gin.Context) {
	user, err := a.users.EnsureUser(c.Request.Context(), ownerID(c))
	if err != nil {
		a.handleServiceError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                 user.ID,
		"email":              user.Email,
		"weeklyEmailEnabled": user.WeeklyEmailEnabled,
	})
}

// UpdatePreferences 修改周报订阅
func (a *API) UpdatePreferences(c *gin.Context) {
	var payload preferencesPayload
	if !bindJSON(c, &payload, "invalid preferences payload") {
		return
	}
	if payload.WeeklyEmailEnabled == nil {
		respondError(c, http.StatusBadRequest, "weeklyEmailEnabled is required")
		return
	}

	user, err := a.users.SetWeeklyEmail(c.Request.Context(), ownerID(c), *payload.WeeklyEmailEnabled)
	if err != nil {
		a.handleServiceError(c, err, "failed to update preferences")
		return
	}
	c.JSON(http.StatusOK, gin.H{"weeklyEmailEnabled": user.WeeklyEmailEnabled})
}

// IdentityWebhook 同步身份提供方推送的用户创建、更新与删除事件
func (a *API) IdentityWebhook(c *gin.Context) {
	if a.webhookSecret == "" {
		respondError(c, http.StatusServiceUnavailable, "webhook is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read body")
		return
	}

	if !validWebhookSignature(a.webhookSecret, body, c.GetHeader(WebhookSignatureHeader)) {
		respondError(c, http.StatusUnauthorized, "invalid signature")
		return
	}

	var payload identityWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(c, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	event := service.UserEvent{Type: payload.Type, ID: payload.Data.ID, Email: payload.email()}
	if err := a.users.SyncUser(c.Request.Context(), event); err != nil {
		a.handleServiceError(c, err, "failed to sync user")
		return
	}

	a.logger.Info("identity webhook processed", "type", event.Type, "user_id", event.ID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SignWebhookBody 计算请求体签名
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validWebhookSignature(secret string, body []byte, header string) bool {
	provided := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if provided == "" {
		return false
	}
	decoded, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(SignWebhookBody(secret, body))
	return hmac.Equal(decoded, expected)
}
