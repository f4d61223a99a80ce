package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/service"
)

// CronSecretHeader 是调度器传递共享密钥的请求头
const CronSecretHeader = "X-Cron-Secret"

func cronSecretFromRequest(c *gin.Context) string {
	if secret := strings.TrimSpace(c.GetHeader(CronSecretHeader)); secret != "" {
		return secret
	}
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func (a *API) cronAuthorized(c *gin.Context) bool {
	if a.cronSecret == "" {
		return false
	}
	provided := cronSecretFromRequest(c)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(a.cronSecret)) == 1
}

// TriggerWeeklyEmail 执行一次周报批量派发；testTo 参数只向指定地址发送示例周报
func (a *API) TriggerWeeklyEmail(c *gin.Context) {
	if !a.cronAuthorized(c) {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := c.Request.Context()

	if testTo := strings.TrimSpace(c.Query("testTo")); testTo != "" {
		result, err := a.digest.SendTest(ctx, testTo)
		if err != nil {
			a.respondDigestError(c, err, "test email send failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "mode": "test", "sentTo": result.SentTo, "messageId": result.MessageID})
		return
	}

	result, err := a.digest.RunWeekly(ctx)
	if err != nil {
		a.respondDigestError(c, err, "cron execution failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"weekStartDate":    result.WeekStartDate,
		"processedUsers":   result.ProcessedUsers,
		"sent":             result.Sent,
		"skippedDuplicate": result.SkippedDuplicate,
		"failed":           result.Failed,
	})
}

func (a *API) respondDigestError(c *gin.Context, err error, message string) {
	if errors.Is(err, service.ErrDigestNotConfigured) {
		a.logger.Error("weekly digest email is not configured")
		respondError(c, http.StatusInternalServerError, "invalid email configuration")
		return
	}
	a.handleServiceError(c, err, message)
}
