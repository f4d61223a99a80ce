package handler

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader 由前置认证代理写入身份提供方的 subject
	UserIDHeader = "X-User-ID"

	sessionUserKey  = "user_id"
	ownerContextKey = "__owner_id"
)

// IdentityRequired 解析调用方身份：优先使用代理头，其次使用会话中缓存的值
// 新身份首次出现时确保本地存在用户记录
func (a *API) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		cached, _ := session.Get(sessionUserKey).(string)

		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			userID = cached
		}
		if userID == "" {
			respondError(c, http.StatusUnauthorized, "unauthenticated")
			c.Abort()
			return
		}

		if userID != cached {
			if _, err := a.users.EnsureUser(c.Request.Context(), userID); err != nil {
				a.logger.Error("failed to sync user", "user_id", userID, "error", err)
				respondError(c, http.StatusInternalServerError, "failed to load user")
				c.Abort()
				return
			}
			session.Set(sessionUserKey, userID)
			if err := session.Save(); err != nil {
				a.logger.Warn("failed to save session", "error", err)
			}
		}

		c.Set(ownerContextKey, userID)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerContextKey)
}
