package router

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/handler"
)

const (
	sessionName          = "habitlog_session"
	defaultSessionSecret = "habitlog-dev-secret"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	secret := strings.TrimSpace(sessionSecret)
	if secret == "" {
		secret = defaultSessionSecret
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: 7 * 24 * 60 * 60})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/healthz", api.HealthCheck)

	apiGroup := r.Group("/api")
	{
		// 调度器与身份提供方回调，各自校验共享密钥
		apiGroup.GET("/cron/weekly-email", api.TriggerWeeklyEmail)
		apiGroup.POST("/cron/weekly-email", api.TriggerWeeklyEmail)
		apiGroup.POST("/webhooks/identity", api.IdentityWebhook)

		auth := apiGroup.Group("")
		auth.Use(api.IdentityRequired())
		{
			auth.GET("/habits", api.ListHabits)
			auth.POST("/habits", api.CreateHabit)
			auth.GET("/habits/by-date", api.HabitsByDate)
			auth.GET("/habits/completions-range", api.CompletionsRange)
			auth.POST("/habits/completion", api.RecordCompletion)
			auth.GET("/habits/:id/progress", api.GetHabitProgress)
			auth.DELETE("/habits/:id", api.DeleteHabit)

			auth.GET("/stats", api.GetStats)
			auth.GET("/stats/monthly", api.GetMonthlyStats)

			auth.GET("/notes", api.ListNotes)
			auth.POST("/notes", api.CreateNote)
			auth.GET("/notes/:id", api.GetNote)
			auth.PUT("/notes/:id", api.UpdateNote)
			auth.DELETE("/notes/:id", api.DeleteNote)

			auth.GET("/me", api.GetMe)
			auth.PUT("/me/preferences", api.UpdatePreferences)
		}
	}

	return r
}
