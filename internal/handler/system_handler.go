package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/db"
)

// HealthCheck 检查数据库连通性以及习惯、打卡与派发日志等核心表是否已迁移
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "database handle unavailable")
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		a.logger.Warn("health check ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": "down"})
		return
	}

	missing, err := db.MissingTables(a.db.WithContext(c.Request.Context()))
	if err != nil {
		a.logger.Warn("health check schema inspection failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": "up", "schema": "unknown"})
		return
	}
	if len(missing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":        "error",
			"database":      "up",
			"schema":        "pending",
			"missingTables": missing,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
		"schema":   "migrated",
	})
}
