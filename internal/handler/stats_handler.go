package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/service"
)

// GetStats 返回习惯总数与范围内的打卡记录数，range 取 7d、30d 或 all
func (a *API) GetStats(c *gin.Context) {
	r, err := service.ParseStatsRange(strings.TrimSpace(c.Query("range")))
	if err != nil {
		a.handleServiceError(c, err, "failed to load stats")
		return
	}

	totals, err := a.stats.Totals(c.Request.Context(), ownerID(c), r)
	if err != nil {
		a.handleServiceError(c, err, "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, totals)
}

// GetMonthlyStats 返回月度图表数据，month 形如 2024-01，默认当月
func (a *API) GetMonthlyStats(c *gin.Context) {
	month := a.now().UTC()
	if raw := strings.TrimSpace(c.Query("month")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01", raw, time.UTC)
		if err != nil {
			respondError(c, http.StatusBadRequest, "month must be formatted as YYYY-MM")
			return
		}
		month = parsed
	}

	stats, err := a.stats.Monthly(c.Request.Context(), ownerID(c), month)
	if err != nil {
		a.handleServiceError(c, err, "failed to load monthly stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
