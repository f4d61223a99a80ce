package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// parseDate accepts a YYYY-MM-DD day key or an RFC 3339 timestamp and returns its UTC day.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if day, err := calendar.ParseDayKey(raw); err == nil {
		return day, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be formatted as YYYY-MM-DD")
	}
	return calendar.StartOfDay(ts), nil
}

// queryDate reads a date query parameter, falling back to today when absent.
func (a *API) queryDate(c *gin.Context, key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return calendar.StartOfDay(a.now()), true
	}
	day, err := parseDate(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return day, true
}

// handleServiceError maps service errors onto HTTP statuses.
func (a *API) handleServiceError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrInactiveDay):
		respondError(c, http.StatusBadRequest, "habit is not active on this day")
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "habit not found")
	case errors.Is(err, service.ErrNoteNotFound):
		respondError(c, http.StatusNotFound, "note not found")
	default:
		a.logger.Error(fallback, "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, fallback)
	}
}
