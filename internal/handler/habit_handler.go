package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/service"
)

const (
	defaultHabitEmoji = "🎯"
	maxRangeDays      = 366
)

var defaultActiveDays = []int{1, 2, 3, 4, 5, 6, 7}

type habitPayload struct {
	Title       string `json:"title"`
	Emoji       string `json:"emoji"`
	TargetValue *int   `json:"targetValue"`
	Frequency   string `json:"frequency"`
	ActiveDays  []int  `json:"activeDays"`
}

func (p habitPayload) input() service.HabitInput {
	input := service.HabitInput{
		Title:       p.Title,
		Emoji:       strings.TrimSpace(p.Emoji),
		TargetValue: 1,
		Frequency:   strings.TrimSpace(p.Frequency),
		ActiveDays:  p.ActiveDays,
	}
	if input.Emoji == "" {
		input.Emoji = defaultHabitEmoji
	}
	if p.TargetValue != nil {
		input.TargetValue = *p.TargetValue
	}
	if input.Frequency == "" {
		input.Frequency = db.FrequencyDaily
	}
	if p.ActiveDays == nil {
		input.ActiveDays = defaultActiveDays
	}
	return input
}

type completionRequest struct {
	HabitID   string      `json:"habitId"`
	Date      string      `json:"date"`
	Value     json.Number `json:"value"`
	Completed *bool       `json:"completed"`
}

func habitToPayload(habit db.Habit) gin.H {
	activeDays := []int(habit.ActiveDays)
	if activeDays == nil {
		activeDays = []int{}
	}
	return gin.H{
		"id":          habit.ID,
		"title":       habit.Title,
		"emoji":       habit.Emoji,
		"targetValue": habit.TargetValue,
		"frequency":   habit.Frequency,
		"activeDays":  activeDays,
		"createdAt":   habit.CreatedAt,
	}
}

func progressToPayload(p service.Progress) gin.H {
	return gin.H{
		"habitId":         p.HabitID,
		"date":            calendar.DayKey(p.Date),
		"valueForDate":    p.ValueForDate,
		"currentProgress": p.CurrentProgress,
		"target":          p.Target,
		"frequency":       p.Frequency,
		"isCompleted":     p.IsCompleted,
		"active":          p.Active,
	}
}

// ListHabits 返回当前用户的习惯，按创建时间倒序
func (a *API) ListHabits(c *gin.Context) {
	habits, err := a.habits.List(c.Request.Context(), ownerID(c))
	if err != nil {
		a.handleServiceError(c, err, "failed to list habits")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}
	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// CreateHabit 新建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var payload habitPayload
	if !bindJSON(c, &payload, "invalid habit payload") {
		return
	}

	habit, err := a.habits.Create(c.Request.Context(), ownerID(c), payload.input())
	if err != nil {
		a.handleServiceError(c, err, "failed to create habit")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 删除习惯及其打卡记录
func (a *API) DeleteHabit(c *gin.Context) {
	if err := a.habits.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		a.handleServiceError(c, err, "failed to delete habit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// HabitsByDate 返回当天活跃的习惯及其进度
func (a *API) HabitsByDate(c *gin.Context) {
	date, ok := a.queryDate(c, "date")
	if !ok {
		return
	}

	items, err := a.progress.ProgressForDate(c.Request.Context(), ownerID(c), date)
	if err != nil {
		a.handleServiceError(c, err, "failed to load habits for date")
		return
	}

	habits := make([]gin.H, 0, len(items))
	completed := make([]string, 0, len(items))
	for _, item := range items {
		payload := habitToPayload(item.Habit)
		payload["progress"] = progressToPayload(item.Progress)
		habits = append(habits, payload)
		if item.Progress.IsCompleted {
			completed = append(completed, item.Habit.ID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"date":              calendar.DayKey(date),
		"habits":            habits,
		"completedHabitIds": completed,
	})
}

// GetHabitProgress 读取单个习惯在某天的进度
func (a *API) GetHabitProgress(c *gin.Context) {
	date, ok := a.queryDate(c, "date")
	if !ok {
		return
	}

	progress, err := a.progress.GetProgress(c.Request.Context(), ownerID(c), c.Param("id"), date)
	if err != nil {
		a.handleServiceError(c, err, "failed to load progress")
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progressToPayload(progress)})
}

// RecordCompletion 写入某天的进度值；兼容旧版 {completed: bool} 请求
func (a *API) RecordCompletion(c *gin.Context) {
	var req completionRequest
	if !bindJSON(c, &req, "invalid completion payload") {
		return
	}

	habitID := strings.TrimSpace(req.HabitID)
	if habitID == "" || strings.TrimSpace(req.Date) == "" {
		respondError(c, http.StatusBadRequest, "habitId and date are required")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	owner := ownerID(c)

	var value int
	switch {
	case req.Value != "":
		value, err = service.ParseProgressValue(req.Value.String())
		if err != nil {
			a.handleServiceError(c, err, "failed to record progress")
			return
		}
	case req.Completed != nil:
		if *req.Completed {
			habit, err := a.habits.Get(ctx, owner, habitID)
			if err != nil {
				a.handleServiceError(c, err, "failed to record progress")
				return
			}
			value = habit.TargetValue
		}
	default:
		respondError(c, http.StatusBadRequest, "value is required")
		return
	}

	progress, err := a.progress.RecordProgress(ctx, owner, habitID, date, value)
	if err != nil {
		a.handleServiceError(c, err, "failed to record progress")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "progress": progressToPayload(progress)})
}

// CompletionsRange 返回 start..end 每天的打卡记录数，没有记录的日子为 0
func (a *API) CompletionsRange(c *gin.Context) {
	startRaw, endRaw := strings.TrimSpace(c.Query("start")), strings.TrimSpace(c.Query("end"))
	if startRaw == "" || endRaw == "" {
		respondError(c, http.StatusBadRequest, "start and end (YYYY-MM-DD) are required")
		return
	}

	start, err := parseDate(startRaw)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseDate(endRaw)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		respondError(c, http.StatusBadRequest, "range must not exceed one year")
		return
	}

	days, err := a.stats.RangeCounts(c.Request.Context(), ownerID(c), start, end)
	if err != nil {
		a.handleServiceError(c, err, "failed to load completions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "days": days})
}
