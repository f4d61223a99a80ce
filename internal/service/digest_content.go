package service

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const defaultSiteBaseURL = "https://trackersiya.com"

var (
	digestMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
	)
	digestSanitizer = bluemonday.UGCPolicy()
	plainTextPolicy = bluemonday.StrictPolicy()
)

// WeeklyStats 是一封周报使用的统计数据
type WeeklyStats struct {
	TotalHabits    int `json:"totalHabits"`
	TotalCheckIns  int `json:"totalCheckIns"`
	CompletionRate int `json:"completionRate"`
	GoalsReached   int `json:"goalsReached"`
	BestStreak     int `json:"bestStreak"`
}

// SampleWeeklyStats 是测试发送使用的固定数据
func SampleWeeklyStats() WeeklyStats {
	return WeeklyStats{TotalHabits: 4, TotalCheckIns: 12, CompletionRate: 75, GoalsReached: 3, BestStreak: 5}
}

// DigestContent 是渲染后的邮件内容
type DigestContent struct {
	Subject string
	Text    string
	HTML    string
}

// BuildDigestContent 先生成 markdown 正文，纯文本版本直接使用它，HTML 版本经 goldmark 渲染并清洗
func BuildDigestContent(stats WeeklyStats, weekStart time.Time, siteURL string) (DigestContent, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		siteURL = defaultSiteBaseURL
	}
	weekLabel := calendar.DayKey(weekStart)

	subject := fmt.Sprintf("🚀 New week, fresh start: your habit recap (%s)", weekLabel)
	if stats.TotalCheckIns > 0 {
		subject = fmt.Sprintf("🔥 Great progress this week! Your habit recap (%s)", weekLabel)
	}

	encouragement := "A small step today beats none: you can restart the engine right now 💪"
	if stats.CompletionRate >= 70 {
		encouragement = "You are doing well, keep this simple and steady rhythm 💪"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Your weekly habit recap\n\n")
	fmt.Fprintf(&b, "Week of **%s**\n\n", weekLabel)
	fmt.Fprintf(&b, "### 📊 Your stats\n\n")
	fmt.Fprintf(&b, "- Active habits: **%d**\n", stats.TotalHabits)
	fmt.Fprintf(&b, "- Check-ins this week: **%d**\n", stats.TotalCheckIns)
	fmt.Fprintf(&b, "- Completion: **%d%%**\n", stats.CompletionRate)
	fmt.Fprintf(&b, "- Goals reached: **%d**\n", stats.GoalsReached)
	fmt.Fprintf(&b, "- Best streak: **%d day(s)**\n\n", stats.BestStreak)
	fmt.Fprintf(&b, "%s\n\n", encouragement)
	fmt.Fprintf(&b, "[Open my tracker](%s)\n", siteURL)
	markdown := b.String()

	var buf bytes.Buffer
	if err := digestMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return DigestContent{}, fmt.Errorf("render digest: %w", err)
	}

	return DigestContent{
		Subject: subject,
		Text:    markdown,
		HTML:    digestSanitizer.Sanitize(buf.String()),
	}, nil
}

// cleanText 去除用户输入中的标记，保留纯文本
func cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(plainTextPolicy.Sanitize(value)))
}
