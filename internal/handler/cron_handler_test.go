package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCronSecret = "cron-secret"

func (e handlerEnv) triggerCron(t *testing.T, query string, auth func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/weekly-email"+query, nil)
	if auth != nil {
		auth(req)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func withCronHeader(secret string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set(CronSecretHeader, secret) }
}

func TestTriggerWeeklyEmailRequiresSecret(t *testing.T) {
	env := setupHandlerEnv(t, Options{CronSecret: testCronSecret})

	assert.Equal(t, http.StatusUnauthorized, env.triggerCron(t, "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.triggerCron(t, "", withCronHeader("wrong")).Code)

	unconfigured := setupHandlerEnv(t, Options{})
	assert.Equal(t, http.StatusUnauthorized, unconfigured.triggerCron(t, "", withCronHeader("")).Code)
	assert.Empty(t, env.sender.sent)
}

func TestTriggerWeeklyEmailTestMode(t *testing.T) {
	env := setupHandlerEnv(t, Options{CronSecret: testCronSecret})

	rr := env.triggerCron(t, "?testTo=ana@example.com", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+testCronSecret)
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeBody[struct {
		OK        bool   `json:"ok"`
		Mode      string `json:"mode"`
		SentTo    string `json:"sentTo"`
		MessageID string `json:"messageId"`
	}](t, rr)
	assert.True(t, body.OK)
	assert.Equal(t, "test", body.Mode)
	assert.Equal(t, "ana@example.com", body.SentTo)
	assert.Equal(t, "email_1", body.MessageID)

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "ana@example.com", env.sender.sent[0].To)

	var logs int64
	require.NoError(t, env.db.Model(&db.EmailDispatchLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestTriggerWeeklyEmailBatchIsAtMostOnce(t *testing.T) {
	env := setupHandlerEnv(t, Options{CronSecret: testCronSecret})
	ctx := context.Background()

	users := service.NewUserService(env.db)
	require.NoError(t, users.SyncUser(ctx, service.UserEvent{Type: service.UserEventCreated, ID: "user_1", Email: "ana@example.com"}))
	require.NoError(t, users.SyncUser(ctx, service.UserEvent{Type: service.UserEventCreated, ID: "user_2", Email: "bo@example.com"}))
	require.NoError(t, users.SyncUser(ctx, service.UserEvent{Type: service.UserEventCreated, ID: "user_3"}))
	_, err := users.SetWeeklyEmail(ctx, "user_2", false)
	require.NoError(t, err)

	type batchBody struct {
		OK               bool   `json:"ok"`
		WeekStartDate    string `json:"weekStartDate"`
		ProcessedUsers   int    `json:"processedUsers"`
		Sent             int    `json:"sent"`
		SkippedDuplicate int    `json:"skippedDuplicate"`
		Failed           int    `json:"failed"`
	}

	rr := env.triggerCron(t, "", withCronHeader(testCronSecret))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decodeBody[batchBody](t, rr)
	assert.True(t, first.OK)
	assert.Equal(t, "2024-01-08T00:00:00Z", first.WeekStartDate)
	assert.Equal(t, 1, first.ProcessedUsers)
	assert.Equal(t, 1, first.Sent)

	rr = env.triggerCron(t, "", withCronHeader(testCronSecret))
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeBody[batchBody](t, rr)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.SkippedDuplicate)

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "ana@example.com", env.sender.sent[0].To)
}

func TestTriggerWeeklyEmailReportsMissingConfiguration(t *testing.T) {
	env := setupHandlerEnv(t, Options{CronSecret: testCronSecret, Sender: &stubSender{}})

	rr := env.triggerCron(t, "?testTo=ana@example.com", withCronHeader(testCronSecret))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid email configuration")
}
