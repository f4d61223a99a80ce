package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func postWebhook(t *testing.T, env handlerEnv, payload any, signature func([]byte) string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/identity", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != nil {
		req.Header.Set(WebhookSignatureHeader, signature(body))
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func userCreatedEvent(id, email string) gin.H {
	return gin.H{
		"type": "user.created",
		"data": gin.H{
			"id":              id,
			"email_addresses": []gin.H{{"email_address": email}},
		},
	}
}

func TestIdentityWebhookSyncsUsers(t *testing.T) {
	env := setupHandlerEnv(t, Options{WebhookSecret: testWebhookSecret})
	sign := func(body []byte) string { return "sha256=" + SignWebhookBody(testWebhookSecret, body) }

	rr := postWebhook(t, env, userCreatedEvent("user_1", "ana@example.com"), sign)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var user db.User
	require.NoError(t, env.db.First(&user, "id = ?", "user_1").Error)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.True(t, user.WeeklyEmailEnabled)

	rr = postWebhook(t, env, gin.H{"type": "user.deleted", "data": gin.H{"id": "user_1"}}, func(body []byte) string {
		return SignWebhookBody(testWebhookSecret, body)
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var count int64
	require.NoError(t, env.db.Model(&db.User{}).Where("id = ?", "user_1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestIdentityWebhookRejectsBadSignature(t *testing.T) {
	env := setupHandlerEnv(t, Options{WebhookSecret: testWebhookSecret})

	rr := postWebhook(t, env, userCreatedEvent("user_1", "ana@example.com"), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postWebhook(t, env, userCreatedEvent("user_1", "ana@example.com"), func(body []byte) string {
		return SignWebhookBody("other-secret", body)
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var count int64
	require.NoError(t, env.db.Model(&db.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIdentityWebhookRequiresConfiguredSecret(t *testing.T) {
	env := setupHandlerEnv(t, Options{})

	rr := postWebhook(t, env, userCreatedEvent("user_1", "ana@example.com"), func(body []byte) string {
		return SignWebhookBody("", body)
	})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPreferencesRoundTrip(t *testing.T) {
	env := setupHandlerEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/api/me", "user_1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody[struct {
		ID                 string `json:"id"`
		WeeklyEmailEnabled bool   `json:"weeklyEmailEnabled"`
	}](t, rr)
	assert.Equal(t, "user_1", me.ID)
	assert.True(t, me.WeeklyEmailEnabled)

	rr = env.do(t, http.MethodPut, "/api/me/preferences", "user_1", gin.H{"weeklyEmailEnabled": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var user db.User
	require.NoError(t, env.db.First(&user, "id = ?", "user_1").Error)
	assert.False(t, user.WeeklyEmailEnabled)

	rr = env.do(t, http.MethodPut, "/api/me/preferences", "user_1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotesCRUD(t *testing.T) {
	env := setupHandlerEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/api/notes", "user_1", gin.H{"title": "<b>Bilan</b>", "content": "Bonne semaine"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	type noteBody struct {
		Note struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"note"`
	}
	created := decodeBody[noteBody](t, rr).Note
	assert.Equal(t, "Bilan", created.Title)

	rr = env.do(t, http.MethodPut, "/api/notes/"+created.ID, "user_1", gin.H{"title": "Bilan", "content": "Semaine difficile"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Semaine difficile", decodeBody[noteBody](t, rr).Note.Content)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/notes/"+created.ID, "user_2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/notes", "user_1", gin.H{"title": "", "content": "x"}).Code)

	rr = env.do(t, http.MethodGet, "/api/notes", "user_1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[struct {
		Notes []gin.H `json:"notes"`
	}](t, rr).Notes, 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/notes/"+created.ID, "user_1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/notes/"+created.ID, "user_1", nil).Code)
}
