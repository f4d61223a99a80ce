package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siyavash-momeni/tracker/internal/db"
	"github.com/siyavash-momeni/tracker/internal/handler"
	"github.com/siyavash-momeni/tracker/internal/router"
	"github.com/siyavash-momeni/tracker/internal/service"
	"gorm.io/gorm/logger"
)

const (
	e2eCronSecret    = "e2e-cron-secret"
	e2eWebhookSecret = "e2e-webhook-secret"
	e2eUserID        = "user_e2e"
)

// 2024-01-10 是周三
var e2eNow = time.Date(2024, 1, 10, 18, 0, 0, 0, time.UTC)

type e2eSuite struct {
	handler http.Handler
	public  httpClient
	user    httpClient
	baseURL string
	outbox  *recordingSender
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []service.EmailMessage
}

func (s *recordingSender) Send(_ context.Context, msg service.EmailMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return "msg_e2e", nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestE2E_HabitLifecycle(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("identity webhook", suite.testIdentityWebhook)
	suite.signIn(t)
	t.Run("habits and progress", suite.testHabitsAndProgress)
	t.Run("weekly digest", suite.testWeeklyDigest)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "e2e.db"),
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	outbox := &recordingSender{}
	api := handler.NewAPI(gdb, handler.Options{
		CronSecret:    e2eCronSecret,
		WebhookSecret: e2eWebhookSecret,
		Sender:        outbox,
		EmailFrom:     "Habitlog <digest@example.test>",
		SiteURL:       "http://example.test",
	}).WithClock(func() time.Time { return e2eNow })

	engine := router.SetupRouter(api, "test-session-secret")

	return &e2eSuite{
		handler: engine,
		public:  newLocalClient(engine, false),
		user:    newLocalClient(engine, true),
		baseURL: "http://example.test",
		outbox:  outbox,
	}
}

// signIn 只在第一次请求携带身份头，之后依赖会话 cookie
func (s *e2eSuite) signIn(t *testing.T) {
	t.Helper()
	resp := s.mustRequest(t, s.user, http.MethodGet, "/api/me", nil, map[string]string{handler.UserIDHeader: e2eUserID})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign in failed, status %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testIdentityWebhook(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"type": "user.created",
		"data": map[string]any{
			"id":              e2eUserID,
			"email_addresses": []map[string]string{{"email_address": "e2e@example.test"}},
		},
	})

	resp := s.mustRequest(t, s.public, http.MethodPost, "/api/webhooks/identity", body, map[string]string{
		handler.WebhookSignatureHeader: "sha256=" + handler.SignWebhookBody(e2eWebhookSecret, body),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook: expected status 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	unsigned := s.mustRequest(t, s.public, http.MethodPost, "/api/webhooks/identity", body, nil)
	defer unsigned.Body.Close()
	if unsigned.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned webhook: expected status 401, got %d", unsigned.StatusCode)
	}

	anonymous := s.mustRequest(t, s.public, http.MethodGet, "/api/habits", nil, nil)
	defer anonymous.Body.Close()
	if anonymous.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected status 401, got %d", anonymous.StatusCode)
	}
}

func (s *e2eSuite) testHabitsAndProgress(t *testing.T) {
	var created struct {
		Habit struct {
			ID string `json:"id"`
		} `json:"habit"`
	}
	s.mustJSON(t, http.MethodPost, "/api/habits", map[string]any{
		"title":       "Courir",
		"emoji":       "🏃",
		"targetValue": 3,
		"frequency":   "WEEKLY",
		"activeDays":  []int{1, 3, 5},
	}, http.StatusCreated, &created)
	if created.Habit.ID == "" {
		t.Fatal("expected habit id")
	}

	var progress struct {
		Progress struct {
			CurrentProgress int  `json:"currentProgress"`
			IsCompleted     bool `json:"isCompleted"`
		} `json:"progress"`
	}
	s.mustJSON(t, http.MethodPost, "/api/habits/completion", map[string]any{"habitId": created.Habit.ID, "date": "2024-01-08", "value": 2}, http.StatusOK, &progress)
	s.mustJSON(t, http.MethodPost, "/api/habits/completion", map[string]any{"habitId": created.Habit.ID, "date": "2024-01-10", "value": 1}, http.StatusOK, &progress)
	if progress.Progress.CurrentProgress != 3 || !progress.Progress.IsCompleted {
		t.Fatalf("expected weekly goal reached, got %+v", progress.Progress)
	}

	s.mustJSON(t, http.MethodPost, "/api/habits/completion", map[string]any{"habitId": created.Habit.ID, "date": "2024-01-09", "value": 1}, http.StatusBadRequest, nil)

	var byDate struct {
		CompletedHabitIDs []string `json:"completedHabitIds"`
	}
	s.mustJSON(t, http.MethodGet, "/api/habits/by-date?date=2024-01-12", nil, http.StatusOK, &byDate)
	if len(byDate.CompletedHabitIDs) != 1 || byDate.CompletedHabitIDs[0] != created.Habit.ID {
		t.Fatalf("expected habit to count as completed for the whole week, got %v", byDate.CompletedHabitIDs)
	}

	var totals service.Totals
	s.mustJSON(t, http.MethodGet, "/api/stats?range=7d", nil, http.StatusOK, &totals)
	if totals.TotalHabits != 1 || totals.TotalCompletions != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	var rangeResp struct {
		Days []service.DayCount `json:"days"`
	}
	s.mustJSON(t, http.MethodGet, "/api/habits/completions-range?start=2024-01-08&end=2024-01-14", nil, http.StatusOK, &rangeResp)
	if len(rangeResp.Days) != 7 || rangeResp.Days[0].Completions != 1 || rangeResp.Days[1].Completions != 0 {
		t.Fatalf("unexpected range: %+v", rangeResp.Days)
	}
}

func (s *e2eSuite) testWeeklyDigest(t *testing.T) {
	type batch struct {
		ProcessedUsers   int `json:"processedUsers"`
		Sent             int `json:"sent"`
		SkippedDuplicate int `json:"skippedDuplicate"`
		Failed           int `json:"failed"`
	}

	headers := map[string]string{handler.CronSecretHeader: e2eCronSecret}

	var first batch
	s.cronJSON(t, headers, &first)
	if first.ProcessedUsers != 1 || first.Sent != 1 || first.Failed != 0 {
		t.Fatalf("unexpected first batch: %+v", first)
	}

	var second batch
	s.cronJSON(t, headers, &second)
	if second.Sent != 0 || second.SkippedDuplicate != 1 {
		t.Fatalf("expected duplicate to be skipped, got %+v", second)
	}

	if s.outbox.count() != 1 {
		t.Fatalf("expected exactly one email, got %d", s.outbox.count())
	}
	msg := s.outbox.sent[0]
	if msg.To != "e2e@example.test" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !bytes.Contains([]byte(msg.HTML), []byte("http://example.test")) {
		t.Fatalf("digest html does not link back to the site: %s", msg.HTML)
	}
}

func (s *e2eSuite) cronJSON(t *testing.T, headers map[string]string, out any) {
	t.Helper()
	resp := s.mustRequest(t, s.public, http.MethodPost, "/api/cron/weekly-email", nil, headers)
	defer resp.Body.Close()
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cron: expected status 200, got %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		t.Fatalf("cron: failed to decode %s: %v", body, err)
	}
}

func (s *e2eSuite) mustJSON(t *testing.T, method, path string, payload any, expect int, out any) {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}

	resp := s.mustRequest(t, s.user, method, path, body, map[string]string{"Content-Type": "application/json"})
	defer resp.Body.Close()
	raw := readBody(t, resp)
	if resp.StatusCode != expect {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, expect, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			t.Fatalf("%s %s: failed to decode %s: %v", method, path, raw, err)
		}
	}
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(data)
}
