package handler

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/siyavash-momeni/tracker/internal/eventbus"
	"github.com/siyavash-momeni/tracker/internal/logger"
	"github.com/siyavash-momeni/tracker/internal/service"
	"gorm.io/gorm"
)

// Options carries the optional collaborators and secrets the handlers need.
type Options struct {
	CronSecret    string
	WebhookSecret string

	Cache  service.RangeCache
	Events eventbus.Publisher
	Sender service.EmailSender

	EmailFrom            string
	SiteURL              string
	DigestUserDelay      time.Duration
	DigestRetryBaseDelay time.Duration

	Logger *log.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	users    *service.UserService
	habits   *service.HabitService
	progress *service.ProgressService
	stats    *service.StatsService
	notes    *service.NoteService
	digest   *service.DigestDispatcher

	cronSecret    string
	webhookSecret string
	logger        *log.Logger
	now           func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	l := logger.OrDiscard(opts.Logger)

	store := service.NewGormCompletionStore(gdb)
	users := service.NewUserService(gdb).WithCache(opts.Cache)
	habits := service.NewHabitService(gdb).WithCache(opts.Cache)

	retry := service.DefaultRetryPolicy()
	if opts.DigestRetryBaseDelay > 0 {
		retry.BaseDelay = opts.DigestRetryBaseDelay
	}

	digest := service.NewDigestDispatcher(
		service.NewGormDispatchLogStore(gdb),
		users,
		habits,
		store,
		opts.Sender,
		service.DigestOptions{
			From:      opts.EmailFrom,
			SiteURL:   opts.SiteURL,
			UserDelay: opts.DigestUserDelay,
			Retry:     retry,
			Events:    opts.Events,
			Logger:    l,
		},
	)

	return &API{
		db:            gdb,
		users:         users,
		habits:        habits,
		progress:      service.NewProgressService(habits, store, opts.Cache, opts.Events, l),
		stats:         service.NewStatsService(habits, store, opts.Cache),
		notes:         service.NewNoteService(gdb),
		digest:        digest,
		cronSecret:    strings.TrimSpace(opts.CronSecret),
		webhookSecret: strings.TrimSpace(opts.WebhookSecret),
		logger:        l,
		now:           time.Now,
	}
}

// Digest exposes the weekly digest dispatcher for the batch command.
func (a *API) Digest() *service.DigestDispatcher {
	return a.digest
}

// WithClock overrides the clock used for default dates; intended for tests.
func (a *API) WithClock(now func() time.Time) *API {
	if now != nil {
		a.now = now
		a.stats.WithClock(now)
		a.digest.WithClock(now)
	}
	return a
}
