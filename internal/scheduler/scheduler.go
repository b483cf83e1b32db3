package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tazhate/weekping/config"
	"github.com/tazhate/weekping/internal/domain"
	"github.com/tazhate/weekping/internal/service"
)

const (
	metaLastScanDay = "last_scan_day"
	dayLayout       = "2006-01-02"

	// maxRolloverDays bounds catch-up after downtime; a week touches every weekday once.
	maxRolloverDays = 7

	evictEvery    = "@every 5m"
	mirrorTimeout = 15 * time.Second
)

// Store is the part of the event store the scheduler needs.
type Store interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	LoadSettings(ctx context.Context, userID int64) (*domain.Settings, error)
	LoadEvents(ctx context.Context, userID int64) ([]*domain.Event, error)
	SaveEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, userID int64, eventID string) error
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Sender delivers a rendered notification to a user.
type Sender interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Sessions is the dialog session manager.
type Sessions interface {
	Lock(userID int64) func()
	Evict(maxIdle time.Duration) int
}

type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	store    Store
	format   *service.Formatter
	sender   Sender
	sessions Sessions
	mirror   service.Mirror
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time

	// passMu serializes scan passes; the cron chain only guards against
	// overlap of the same job.
	passMu sync.Mutex
}

func New(cfg *config.Config, store Store, format *service.Formatter, logger *zap.Logger) *Scheduler {
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.Named("scheduler")
	clog := cronLogger{l: logger.Sugar()}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	return &Scheduler{
		cron:    c,
		cfg:     cfg,
		store:   store,
		format:  format,
		logger:  logger,
		metrics: NewMetrics(),
		now:     func() time.Time { return time.Now().In(loc) },
	}
}

func (s *Scheduler) SetSender(sender Sender) {
	s.sender = sender
}

// SetSessions enables per-user locking during a pass and the eviction job.
func (s *Scheduler) SetSessions(sessions Sessions) {
	s.sessions = sessions
}

// SetMirror removes expired events from the calendar mirror as well.
func (s *Scheduler) SetMirror(m service.Mirror) {
	s.mirror = m
}

func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start registers the jobs, runs one pass immediately and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	scanSpec := fmt.Sprintf("@every %s", s.cfg.CheckInterval)
	if _, err := s.cron.AddFunc(scanSpec, func() { s.RunPass(ctx) }); err != nil {
		return fmt.Errorf("add scan job: %w", err)
	}

	digest, err := domain.ParseStartTime(s.cfg.DigestTime)
	if err != nil {
		return fmt.Errorf("parse digest time: %w", err)
	}
	digestSpec := fmt.Sprintf("%d %d * * *", digest.Minute, digest.Hour)
	if _, err := s.cron.AddFunc(digestSpec, func() { s.RunDigest(ctx) }); err != nil {
		return fmt.Errorf("add digest job: %w", err)
	}

	if s.sessions != nil && s.cfg.SessionTTL > 0 {
		if _, err := s.cron.AddFunc(evictEvery, s.evictSessions); err != nil {
			return fmt.Errorf("add eviction job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Stringer("timezone", s.cron.Location()),
		zap.Duration("interval", s.cfg.CheckInterval),
		zap.String("digest_time", s.cfg.DigestTime))

	s.RunPass(ctx)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunPass performs one scan: the rollover of ended days first, then the
// ping evaluation of every user's events for today and tomorrow.
func (s *Scheduler) RunPass(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	now := s.now()
	s.metrics.PassesTotal.Inc()

	if err := s.rollover(ctx, now); err != nil {
		s.logger.Error("rollover failed", zap.Error(err))
	}

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		s.metrics.StoreErrorsTotal.Inc()
		s.logger.Error("list users", zap.Error(err))
		return
	}
	for _, userID := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.scanUser(ctx, userID, now); err != nil {
			s.metrics.StoreErrorsTotal.Inc()
			s.logger.Error("scan user", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
}

// rollover runs the reset pass for every day that ended since the last scan.
// The first pass ever only records today.
func (s *Scheduler) rollover(ctx context.Context, now time.Time) error {
	today := domain.Midnight(now)

	raw, err := s.store.GetMeta(ctx, metaLastScanDay)
	if err != nil {
		return fmt.Errorf("get last scan day: %w", err)
	}

	var ended []time.Time
	if raw != "" {
		last, err := time.ParseInLocation(dayLayout, raw, now.Location())
		if err != nil {
			s.logger.Warn("unparsable last scan day, skipping rollover", zap.String("value", raw))
		} else {
			ended = endedDays(last, today)
		}
	}

	if len(ended) > 0 {
		ids, err := s.store.ListUserIDs(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		failed := 0
		for _, userID := range ids {
			if err := s.resetUser(ctx, userID, ended); err != nil {
				failed++
				s.metrics.StoreErrorsTotal.Inc()
				s.logger.Error("reset user", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		// The last scan day stays put so the next pass repeats the reset;
		// users that were reset already are unaffected since Reset is idempotent.
		if failed > 0 {
			return fmt.Errorf("reset failed for %d of %d users", failed, len(ids))
		}
		s.metrics.RolloversTotal.Add(float64(len(ended)))
		s.logger.Info("rollover done",
			zap.String("from", ended[0].Format(dayLayout)),
			zap.Int("days", len(ended)))
	}

	if raw == today.Format(dayLayout) {
		return nil
	}
	if err := s.store.SetMeta(ctx, metaLastScanDay, today.Format(dayLayout)); err != nil {
		return fmt.Errorf("set last scan day: %w", err)
	}
	return nil
}

// endedDays lists the calendar days in [last, today), at most the latest week.
func endedDays(last, today time.Time) []time.Time {
	if !last.Before(today) {
		return nil
	}
	from := today.AddDate(0, 0, -maxRolloverDays)
	if last.After(from) {
		from = last
	}
	var days []time.Time
	for d := from; d.Before(today); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// resetUser applies the reset pass of the ended days to one user's events.
// Recurring events are re-armed. A single event is re-armed only when it was
// scheduled at or after that day's start, i.e. it targets the next week;
// otherwise its occurrence is over and it is removed.
func (s *Scheduler) resetUser(ctx context.Context, userID int64, ended []time.Time) error {
	unlock := s.lockUser(userID)
	defer unlock()

	events, err := s.store.LoadEvents(ctx, userID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}

	for _, e := range events {
		for _, day := range ended {
			if domain.WeekdayOf(day) != e.Day {
				continue
			}
			if e.Type == domain.EventSingle && e.OwnsOccurrence(day) {
				if err := s.store.DeleteEvent(ctx, userID, e.ID); err != nil {
					return fmt.Errorf("delete event %s: %w", e.ID, err)
				}
				s.metrics.ExpiredTotal.Inc()
				s.mirrorDelete(ctx, userID, e.ID)
				s.logger.Info("single event removed after its day",
					zap.Int64("user_id", userID), zap.String("event_id", e.ID))
				break
			}
			if e.Reset() {
				if err := s.store.SaveEvent(ctx, e); err != nil {
					return fmt.Errorf("save event %s: %w", e.ID, err)
				}
			}
		}
	}
	return nil
}

// scanUser evaluates the user's events for today and tomorrow. Mutated
// events are written back before the notification goes out, so a failed
// send never re-arms an offset.
func (s *Scheduler) scanUser(ctx context.Context, userID int64, now time.Time) error {
	due, expired, err := s.evaluateUser(ctx, userID, now)
	if err != nil {
		return err
	}

	if len(due) > 0 {
		if err := s.notify(ctx, userID, due); err != nil {
			return err
		}
	}

	for _, e := range expired {
		if err := s.store.DeleteEvent(ctx, userID, e.ID); err != nil {
			return fmt.Errorf("delete expired event %s: %w", e.ID, err)
		}
		s.metrics.ExpiredTotal.Inc()
		s.mirrorDelete(ctx, userID, e.ID)
		s.logger.Info("single event expired", zap.Int64("user_id", userID), zap.String("event_id", e.ID))
	}
	return nil
}

func (s *Scheduler) evaluateUser(ctx context.Context, userID int64, now time.Time) ([]service.Due, []*domain.Event, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	events, err := s.store.LoadEvents(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load events: %w", err)
	}

	today := domain.Midnight(now)
	tomorrow := today.AddDate(0, 0, 1)

	var due []service.Due
	var expired []*domain.Event
	for _, e := range events {
		var date time.Time
		switch e.Day {
		case domain.WeekdayOf(today):
			date = today
		case domain.WeekdayOf(tomorrow):
			date = tomorrow
		default:
			continue
		}

		res := e.Evaluate(date, now)
		if res.Pinged() {
			if err := s.store.SaveEvent(ctx, e); err != nil {
				return nil, nil, fmt.Errorf("save event %s: %w", e.ID, err)
			}
			due = append(due, service.Due{Event: e, Result: res})
			s.countPings(res)
		}
		if res.Expired {
			expired = append(expired, e)
		}
	}
	return due, expired, nil
}

func (s *Scheduler) countPings(res domain.PingResult) {
	if n := len(res.Offsets); n > 0 {
		s.metrics.PingsTotal.WithLabelValues("advance").Add(float64(n))
	}
	if res.Started {
		s.metrics.PingsTotal.WithLabelValues("start").Inc()
	}
}

// notify sends one message for all due events of a user. Only loading the
// settings can fail the pass; delivery errors are logged.
func (s *Scheduler) notify(ctx context.Context, userID int64, due []service.Due) error {
	st, err := s.store.LoadSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	text := s.format.Notification(st.Language, due)
	if text == "" || s.sender == nil {
		return nil
	}
	if err := s.sender.Notify(ctx, userID, text); err != nil {
		s.metrics.SendFailuresTotal.Inc()
		s.logger.Warn("send notification", zap.Int64("user_id", userID), zap.Error(err))
	}
	return nil
}

// RunDigest sends every opted-in user the overview of today's digest events.
func (s *Scheduler) RunDigest(ctx context.Context) {
	if s.sender == nil {
		return
	}
	today := domain.WeekdayOf(s.now())

	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("list users", zap.Error(err))
		return
	}
	for _, userID := range ids {
		if err := s.sendDigest(ctx, userID, today); err != nil {
			s.logger.Error("daily digest", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
}

func (s *Scheduler) sendDigest(ctx context.Context, userID int64, today domain.Weekday) error {
	st, err := s.store.LoadSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !st.DailyPingEnabled {
		return nil
	}

	events, err := s.store.LoadEvents(ctx, userID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	var todays []*domain.Event
	for _, e := range events {
		if e.Day == today && e.InDailyDigest {
			todays = append(todays, e)
		}
	}
	slices.SortStableFunc(todays, func(a, b *domain.Event) int {
		return (a.Start.Hour*60 + a.Start.Minute) - (b.Start.Hour*60 + b.Start.Minute)
	})

	text := s.format.Digest(st.Language, todays)
	if text == "" {
		return nil
	}
	if err := s.sender.Notify(ctx, userID, text); err != nil {
		s.metrics.SendFailuresTotal.Inc()
		return fmt.Errorf("send digest: %w", err)
	}
	s.metrics.DigestsTotal.Inc()
	return nil
}

func (s *Scheduler) evictSessions() {
	if n := s.sessions.Evict(s.cfg.SessionTTL); n > 0 {
		s.logger.Debug("evicted idle sessions", zap.Int("count", n))
	}
}

func (s *Scheduler) lockUser(userID int64) func() {
	if s.sessions == nil {
		return func() {}
	}
	return s.sessions.Lock(userID)
}

func (s *Scheduler) mirrorDelete(ctx context.Context, userID int64, eventID string) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := s.mirror.DeleteEvent(ctx, userID, eventID); err != nil {
		s.logger.Warn("mirror delete failed", zap.Int64("user_id", userID), zap.String("event_id", eventID), zap.Error(err))
	}
}
