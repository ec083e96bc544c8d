// Package reminders runs the periodic jobs of the server: daily push
// reminders about plant care and the nightly calendar resync.
package reminders

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mgmu/greenhouse/internal/config"
	"github.com/mgmu/greenhouse/internal/notify"
	"github.com/mgmu/greenhouse/internal/plants"
	"github.com/mgmu/greenhouse/internal/tasks"
)

type Store interface {
	ListNotifiableUsers(ctx context.Context) ([]plants.UserSettings, error)
	ListCalendarUsers(ctx context.Context) ([]plants.UserSettings, error)
	GetUserTasks(ctx context.Context, userId int) ([]plants.PlantTask, error)
	MarkNotified(ctx context.Context, userId, cursor int, on plants.Date) error
	RemovePushToken(ctx context.Context, userId int, token string) error
}

type Pusher interface {
	Send(ctx context.Context, tokens []string, n tasks.Notification, t plants.PlantTask) (notify.Result, error)
}

type CalendarSyncer interface {
	SyncUser(ctx context.Context, userId int) error
}

// Scheduler runs the jobs. Push and Calendar may be nil when the matching
// integration is not configured, the job is then not scheduled.
type Scheduler struct {
	store    Store
	push     Pusher
	calendar CalendarSyncer
	log      *zap.Logger
	cfg      config.SchedulerConfig
	now      func() time.Time
}

func New(store Store, push Pusher, calendar CalendarSyncer, log *zap.Logger, cfg config.SchedulerConfig) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Scheduler{
		store:    store,
		push:     push,
		calendar: calendar,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run schedules the jobs and blocks until ctx is done, then waits for the
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cron.PrintfLogger(zap.NewStdLog(s.log.Named("cron")))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if s.push != nil {
		_, err := c.AddFunc(s.cfg.NotifySpec, func() {
			if err := s.NotifyAll(ctx); err != nil {
				s.log.Error("notify job", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("notify spec %q: %w", s.cfg.NotifySpec, err)
		}
	}
	if s.calendar != nil {
		_, err := c.AddFunc(s.cfg.CalendarSpec, func() {
			if err := s.SyncCalendars(ctx); err != nil {
				s.log.Error("calendar job", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("calendar spec %q: %w", s.cfg.CalendarSpec, err)
		}
	}

	c.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(c.Entries())))
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// NotifyAll sends the reminder of the day to every user for whom it is time.
// A failure for one user is logged and does not stop the others.
func (s *Scheduler) NotifyAll(ctx context.Context) error {
	users, err := s.store.ListNotifiableUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	now := s.now()
	var sent, failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, u := range users {
		g.Go(func() error {
			ok, err := s.notifyUser(ctx, u, now)
			if err != nil {
				failed.Add(1)
				s.log.Warn("reminder failed", zap.Int("user", u.UserId), zap.Error(err))
				return nil
			}
			if ok {
				sent.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	s.log.Debug("notify job done",
		zap.Int("users", len(users)),
		zap.Int32("sent", sent.Load()),
		zap.Int32("failed", failed.Load()),
	)
	return nil
}

// notifyUser sends one reminder to u if its notification hour has come today
// in its timezone and it was not notified yet today. The cursor makes the
// reminders go round the tasks that need attention, one per day.
func (s *Scheduler) notifyUser(ctx context.Context, u plants.UserSettings, now time.Time) (bool, error) {
	if !u.NotificationsEnabled || len(u.PushTokens) == 0 {
		return false, nil
	}
	loc := u.Location()
	today := tasks.Today(loc, now)
	if now.In(loc).Hour() < u.NotifyHour {
		return false, nil
	}
	if u.LastNotifiedOn != nil && !u.LastNotifiedOn.Before(today) {
		return false, nil
	}

	all, err := s.store.GetUserTasks(ctx, u.UserId)
	if err != nil {
		return false, err
	}
	attention := tasks.Attention(all, today)
	t, next, ok := tasks.PickNext(attention, u.NotificationCursor)
	if !ok {
		return false, nil
	}
	// the wording moves on once per round over the tasks, so that a task
	// does not always get the same one
	n := tasks.Compose(t, len(attention), u.NotificationCursor/len(attention), today)

	res, err := s.push.Send(ctx, u.PushTokens, n, t)
	for _, token := range res.Stale {
		if err := s.store.RemovePushToken(ctx, u.UserId, token); err != nil {
			s.log.Warn("remove stale push token", zap.Int("user", u.UserId), zap.Error(err))
		}
	}
	if err != nil {
		return false, err
	}
	if res.Sent == 0 {
		return false, nil
	}
	if err := s.store.MarkNotified(ctx, u.UserId, next, today); err != nil {
		return true, err
	}
	return true, nil
}

// SyncCalendars resyncs the calendar of every user with sync on.
func (s *Scheduler) SyncCalendars(ctx context.Context) error {
	users, err := s.store.ListCalendarUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, u := range users {
		g.Go(func() error {
			if err := s.calendar.SyncUser(ctx, u.UserId); err != nil {
				s.log.Warn("calendar sync failed", zap.Int("user", u.UserId), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}
