// Package calendar mirrors plant care tasks as recurring all-day events in a
// dedicated Google calendar of the user.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mgmu/greenhouse/internal/auth"
	"github.com/mgmu/greenhouse/internal/plants"
)

const taskIdProperty = "greenhouse_task_id"

// Store is the part of the database the sync needs.
type Store interface {
	GetSettings(ctx context.Context, userId int) (plants.UserSettings, error)
	SetCalendarSync(ctx context.Context, userId int, enabled bool, calendarId string) error
	GetGoogleToken(ctx context.Context, userId int) (plants.GoogleToken, error)
	SaveGoogleToken(ctx context.Context, userId int, tok plants.GoogleToken) error
	GetUserTasks(ctx context.Context, userId int) ([]plants.PlantTask, error)
	SetTaskCalendarEvent(ctx context.Context, taskId int, eventId string) error
	ClearCalendarEvents(ctx context.Context, userId int) error
}

type Syncer struct {
	oauth *oauth2.Config
	store Store
	name  string
	log   *zap.Logger
	opts  []option.ClientOption
}

func New(oauth *oauth2.Config, store Store, name string, log *zap.Logger) *Syncer {
	return &Syncer{oauth: oauth, store: store, name: name, log: log}
}

// savingSource persists the token each time the underlying source refreshes
// it.
type savingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	last   string
	store  Store
	userId int
	ctx    context.Context
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.SaveGoogleToken(s.ctx, s.userId, auth.ToGoogleToken(tok)); err != nil {
			return nil, fmt.Errorf("save refreshed token: %w", err)
		}
	}
	return tok, nil
}

func (s *Syncer) service(ctx context.Context, userId int) (*gcal.Service, error) {
	stored, err := s.store.GetGoogleToken(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("google token of user %d: %w", userId, err)
	}
	tok := auth.FromGoogleToken(stored)
	src := &savingSource{
		base:   s.oauth.TokenSource(ctx, tok),
		last:   tok.AccessToken,
		store:  s.store,
		userId: userId,
		ctx:    ctx,
	}
	opts := append([]option.ClientOption{option.WithTokenSource(src)}, s.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}
	return svc, nil
}

// isGone reports whether err means the calendar or event no longer exists,
// usually because the user deleted it by hand.
func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

// ensureCalendar returns the identifier of the user's plant calendar, creating
// it when id is empty or refers to a deleted calendar.
func (s *Syncer) ensureCalendar(ctx context.Context, svc *gcal.Service, id, timezone string) (string, error) {
	if id != "" {
		_, err := svc.Calendars.Get(id).Context(ctx).Do()
		if err == nil {
			return id, nil
		}
		if !isGone(err) {
			return "", fmt.Errorf("get calendar: %w", err)
		}
	}
	cal, err := svc.Calendars.Insert(&gcal.Calendar{
		Summary:  s.name,
		TimeZone: timezone,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create calendar: %w", err)
	}
	return cal.Id, nil
}

// Enable turns sync on for the user and pushes all the tasks.
func (s *Syncer) Enable(ctx context.Context, userId int) error {
	settings, err := s.store.GetSettings(ctx, userId)
	if err != nil {
		return err
	}
	svc, err := s.service(ctx, userId)
	if err != nil {
		return err
	}
	id, err := s.ensureCalendar(ctx, svc, settings.CalendarId, settings.Timezone)
	if err != nil {
		return err
	}
	if id != settings.CalendarId {
		// events of a lost calendar are gone with it
		if err := s.store.ClearCalendarEvents(ctx, userId); err != nil {
			return err
		}
	}
	if err := s.store.SetCalendarSync(ctx, userId, true, id); err != nil {
		return err
	}
	return s.syncAll(ctx, svc, userId, id)
}

// Disable turns sync off and removes the plant calendar.
func (s *Syncer) Disable(ctx context.Context, userId int) error {
	settings, err := s.store.GetSettings(ctx, userId)
	if err != nil {
		return err
	}
	if settings.CalendarId != "" {
		svc, err := s.service(ctx, userId)
		if err != nil {
			return err
		}
		err = svc.Calendars.Delete(settings.CalendarId).Context(ctx).Do()
		if err != nil && !isGone(err) {
			return fmt.Errorf("delete calendar: %w", err)
		}
	}
	if err := s.store.ClearCalendarEvents(ctx, userId); err != nil {
		return err
	}
	return s.store.SetCalendarSync(ctx, userId, false, "")
}

// SyncUser pushes every task of the user to the calendar, recreating the
// calendar when it was deleted. Nothing happens when sync is off.
func (s *Syncer) SyncUser(ctx context.Context, userId int) error {
	settings, err := s.store.GetSettings(ctx, userId)
	if err != nil {
		return err
	}
	if !settings.CalendarSyncEnabled {
		return nil
	}
	svc, err := s.service(ctx, userId)
	if err != nil {
		return err
	}
	id, err := s.ensureCalendar(ctx, svc, settings.CalendarId, settings.Timezone)
	if err != nil {
		return err
	}
	if id != settings.CalendarId {
		s.log.Info("calendar recreated", zap.Int("user", userId), zap.String("calendar", id))
		if err := s.store.ClearCalendarEvents(ctx, userId); err != nil {
			return err
		}
		if err := s.store.SetCalendarSync(ctx, userId, true, id); err != nil {
			return err
		}
	}
	return s.syncAll(ctx, svc, userId, id)
}

func (s *Syncer) syncAll(ctx context.Context, svc *gcal.Service, userId int, calendarId string) error {
	tasks, err := s.store.GetUserTasks(ctx, userId)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range tasks {
		if err := s.syncTask(ctx, svc, calendarId, t); err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", t.Id, err))
		}
	}
	return errors.Join(errs...)
}

// SyncTask creates or updates the event of the task. Nothing happens when
// sync is off.
func (s *Syncer) SyncTask(ctx context.Context, userId int, t plants.PlantTask) error {
	settings, err := s.store.GetSettings(ctx, userId)
	if err != nil {
		return err
	}
	if !settings.CalendarSyncEnabled || settings.CalendarId == "" {
		return nil
	}
	svc, err := s.service(ctx, userId)
	if err != nil {
		return err
	}
	return s.syncTask(ctx, svc, settings.CalendarId, t)
}

func (s *Syncer) syncTask(ctx context.Context, svc *gcal.Service, calendarId string, t plants.PlantTask) error {
	ev := buildEvent(t)
	if t.CalendarEventId != "" {
		_, err := svc.Events.Update(calendarId, t.CalendarEventId, ev).Context(ctx).Do()
		if err == nil {
			return nil
		}
		if !isGone(err) {
			return fmt.Errorf("update event: %w", err)
		}
	}
	created, err := svc.Events.Insert(calendarId, ev).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return s.store.SetTaskCalendarEvent(ctx, t.Id, created.Id)
}

// DeleteTaskEvents removes the events of the given tasks of the user from
// the calendar. Events already gone are ignored.
func (s *Syncer) DeleteTaskEvents(ctx context.Context, userId int, tasks []plants.PlantTask) error {
	var withEvent []plants.PlantTask
	for _, t := range tasks {
		if t.CalendarEventId != "" {
			withEvent = append(withEvent, t)
		}
	}
	if len(withEvent) == 0 {
		return nil
	}
	settings, err := s.store.GetSettings(ctx, userId)
	if err != nil {
		return err
	}
	if settings.CalendarId == "" {
		return nil
	}
	svc, err := s.service(ctx, userId)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range withEvent {
		err := svc.Events.Delete(settings.CalendarId, t.CalendarEventId).Context(ctx).Do()
		if err != nil && !isGone(err) {
			errs = append(errs, fmt.Errorf("delete event of task %d: %w", t.Id, err))
		}
	}
	return errors.Join(errs...)
}

// buildEvent returns the all-day recurring event standing for t.
func buildEvent(t plants.PlantTask) *gcal.Event {
	label := t.TaskLabel
	if label == "" {
		label = t.TaskKey
	}
	summary := label
	if t.PlantName != "" {
		summary = label + ": " + t.PlantName
	}
	return &gcal.Event{
		Summary:      summary,
		Description:  fmt.Sprintf("Every %d day(s).", t.FrequencyDays),
		Start:        &gcal.EventDateTime{Date: t.NextDueOn.String()},
		End:          &gcal.EventDateTime{Date: t.NextDueOn.AddDays(1).String()},
		Recurrence:   []string{fmt.Sprintf("RRULE:FREQ=DAILY;INTERVAL=%d", t.FrequencyDays)},
		Transparency: "transparent",
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{taskIdProperty: strconv.Itoa(t.Id)},
		},
	}
}
