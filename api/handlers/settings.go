package handlers

import (
	"fmt"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
	"net/http"
	"strings"
)

// Settings returns the settings of the user on GET, and applies a partial
// update on PUT.
func (e *Env) Settings() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userId := currentUser(r)
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s, err := e.DB.GetSettings(r.Context(), userId)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, s)
		case http.MethodPut:
			var req messages.JsonSettings
			if err := decode(r, &req); err != nil {
				e.fail(w, r, err)
				return
			}
			s, err := e.DB.GetSettings(r.Context(), userId)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			if req.NotificationsEnabled != nil {
				s.NotificationsEnabled = *req.NotificationsEnabled
			}
			if req.NotifyHour != nil {
				s.NotifyHour = *req.NotifyHour
			}
			if req.Timezone != nil {
				s.Timezone = strings.TrimSpace(*req.Timezone)
			}
			if req.TutorialCompleted != nil {
				s.TutorialCompleted = *req.TutorialCompleted
			}
			if err := plants.CheckSettings(s); err != nil {
				e.fail(w, r, err)
				return
			}
			if err := e.DB.UpdateSettings(r.Context(), s); err != nil {
				e.fail(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, s)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead, http.MethodPut)
		}
	}
}

// PushTokens registers (POST) or forgets (DELETE) the FCM token of a device.
func (e *Env) PushTokens() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
			return
		}
		var req messages.JsonPushToken
		if err := decode(r, &req); err != nil {
			e.fail(w, r, err)
			return
		}
		token := strings.TrimSpace(req.Token)
		if token == "" || len(token) > 4096 {
			e.fail(w, r, fmt.Errorf("%w: push token is empty or too long", plants.ErrInvalid))
			return
		}
		var err error
		if r.Method == http.MethodPost {
			err = e.DB.AddPushToken(r.Context(), currentUser(r), token)
		} else {
			err = e.DB.RemovePushToken(r.Context(), currentUser(r), token)
		}
		if err != nil {
			e.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CalendarSync turns the Google Calendar sync on or off. Turning it on
// creates the calendar and pushes every task before answering.
func (e *Env) CalendarSync() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if e.Calendar == nil {
			e.fail(w, r, errDisabled)
			return
		}
		var req messages.JsonCalendar
		if err := decode(r, &req); err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)
		var err error
		if req.Enabled {
			err = e.Calendar.Enable(r.Context(), userId)
		} else {
			err = e.Calendar.Disable(r.Context(), userId)
		}
		if err != nil {
			e.fail(w, r, upstream(err))
			return
		}
		s, err := e.DB.GetSettings(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, s)
	}
}
