package handlers

import (
	"context"
	"github.com/mgmu/greenhouse/internal/auth"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
	"go.uber.org/zap"
	"net/http"
	"net/url"
)

// GoogleLogin redirects to the Google consent page.
func (e *Env) GoogleLogin() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if e.Google == nil {
			e.fail(w, r, errDisabled)
			return
		}
		state := auth.NewState(w, e.CookieSecure)
		http.Redirect(w, r, e.Google.LoginURL(state), http.StatusFound)
	}
}

// GoogleCallback completes the sign in: the user is created or refreshed,
// the Google token is kept for calendar sync, and a session cookie is set
// before going back to the frontend.
func (e *Env) GoogleCallback() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if e.Google == nil {
			e.fail(w, r, errDisabled)
			return
		}
		if !auth.CheckState(r) {
			writeJSON(w, r, http.StatusBadRequest, messages.JsonError{Error: "invalid oauth state"})
			return
		}
		if reason := r.URL.Query().Get("error"); reason != "" {
			http.Redirect(w, r, "/?login_error="+url.QueryEscape(reason), http.StatusFound)
			return
		}

		profile, tok, err := e.Google.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			e.fail(w, r, upstream(err))
			return
		}
		user, err := e.DB.UpsertUser(r.Context(), plants.User{
			GoogleId:  profile.GoogleId,
			Email:     profile.Email,
			Name:      profile.Name,
			AvatarUrl: profile.AvatarUrl,
		})
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if err := e.DB.SaveGoogleToken(r.Context(), user.Id, auth.ToGoogleToken(tok)); err != nil {
			e.fail(w, r, err)
			return
		}

		session, err := e.Sessions.Issue(user.Id)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		e.Sessions.SetSessionCookie(w, session, e.CookieSecure)
		e.Log.Info("signed in", zap.Int("user", user.Id))

		if e.Calendar != nil {
			// a new refresh token may revive a sync that was failing
			e.background("calendar sync", user.Id, func(ctx context.Context) error {
				return e.Calendar.SyncUser(ctx, user.Id)
			})
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func (e *Env) Logout() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		auth.ClearSessionCookie(w, e.CookieSecure)
		w.WriteHeader(http.StatusNoContent)
	}
}

// Me describes the signed in user, its settings and which features are on.
func (e *Env) Me() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
			return
		}
		userId := currentUser(r)
		user, err := e.DB.GetUser(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		settings, err := e.DB.GetSettings(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		gifts, err := e.DB.GetGifts(r.Context(), user)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		pending := 0
		for _, g := range gifts {
			if g.Status == plants.GiftPending && g.IsReceiver(user) {
				pending++
			}
		}
		_, tokErr := e.DB.GetGoogleToken(r.Context(), userId)

		writeJSON(w, r, http.StatusOK, messages.JsonMe{
			User:           user,
			Settings:       settings,
			GoogleLinked:   tokErr == nil,
			PendingGifts:   pending,
			IdentifyOn:     e.Identifier != nil,
			PhotosOn:       e.Photos != nil,
			NotificationOn: e.PushEnabled,
		})
	}
}
