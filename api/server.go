package main

import (
	"encoding/json"
	"github.com/mgmu/greenhouse/api/handlers"
	"github.com/mgmu/greenhouse/internal/logging"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
	"github.com/mgmu/greenhouse/web"
	"net/http"
)

// routes registers the URL handlers of the API and the frontend bundle. Every
// "/api/" route requires a session.
func routes(e *handlers.Env, staticDir string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", e.Health())
	mux.HandleFunc("/auth/google/login", e.GoogleLogin())
	mux.HandleFunc("/auth/google/callback", e.GoogleCallback())
	mux.HandleFunc("/auth/logout", e.Logout())

	api := func(pattern string, h func(http.ResponseWriter, *http.Request)) {
		mux.Handle(pattern, e.Sessions.Require(http.HandlerFunc(h)))
	}
	api("/api/me", e.Me())
	api("/api/settings", e.Settings())
	api("/api/settings/push-tokens", e.PushTokens())
	api("/api/settings/calendar", e.CalendarSync())
	api("/api/task-templates", e.TaskTemplates())

	api("/api/plants/{$}", e.Plants())
	api("/api/plants/{id}/{$}", e.Plant())
	api("/api/plants/{id}/tasks/{$}", e.PlantTasks())
	api("/api/plants/{id}/photos/{$}", e.PlantPhotos())
	api("/api/plants/{id}/notes/{$}", e.PlantNotes())
	api("/api/plants/{id}/tags/{$}", e.PlantTags())

	api("/api/tasks/due/{$}", e.DueTasks())
	api("/api/tasks/{id}/{$}", e.Task())
	api("/api/tasks/{id}/complete/{$}", e.CompleteTask())
	api("/api/tasks/{id}/snooze/{$}", e.SnoozeTask())

	api("/api/photos/{id}/{$}", e.Photo())
	api("/api/photos/{id}/cover/{$}", e.PhotoCover())
	api("/api/notes/{id}/{$}", e.Note())
	api("/api/tags/{$}", e.Tags())

	api("/api/gifts/{$}", e.Gifts())
	api("/api/gifts/{id}/accept/{$}", e.GiftAction(plants.ActionAccept))
	api("/api/gifts/{id}/decline/{$}", e.GiftAction(plants.ActionDecline))
	api("/api/gifts/{id}/cancel/{$}", e.GiftAction(plants.ActionCancel))
	api("/api/gift-invites/{token}/{$}", e.GiftInvite())

	api("/api/identify/{$}", e.Identify())

	// unknown API paths must not get the frontend
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(messages.JsonError{Error: "not found"})
	})
	mux.Handle("/", web.Handler(staticDir))

	return logging.Middleware(e.Log, mux)
}
