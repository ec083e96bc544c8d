package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/mgmu/greenhouse/api/database"
	"github.com/mgmu/greenhouse/internal/auth"
	"github.com/mgmu/greenhouse/internal/identify"
	"github.com/mgmu/greenhouse/internal/mail"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/photos"
	"github.com/mgmu/greenhouse/internal/plants"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"io"
	"net/http"
	"strconv"
	"time"
)

var (
	notAllowed = "Method not allowed"

	// errUpstream is wrapped around failures of the third party services.
	errUpstream = errors.New("upstream service failed")
	// errDisabled is returned by the routes of an integration that is not
	// configured.
	errDisabled = errors.New("feature is not configured")
)

type GoogleAuth interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (auth.Profile, *oauth2.Token, error)
}

type Calendar interface {
	Enable(ctx context.Context, userId int) error
	Disable(ctx context.Context, userId int) error
	SyncUser(ctx context.Context, userId int) error
	SyncTask(ctx context.Context, userId int, t plants.PlantTask) error
	DeleteTaskEvents(ctx context.Context, userId int, tasks []plants.PlantTask) error
}

type PhotoStore interface {
	Upload(ctx context.Context, userId int, data []byte) (photos.Stored, error)
	Delete(ctx context.Context, publicId string) error
}

type Identifier interface {
	Identify(ctx context.Context, image []byte, mimeType string, templates []plants.TaskTemplate) (identify.Identification, error)
}

type GiftMailer interface {
	SendGiftInvite(invite mail.GiftInvite) error
}

// Env encapsulates what the URL handlers need. The integrations are optional,
// a nil one disables its routes or its side effects.
type Env struct {
	DB           database.Database
	Log          *zap.Logger
	Sessions     *auth.Sessions
	Google       GoogleAuth
	Calendar     Calendar
	Photos       PhotoStore
	Identifier   Identifier
	Mailer       GiftMailer
	PushEnabled  bool
	Now          func() time.Time
	Spawn        func(func()) // runs background work, a goroutine when nil
	MaxUpload    int64
	BaseURL      string
	CookieSecure bool
}

// today returns the current day in the timezone of the user.
func (e *Env) today(ctx context.Context, userId int) (plants.Date, error) {
	s, err := e.DB.GetSettings(ctx, userId)
	if err != nil {
		return plants.Date{}, err
	}
	return plants.DateOf(e.Now().In(s.Location())), nil
}

// currentUser returns the identifier put in the context by the session
// middleware.
func currentUser(r *http.Request) int {
	id, _ := auth.UserID(r.Context())
	return id
}

func pathId(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad identifier %q", plants.ErrInvalid, r.PathValue("id"))
	}
	return id, nil
}

// decode reads the JSON body of r into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", plants.ErrInvalid, err)
	}
	return nil
}

// writeJSON sends v with the given status. The body is omitted for HEAD
// requests.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	writeJSON(w, r, http.StatusMethodNotAllowed, messages.JsonError{Error: notAllowed})
}

// statusFor maps the errors of the lower layers to a status code.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, plants.ErrInvalid),
		errors.Is(err, plants.ErrGiftToSelf),
		errors.Is(err, photos.ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, plants.ErrGiftForbidden),
		errors.Is(err, errDisabled):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict),
		errors.Is(err, plants.ErrGiftNotPending):
		return http.StatusConflict
	case errors.Is(err, errUpstream),
		errors.Is(err, identify.ErrNoAnswer):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail sends err to the client with the matching status. Unexpected errors
// are logged and their text is not sent.
func (e *Env) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		e.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	case http.StatusBadGateway:
		e.Log.Warn("upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, r, status, messages.JsonError{Error: msg})
}

// upstream marks err as a failure of a third party service, unless it
// already maps to a status of its own.
func upstream(err error) error {
	if statusFor(err) != http.StatusInternalServerError {
		return err
	}
	return fmt.Errorf("%w: %v", errUpstream, err)
}

// background runs f after the response, with a context that outlives the
// request. Its failure is only logged.
func (e *Env) background(what string, userId int, f func(ctx context.Context) error) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := f(ctx); err != nil {
			e.Log.Warn(what, zap.Int("user", userId), zap.Error(err))
		}
	}
	if e.Spawn != nil {
		e.Spawn(run)
		return
	}
	go run()
}

// syncTask updates the calendar event of the task, when sync is on.
func (e *Env) syncTask(userId int, t plants.PlantTask) {
	if e.Calendar == nil {
		return
	}
	e.background("calendar sync", userId, func(ctx context.Context) error {
		return e.Calendar.SyncTask(ctx, userId, t)
	})
}

func (e *Env) deleteEvents(userId int, tasks []plants.PlantTask) {
	if e.Calendar == nil || len(tasks) == 0 {
		return
	}
	e.background("calendar cleanup", userId, func(ctx context.Context) error {
		return e.Calendar.DeleteTaskEvents(ctx, userId, tasks)
	})
}

// Health answers the liveness probe, checking the database on the way.
func (e *Env) Health() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
			return
		}
		if err := e.DB.Ping(r.Context()); err != nil {
			e.Log.Error("health check", zap.Error(err))
			writeJSON(w, r, http.StatusServiceUnavailable, messages.JsonError{Error: "database unavailable"})
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
