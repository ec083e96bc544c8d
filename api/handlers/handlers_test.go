package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mgmu/greenhouse/api/database"
	"github.com/mgmu/greenhouse/internal/auth"
	"github.com/mgmu/greenhouse/internal/identify"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/photos"
	"github.com/mgmu/greenhouse/internal/plants"
)

var (
	now   = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	today = plants.NewDate(2024, time.June, 10)
)

// newEnv returns an environment whose background work runs before the
// handler returns.
func newEnv(db *MockDatabase) *Env {
	return &Env{
		DB:        db,
		Log:       zap.NewNop(),
		Sessions:  auth.NewSessions("test-secret", time.Hour),
		Now:       func() time.Time { return now },
		Spawn:     func(f func()) { f() },
		MaxUpload: 1 << 20,
		BaseURL:   "https://greenhouse.example/",
	}
}

// serve runs h for user 1. pathValues are name/value pairs.
func serve(h func(http.ResponseWriter, *http.Request), req *http.Request, pathValues ...string) *httptest.ResponseRecorder {
	req = req.WithContext(auth.WithUserID(req.Context(), 1))
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target, field string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(field, "upload")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeAs[messages.JsonError](t, rec).Error
}

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: name is empty", plants.ErrInvalid), http.StatusBadRequest},
		{plants.ErrGiftToSelf, http.StatusBadRequest},
		{fmt.Errorf("%w: text/plain", photos.ErrNotImage), http.StatusBadRequest},
		{database.ErrNotFound, http.StatusNotFound},
		{plants.ErrGiftForbidden, http.StatusNotFound},
		{errDisabled, http.StatusNotFound},
		{database.ErrConflict, http.StatusConflict},
		{plants.ErrGiftNotPending, http.StatusConflict},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{upstream(errors.New("quota exceeded")), http.StatusBadGateway},
		{identify.ErrNoAnswer, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestUpstreamKeepsKnownErrors(t *testing.T) {
	assert.ErrorIs(t, upstream(database.ErrNotFound), database.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, statusFor(upstream(database.ErrNotFound)))
}

func TestFailHidesInternalErrors(t *testing.T) {
	e := newEnv(&MockDatabase{})
	rec := httptest.NewRecorder()
	e.fail(rec, httptest.NewRequest(http.MethodGet, "/api/plants/", nil), errors.New("connection refused by 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", errorOf(t, rec))
}

func TestHealth(t *testing.T) {
	db := &MockDatabase{PingFunc: func(ctx context.Context) error { return nil }}
	e := newEnv(db)

	rec := serve(e.Health(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	db.PingFunc = func(ctx context.Context) error { return errors.New("down") }
	rec = serve(e.Health(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHeadHasNoBody(t *testing.T) {
	db := &MockDatabase{PingFunc: func(ctx context.Context) error { return nil }}
	rec := serve(newEnv(db).Health(), httptest.NewRequest(http.MethodHead, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestGoogleCallback(t *testing.T) {
	var saved plants.GoogleToken
	db := &MockDatabase{
		UpsertUserFunc: func(ctx context.Context, u plants.User) (plants.User, error) {
			assert.Equal(t, "g-42", u.GoogleId)
			u.Id = 1
			return u, nil
		},
		SaveGoogleTokenFunc: func(ctx context.Context, userId int, tok plants.GoogleToken) error {
			saved = tok
			return nil
		},
	}
	cal := &MockCalendar{}
	e := newEnv(db)
	e.Calendar = cal
	e.Google = &MockGoogle{
		Profile: auth.Profile{GoogleId: "g-42", Email: "ana@example.com", Name: "Ana"},
		Token:   &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1&code=c1", nil)
	req.AddCookie(&http.Cookie{Name: "greenhouse_oauth_state", Value: "s1"})
	rec := serve(e.GoogleCallback(), req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), auth.SessionCookie+"=")
	assert.Equal(t, "rt", saved.RefreshToken)
	assert.Equal(t, []int{1}, cal.SyncedUsers)
}

func TestGoogleCallbackRejectsState(t *testing.T) {
	e := newEnv(&MockDatabase{})
	e.Google = &MockGoogle{}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s2&code=c1", nil)
	req.AddCookie(&http.Cookie{Name: "greenhouse_oauth_state", Value: "s1"})
	rec := serve(e.GoogleCallback(), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGoogleCallbackDenied(t *testing.T) {
	e := newEnv(&MockDatabase{})
	e.Google = &MockGoogle{}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1&error=access_denied", nil)
	req.AddCookie(&http.Cookie{Name: "greenhouse_oauth_state", Value: "s1"})
	rec := serve(e.GoogleCallback(), req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?login_error=access_denied", rec.Header().Get("Location"))
}

func TestGoogleCallbackExchangeFails(t *testing.T) {
	e := newEnv(&MockDatabase{})
	e.Google = &MockGoogle{Err: errors.New("invalid_grant")}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1&code=c1", nil)
	req.AddCookie(&http.Cookie{Name: "greenhouse_oauth_state", Value: "s1"})
	rec := serve(e.GoogleCallback(), req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGoogleLoginDisabled(t *testing.T) {
	rec := serve(newEnv(&MockDatabase{}).GoogleLogin(), httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoogleLogin(t *testing.T) {
	e := newEnv(&MockDatabase{})
	e.Google = &MockGoogle{}

	rec := serve(e.GoogleLogin(), httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://accounts.example/auth?state="))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "greenhouse_oauth_state=")
}

func TestLogout(t *testing.T) {
	rec := serve(newEnv(&MockDatabase{}).Logout(), httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestMe(t *testing.T) {
	me := plants.User{Id: 1, Email: "ana@example.com", Name: "Ana"}
	db := &MockDatabase{
		GetUserFunc: func(ctx context.Context, id int) (plants.User, error) { return me, nil },
		GetGiftsFunc: func(ctx context.Context, u plants.User) ([]plants.PlantGift, error) {
			return []plants.PlantGift{
				{Id: 1, SenderId: 2, ReceiverEmail: "ana@example.com", Status: plants.GiftPending},
				{Id: 2, SenderId: 1, ReceiverEmail: "bo@example.com", Status: plants.GiftPending},
				{Id: 3, SenderId: 3, ReceiverEmail: "ana@example.com", Status: plants.GiftDeclined},
			}, nil
		},
	}
	e := newEnv(db)
	e.Photos = &MockPhotoStore{}

	rec := serve(e.Me(), httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeAs[messages.JsonMe](t, rec)
	assert.Equal(t, "Ana", got.User.Name)
	assert.Equal(t, 1, got.PendingGifts)
	assert.False(t, got.GoogleLinked)
	assert.True(t, got.PhotosOn)
	assert.False(t, got.IdentifyOn)
	assert.Equal(t, 9, got.Settings.NotifyHour)
}

func TestSettingsPartialUpdate(t *testing.T) {
	var updated plants.UserSettings
	db := &MockDatabase{
		UpdateSettingsFunc: func(ctx context.Context, s plants.UserSettings) error {
			updated = s
			return nil
		},
	}
	e := newEnv(db)

	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"notify_hour": 7, "timezone": " Europe/Paris "}`))
	rec := serve(e.Settings(), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 7, updated.NotifyHour)
	assert.Equal(t, "Europe/Paris", updated.Timezone)
	assert.True(t, updated.NotificationsEnabled)
}

func TestSettingsRejectsInvalid(t *testing.T) {
	e := newEnv(&MockDatabase{})
	for _, body := range []string{`{"notify_hour": 24}`, `{"timezone": "Mars/Olympus"}`, `{"notify_hour": `} {
		rec := serve(e.Settings(), httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestPushTokens(t *testing.T) {
	var added, removed []string
	db := &MockDatabase{
		AddPushTokenFunc: func(ctx context.Context, userId int, token string) error {
			added = append(added, token)
			return nil
		},
		RemovePushTokenFunc: func(ctx context.Context, userId int, token string) error {
			removed = append(removed, token)
			return nil
		},
	}
	e := newEnv(db)

	rec := serve(e.PushTokens(), jsonRequest(t, http.MethodPost, "/api/settings/push-tokens", messages.JsonPushToken{Token: " tok-1 "}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e.PushTokens(), jsonRequest(t, http.MethodDelete, "/api/settings/push-tokens", messages.JsonPushToken{Token: "tok-1"}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e.PushTokens(), jsonRequest(t, http.MethodPost, "/api/settings/push-tokens", messages.JsonPushToken{Token: "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"tok-1"}, added)
	assert.Equal(t, []string{"tok-1"}, removed)
}

func TestCalendarSync(t *testing.T) {
	e := newEnv(&MockDatabase{})
	body := messages.JsonCalendar{Enabled: true}

	rec := serve(e.CalendarSync(), jsonRequest(t, http.MethodPost, "/api/settings/calendar", body))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cal := &MockCalendar{}
	e.Calendar = cal
	rec = serve(e.CalendarSync(), jsonRequest(t, http.MethodPost, "/api/settings/calendar", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{1}, cal.Enabled)

	cal.Err = errors.New("token has been revoked")
	rec = serve(e.CalendarSync(), jsonRequest(t, http.MethodPost, "/api/settings/calendar", messages.JsonCalendar{}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, []int{1}, cal.Disabled)
}

func TestIdentify(t *testing.T) {
	db := &MockDatabase{
		GetTaskTemplatesFunc: func(ctx context.Context) ([]plants.TaskTemplate, error) {
			return []plants.TaskTemplate{{Key: "water", Label: "Water", DefaultFrequencyDays: 7}}, nil
		},
	}
	e := newEnv(db)

	rec := serve(e.Identify(), multipartRequest(t, "/api/identify/", "image", pngData, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := &MockIdentifier{Result: identify.Identification{Species: "Monstera deliciosa", Confidence: 0.9}}
	e.Identifier = id
	rec = serve(e.Identify(), multipartRequest(t, "/api/identify/", "image", pngData, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Monstera deliciosa", decodeAs[identify.Identification](t, rec).Species)
	assert.Equal(t, "image/png", id.Mime)

	rec = serve(e.Identify(), multipartRequest(t, "/api/identify/", "image", []byte("not an image at all"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id.Err = errors.New("resource exhausted")
	rec = serve(e.Identify(), multipartRequest(t, "/api/identify/", "image", pngData, nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
