package database

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mgmu/greenhouse/internal/plants"
	"time"
)

// UpsertUser inserts the user signing in with Google for the first time, or
// refreshes the profile of a known one. Gifts sent to the email before the
// account existed are attached to it.
func (db *PostgresDatabase) UpsertUser(ctx context.Context, u plants.User) (plants.User, error) {
	row := db.pool.QueryRow(
		ctx,
		`
INSERT INTO app_user (google_id, email, name, avatar_url)
VALUES ($1, lower($2), $3, $4)
ON CONFLICT (google_id) DO UPDATE
SET email = EXCLUDED.email, name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url
RETURNING id, google_id, email, name, avatar_url, created_at;`,
		u.GoogleId,
		u.Email,
		u.Name,
		u.AvatarUrl,
	)
	var out plants.User
	err := row.Scan(&out.Id, &out.GoogleId, &out.Email, &out.Name, &out.AvatarUrl, &out.CreatedAt)
	if err != nil {
		return plants.User{}, translate(err)
	}

	_, err = db.pool.Exec(
		ctx,
		`
UPDATE plant_gift SET receiver_id = $1
WHERE receiver_id IS NULL AND lower(receiver_email) = $2;`,
		out.Id,
		out.Email,
	)
	if err != nil {
		return plants.User{}, translate(err)
	}
	return out, nil
}

func (db *PostgresDatabase) GetUser(ctx context.Context, id int) (plants.User, error) {
	return scanUser(db.pool.QueryRow(
		ctx,
		"SELECT id, google_id, email, name, avatar_url, created_at FROM app_user WHERE id=$1;",
		id,
	))
}

func scanUser(row pgx.Row) (plants.User, error) {
	var u plants.User
	err := row.Scan(&u.Id, &u.GoogleId, &u.Email, &u.Name, &u.AvatarUrl, &u.CreatedAt)
	if err != nil {
		return plants.User{}, translate(err)
	}
	return u, nil
}

const settingsColumns = `user_id, push_tokens, notifications_enabled, notify_hour, timezone,
calendar_sync_enabled, calendar_id, tutorial_completed, notification_cursor, last_notified_on`

func scanSettings(row pgx.Row) (plants.UserSettings, error) {
	var s plants.UserSettings
	var lastNotified pgtype.Date
	err := row.Scan(
		&s.UserId,
		&s.PushTokens,
		&s.NotificationsEnabled,
		&s.NotifyHour,
		&s.Timezone,
		&s.CalendarSyncEnabled,
		&s.CalendarId,
		&s.TutorialCompleted,
		&s.NotificationCursor,
		&lastNotified,
	)
	if err != nil {
		return plants.UserSettings{}, err
	}
	s.LastNotifiedOn = dateFrom(lastNotified)
	return s, nil
}

// GetSettings returns the settings of the user, the defaults when the user
// never saved any.
func (db *PostgresDatabase) GetSettings(ctx context.Context, userId int) (plants.UserSettings, error) {
	s, err := scanSettings(db.pool.QueryRow(
		ctx,
		"SELECT "+settingsColumns+" FROM user_settings WHERE user_id=$1;",
		userId,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return plants.DefaultSettings(userId), nil
	}
	if err != nil {
		return plants.UserSettings{}, translate(err)
	}
	return s, nil
}

// ensureSettings creates the settings row of the user if it is missing.
func ensureSettings(ctx context.Context, q querier, userId int) error {
	_, err := q.Exec(
		ctx,
		"INSERT INTO user_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING;",
		userId,
	)
	return translate(err)
}

// UpdateSettings saves the user editable settings. Tokens, calendar and
// reminder cycle state have their own methods.
func (db *PostgresDatabase) UpdateSettings(ctx context.Context, s plants.UserSettings) error {
	if err := ensureSettings(ctx, db.pool, s.UserId); err != nil {
		return err
	}
	return expectOne(db.pool.Exec(
		ctx,
		`
UPDATE user_settings
SET notifications_enabled = $2, notify_hour = $3, timezone = $4, tutorial_completed = $5
WHERE user_id = $1;`,
		s.UserId,
		s.NotificationsEnabled,
		s.NotifyHour,
		s.Timezone,
		s.TutorialCompleted,
	))
}

func (db *PostgresDatabase) AddPushToken(ctx context.Context, userId int, token string) error {
	if err := ensureSettings(ctx, db.pool, userId); err != nil {
		return err
	}
	return expectOne(db.pool.Exec(
		ctx,
		`
UPDATE user_settings
SET push_tokens = array_append(array_remove(push_tokens, $2), $2)
WHERE user_id = $1;`,
		userId,
		token,
	))
}

func (db *PostgresDatabase) RemovePushToken(ctx context.Context, userId int, token string) error {
	_, err := db.pool.Exec(
		ctx,
		"UPDATE user_settings SET push_tokens = array_remove(push_tokens, $2) WHERE user_id = $1;",
		userId,
		token,
	)
	return translate(err)
}

func (db *PostgresDatabase) SetCalendarSync(ctx context.Context, userId int, enabled bool, calendarId string) error {
	if err := ensureSettings(ctx, db.pool, userId); err != nil {
		return err
	}
	return expectOne(db.pool.Exec(
		ctx,
		"UPDATE user_settings SET calendar_sync_enabled = $2, calendar_id = $3 WHERE user_id = $1;",
		userId,
		enabled,
		calendarId,
	))
}

func (db *PostgresDatabase) GetGoogleToken(ctx context.Context, userId int) (plants.GoogleToken, error) {
	row := db.pool.QueryRow(
		ctx,
		`
SELECT google_access_token, google_refresh_token, google_token_expiry
FROM user_settings WHERE user_id = $1;`,
		userId,
	)
	var tok plants.GoogleToken
	var expiry pgtype.Timestamptz
	if err := row.Scan(&tok.AccessToken, &tok.RefreshToken, &expiry); err != nil {
		return plants.GoogleToken{}, translate(err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return plants.GoogleToken{}, ErrNotFound
	}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	return tok, nil
}

// SaveGoogleToken keeps the previous refresh token when tok has none, as
// Google only sends it on the first consent.
func (db *PostgresDatabase) SaveGoogleToken(ctx context.Context, userId int, tok plants.GoogleToken) error {
	if err := ensureSettings(ctx, db.pool, userId); err != nil {
		return err
	}
	return expectOne(db.pool.Exec(
		ctx,
		`
UPDATE user_settings
SET google_access_token = $2,
    google_refresh_token = COALESCE(NULLIF($3, ''), google_refresh_token),
    google_token_expiry = $4
WHERE user_id = $1;`,
		userId,
		tok.AccessToken,
		tok.RefreshToken,
		timeArg(tok.Expiry),
	))
}

// MarkNotified records that a reminder went out on the given day and where
// the round robin continues.
func (db *PostgresDatabase) MarkNotified(ctx context.Context, userId, cursor int, on plants.Date) error {
	return expectOne(db.pool.Exec(
		ctx,
		"UPDATE user_settings SET notification_cursor = $2, last_notified_on = $3 WHERE user_id = $1;",
		userId,
		cursor,
		on.Time,
	))
}

// ListNotifiableUsers returns the settings of the users that want reminders
// and have at least one device registered.
func (db *PostgresDatabase) ListNotifiableUsers(ctx context.Context) ([]plants.UserSettings, error) {
	return db.listSettings(ctx, "notifications_enabled AND cardinality(push_tokens) > 0")
}

// ListCalendarUsers returns the settings of the users syncing their tasks to
// Google Calendar.
func (db *PostgresDatabase) ListCalendarUsers(ctx context.Context) ([]plants.UserSettings, error) {
	return db.listSettings(ctx, "calendar_sync_enabled")
}

func (db *PostgresDatabase) listSettings(ctx context.Context, where string) ([]plants.UserSettings, error) {
	rows, _ := db.pool.Query(
		ctx,
		"SELECT "+settingsColumns+" FROM user_settings WHERE "+where+" ORDER BY user_id;",
	)
	settings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (plants.UserSettings, error) {
		return scanSettings(row)
	})
	if err != nil {
		return nil, translate(err)
	}
	return settings, nil
}

func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
