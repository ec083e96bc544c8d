package plants

import "time"

// User is an account created on first Google sign-in.
type User struct {
	Id        int       `json:"id"`
	GoogleId  string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarUrl string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// PlantShortDesc type encapsulates the short description of a plant, as shown
// in the plants list: its identifier, names, cover photo and the earliest due
// date among its tasks.
type PlantShortDesc struct {
	Id            int    `json:"id"`
	Name          string `json:"name"`
	Species       string `json:"species"`
	CoverPhotoUrl string `json:"cover_photo_url"`
	NextDueOn     *Date  `json:"next_due_on"`
	Tags          []Tag  `json:"tags"`
}

// Represents a plant by its names, its care attributes, how it was acquired
// and its children: tasks, photos, notes and tags.
type Plant struct {
	Id            int          `json:"id"`
	UserId        int          `json:"user_id"`
	Name          string       `json:"name"`
	Species       string       `json:"species"`
	Location      string       `json:"location"`
	Light         string       `json:"light"`
	Water         string       `json:"water"`
	Humidity      string       `json:"humidity"`
	Soil          string       `json:"soil"`
	AcquiredOn    *Date        `json:"acquired_on"`
	AcquiredFrom  string       `json:"acquired_from"`
	CoverPhotoUrl string       `json:"cover_photo_url"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Tasks         []PlantTask  `json:"tasks"`
	Photos        []PlantPhoto `json:"photos"`
	Notes         []PlantNote  `json:"notes"`
	Tags          []Tag        `json:"tags"`
}

// PlantTask is a recurring care action on a plant. PlantName, TaskLabel and
// TaskColor are filled in by queries that join the plant and the template.
type PlantTask struct {
	Id              int       `json:"id"`
	PlantId         int       `json:"plant_id"`
	TaskKey         string    `json:"task_key"`
	FrequencyDays   int       `json:"frequency_days"`
	LastCompletedOn *Date     `json:"last_completed_on"`
	NextDueOn       Date      `json:"next_due_on"`
	CalendarEventId string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	PlantName       string    `json:"plant_name,omitempty"`
	TaskLabel       string    `json:"task_label,omitempty"`
	TaskColor       string    `json:"task_color,omitempty"`
}

// PlantPhoto is an image hosted by the photo store. PublicId identifies it
// there and is needed to delete it.
type PlantPhoto struct {
	Id        int       `json:"id"`
	PlantId   int       `json:"plant_id"`
	Url       string    `json:"url"`
	PublicId  string    `json:"-"`
	Caption   string    `json:"caption"`
	TakenOn   time.Time `json:"taken_on"`
	CreatedAt time.Time `json:"created_at"`
}

// Represents a plant note (a log entry) by the plant to which it belongs, its
// identifier and its body.
type PlantNote struct {
	Id        int       `json:"id"`
	PlantId   int       `json:"plant_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag names are unique per user.
type Tag struct {
	Id     int    `json:"id"`
	UserId int    `json:"-"`
	Name   string `json:"name"`
}

// TaskTemplate is a global catalog entry for a kind of task.
type TaskTemplate struct {
	Key                  string `json:"key"`
	Label                string `json:"label"`
	Color                string `json:"color"`
	DefaultFrequencyDays int    `json:"default_frequency_days"`
}

// UserSettings holds per user preferences and the state of the reminder
// cycle.
type UserSettings struct {
	UserId               int      `json:"-"`
	PushTokens           []string `json:"-"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
	NotifyHour           int      `json:"notify_hour"`
	Timezone             string   `json:"timezone"`
	CalendarSyncEnabled  bool     `json:"calendar_sync_enabled"`
	CalendarId           string   `json:"-"`
	TutorialCompleted    bool     `json:"tutorial_completed"`
	NotificationCursor   int      `json:"-"`
	LastNotifiedOn       *Date    `json:"-"`
}

// DefaultSettings returns the settings of a user that never changed them.
func DefaultSettings(userId int) UserSettings {
	return UserSettings{
		UserId:               userId,
		PushTokens:           []string{},
		NotificationsEnabled: true,
		NotifyHour:           9,
		Timezone:             "UTC",
	}
}

// Location returns the time zone of the user, UTC when it can not be loaded.
func (s UserSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GoogleToken is the OAuth token kept to act on the user's calendar.
type GoogleToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
