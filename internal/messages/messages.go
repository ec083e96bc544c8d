// Package messages holds the JSON bodies exchanged with the frontend that do
// not map one to one to a domain type.
package messages

import (
	"github.com/mgmu/greenhouse/internal/plants"
	"github.com/mgmu/greenhouse/internal/tasks"
)

// JsonPlant is the body of a plant creation or update. Tags and Tasks are
// only read on creation.
type JsonPlant struct {
	Name         string        `json:"name"`
	Species      string        `json:"species"`
	Location     string        `json:"location"`
	Light        string        `json:"light"`
	Water        string        `json:"water"`
	Humidity     string        `json:"humidity"`
	Soil         string        `json:"soil"`
	AcquiredOn   *plants.Date  `json:"acquired_on"`
	AcquiredFrom string        `json:"acquired_from"`
	Tags         []string      `json:"tags"`
	Tasks        []JsonNewTask `json:"tasks"`
}

// JsonNewTask adds a task of a template to a plant. A zero frequency takes
// the template default.
type JsonNewTask struct {
	TaskKey       string `json:"task_key"`
	FrequencyDays int    `json:"frequency_days"`
}

// JsonTaskUpdate changes the frequency of a task, or moves its next due date.
type JsonTaskUpdate struct {
	FrequencyDays int          `json:"frequency_days"`
	NextDueOn     *plants.Date `json:"next_due_on"`
}

type JsonSnooze struct {
	Days int `json:"days"`
}

type JsonNote struct {
	Body string `json:"body"`
}

type JsonTags struct {
	Tags []string `json:"tags"`
}

// JsonSettings is a partial update of the settings, missing fields are left
// as they are.
type JsonSettings struct {
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	NotifyHour           *int    `json:"notify_hour"`
	Timezone             *string `json:"timezone"`
	TutorialCompleted    *bool   `json:"tutorial_completed"`
}

type JsonPushToken struct {
	Token string `json:"token"`
}

type JsonCalendar struct {
	Enabled bool `json:"enabled"`
}

type JsonNewGift struct {
	PlantId       int    `json:"plant_id"`
	ReceiverEmail string `json:"receiver_email"`
	Message       string `json:"message"`
}

type JsonError struct {
	Error string `json:"error"`
}

// JsonMe describes the signed in user.
type JsonMe struct {
	User           plants.User         `json:"user"`
	Settings       plants.UserSettings `json:"settings"`
	GoogleLinked   bool                `json:"google_linked"`
	PendingGifts   int                 `json:"pending_gifts"`
	IdentifyOn     bool                `json:"identify_enabled"`
	PhotosOn       bool                `json:"photos_enabled"`
	NotificationOn bool                `json:"push_enabled"`
}

// JsonDueTask is a task of the attention list, with where it stands today.
type JsonDueTask struct {
	plants.PlantTask
	Status      tasks.Status `json:"status"`
	DaysOverdue int          `json:"days_overdue"`
}

// JsonAcceptedGift tells the receiver where the gifted plant now lives.
type JsonAcceptedGift struct {
	Gift    plants.PlantGift `json:"gift"`
	PlantId int              `json:"plant_id"`
}
