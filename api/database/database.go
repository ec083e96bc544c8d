package database

import (
	"context"
	"errors"

	"github.com/mgmu/greenhouse/internal/plants"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("database: not found")
	// ErrConflict is returned when a write breaks a uniqueness rule.
	ErrConflict = errors.New("database: conflict")
)

// Database defines the API to store and retrieve plants and related data from a
// database. Every plant scoped method takes the identifier of the user acting
// and only sees that user's rows.
type Database interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error

	UpsertUser(ctx context.Context, u plants.User) (plants.User, error)
	GetUser(ctx context.Context, id int) (plants.User, error)

	GetSettings(ctx context.Context, userId int) (plants.UserSettings, error)
	UpdateSettings(ctx context.Context, s plants.UserSettings) error
	AddPushToken(ctx context.Context, userId int, token string) error
	RemovePushToken(ctx context.Context, userId int, token string) error
	SetCalendarSync(ctx context.Context, userId int, enabled bool, calendarId string) error
	GetGoogleToken(ctx context.Context, userId int) (plants.GoogleToken, error)
	SaveGoogleToken(ctx context.Context, userId int, tok plants.GoogleToken) error
	MarkNotified(ctx context.Context, userId, cursor int, on plants.Date) error
	ListNotifiableUsers(ctx context.Context) ([]plants.UserSettings, error)
	ListCalendarUsers(ctx context.Context) ([]plants.UserSettings, error)

	GetTaskTemplates(ctx context.Context) ([]plants.TaskTemplate, error)
	GetTaskTemplate(ctx context.Context, key string) (plants.TaskTemplate, error)

	GetPlantsShortDescription(ctx context.Context, userId int) ([]plants.PlantShortDesc, error)
	GetPlant(ctx context.Context, userId, plantId int) (plants.Plant, error)
	CheckPlantOwner(ctx context.Context, userId, plantId int) error
	AddNewPlant(ctx context.Context, p plants.Plant) (int, error)
	UpdatePlant(ctx context.Context, p plants.Plant) error
	DeletePlant(ctx context.Context, userId, plantId int) error

	GetPlantTasks(ctx context.Context, userId, plantId int) ([]plants.PlantTask, error)
	GetUserTasks(ctx context.Context, userId int) ([]plants.PlantTask, error)
	GetTask(ctx context.Context, userId, taskId int) (plants.PlantTask, error)
	AddNewTask(ctx context.Context, userId int, t plants.PlantTask) (int, error)
	UpdateTask(ctx context.Context, userId int, t plants.PlantTask) error
	DeleteTask(ctx context.Context, userId, taskId int) error
	SetTaskCalendarEvent(ctx context.Context, taskId int, eventId string) error
	ClearCalendarEvents(ctx context.Context, userId int) error

	AddNewPhoto(ctx context.Context, userId int, ph plants.PlantPhoto) (int, error)
	GetPhoto(ctx context.Context, userId, photoId int) (plants.PlantPhoto, error)
	DeletePhoto(ctx context.Context, userId, photoId int) error
	SetCoverPhoto(ctx context.Context, userId, photoId int) error

	AddNewPlantNote(ctx context.Context, userId int, n plants.PlantNote) (int, error)
	DeletePlantNote(ctx context.Context, userId, noteId int) error

	GetTags(ctx context.Context, userId int) ([]plants.Tag, error)
	SetPlantTags(ctx context.Context, userId, plantId int, names []string) ([]plants.Tag, error)

	CreateGift(ctx context.Context, g plants.PlantGift) (int, error)
	GetGift(ctx context.Context, giftId int) (plants.PlantGift, error)
	GetGiftByToken(ctx context.Context, token string) (plants.PlantGift, error)
	GetGifts(ctx context.Context, u plants.User) ([]plants.PlantGift, error)
	AcceptGift(ctx context.Context, receiver plants.User, giftId int) (plants.GiftTransfer, error)
	SetGiftStatus(ctx context.Context, giftId int, status string) error
}
