package handlers

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/mgmu/greenhouse/api/database"
	"github.com/mgmu/greenhouse/internal/auth"
	"github.com/mgmu/greenhouse/internal/identify"
	"github.com/mgmu/greenhouse/internal/mail"
	"github.com/mgmu/greenhouse/internal/photos"
	"github.com/mgmu/greenhouse/internal/plants"
)

// MockDatabase implements database.Database with function fields. Calling a
// method whose field is nil panics through the nil embedded interface.
type MockDatabase struct {
	database.Database

	PingFunc             func(ctx context.Context) error
	UpsertUserFunc       func(ctx context.Context, u plants.User) (plants.User, error)
	GetUserFunc          func(ctx context.Context, id int) (plants.User, error)
	GetSettingsFunc      func(ctx context.Context, userId int) (plants.UserSettings, error)
	UpdateSettingsFunc   func(ctx context.Context, s plants.UserSettings) error
	AddPushTokenFunc     func(ctx context.Context, userId int, token string) error
	RemovePushTokenFunc  func(ctx context.Context, userId int, token string) error
	GetGoogleTokenFunc   func(ctx context.Context, userId int) (plants.GoogleToken, error)
	SaveGoogleTokenFunc  func(ctx context.Context, userId int, tok plants.GoogleToken) error
	GetTaskTemplatesFunc func(ctx context.Context) ([]plants.TaskTemplate, error)
	GetTaskTemplateFunc  func(ctx context.Context, key string) (plants.TaskTemplate, error)
	GetPlantsFunc        func(ctx context.Context, userId int) ([]plants.PlantShortDesc, error)
	GetPlantFunc         func(ctx context.Context, userId, plantId int) (plants.Plant, error)
	CheckPlantOwnerFunc  func(ctx context.Context, userId, plantId int) error
	AddNewPlantFunc      func(ctx context.Context, p plants.Plant) (int, error)
	UpdatePlantFunc      func(ctx context.Context, p plants.Plant) error
	DeletePlantFunc      func(ctx context.Context, userId, plantId int) error
	GetPlantTasksFunc    func(ctx context.Context, userId, plantId int) ([]plants.PlantTask, error)
	GetUserTasksFunc     func(ctx context.Context, userId int) ([]plants.PlantTask, error)
	GetTaskFunc          func(ctx context.Context, userId, taskId int) (plants.PlantTask, error)
	AddNewTaskFunc       func(ctx context.Context, userId int, t plants.PlantTask) (int, error)
	UpdateTaskFunc       func(ctx context.Context, userId int, t plants.PlantTask) error
	DeleteTaskFunc       func(ctx context.Context, userId, taskId int) error
	AddNewPhotoFunc      func(ctx context.Context, userId int, ph plants.PlantPhoto) (int, error)
	GetPhotoFunc         func(ctx context.Context, userId, photoId int) (plants.PlantPhoto, error)
	DeletePhotoFunc      func(ctx context.Context, userId, photoId int) error
	SetCoverPhotoFunc    func(ctx context.Context, userId, photoId int) error
	AddNewPlantNoteFunc  func(ctx context.Context, userId int, n plants.PlantNote) (int, error)
	DeletePlantNoteFunc  func(ctx context.Context, userId, noteId int) error
	GetTagsFunc          func(ctx context.Context, userId int) ([]plants.Tag, error)
	SetPlantTagsFunc     func(ctx context.Context, userId, plantId int, names []string) ([]plants.Tag, error)
	CreateGiftFunc       func(ctx context.Context, g plants.PlantGift) (int, error)
	GetGiftFunc          func(ctx context.Context, giftId int) (plants.PlantGift, error)
	GetGiftByTokenFunc   func(ctx context.Context, token string) (plants.PlantGift, error)
	GetGiftsFunc         func(ctx context.Context, u plants.User) ([]plants.PlantGift, error)
	AcceptGiftFunc       func(ctx context.Context, receiver plants.User, giftId int) (plants.GiftTransfer, error)
	SetGiftStatusFunc    func(ctx context.Context, giftId int, status string) error
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

func (m *MockDatabase) UpsertUser(ctx context.Context, u plants.User) (plants.User, error) {
	return m.UpsertUserFunc(ctx, u)
}

func (m *MockDatabase) GetUser(ctx context.Context, id int) (plants.User, error) {
	return m.GetUserFunc(ctx, id)
}

// GetSettings defaults to the settings of a new user.
func (m *MockDatabase) GetSettings(ctx context.Context, userId int) (plants.UserSettings, error) {
	if m.GetSettingsFunc != nil {
		return m.GetSettingsFunc(ctx, userId)
	}
	return plants.DefaultSettings(userId), nil
}

func (m *MockDatabase) UpdateSettings(ctx context.Context, s plants.UserSettings) error {
	return m.UpdateSettingsFunc(ctx, s)
}

func (m *MockDatabase) AddPushToken(ctx context.Context, userId int, token string) error {
	return m.AddPushTokenFunc(ctx, userId, token)
}

func (m *MockDatabase) RemovePushToken(ctx context.Context, userId int, token string) error {
	return m.RemovePushTokenFunc(ctx, userId, token)
}

func (m *MockDatabase) GetGoogleToken(ctx context.Context, userId int) (plants.GoogleToken, error) {
	if m.GetGoogleTokenFunc != nil {
		return m.GetGoogleTokenFunc(ctx, userId)
	}
	return plants.GoogleToken{}, database.ErrNotFound
}

func (m *MockDatabase) SaveGoogleToken(ctx context.Context, userId int, tok plants.GoogleToken) error {
	return m.SaveGoogleTokenFunc(ctx, userId, tok)
}

func (m *MockDatabase) GetTaskTemplates(ctx context.Context) ([]plants.TaskTemplate, error) {
	return m.GetTaskTemplatesFunc(ctx)
}

func (m *MockDatabase) GetTaskTemplate(ctx context.Context, key string) (plants.TaskTemplate, error) {
	return m.GetTaskTemplateFunc(ctx, key)
}

func (m *MockDatabase) GetPlantsShortDescription(ctx context.Context, userId int) ([]plants.PlantShortDesc, error) {
	return m.GetPlantsFunc(ctx, userId)
}

func (m *MockDatabase) GetPlant(ctx context.Context, userId, plantId int) (plants.Plant, error) {
	return m.GetPlantFunc(ctx, userId, plantId)
}

func (m *MockDatabase) CheckPlantOwner(ctx context.Context, userId, plantId int) error {
	return m.CheckPlantOwnerFunc(ctx, userId, plantId)
}

func (m *MockDatabase) AddNewPlant(ctx context.Context, p plants.Plant) (int, error) {
	return m.AddNewPlantFunc(ctx, p)
}

func (m *MockDatabase) UpdatePlant(ctx context.Context, p plants.Plant) error {
	return m.UpdatePlantFunc(ctx, p)
}

func (m *MockDatabase) DeletePlant(ctx context.Context, userId, plantId int) error {
	return m.DeletePlantFunc(ctx, userId, plantId)
}

func (m *MockDatabase) GetPlantTasks(ctx context.Context, userId, plantId int) ([]plants.PlantTask, error) {
	return m.GetPlantTasksFunc(ctx, userId, plantId)
}

func (m *MockDatabase) GetUserTasks(ctx context.Context, userId int) ([]plants.PlantTask, error) {
	return m.GetUserTasksFunc(ctx, userId)
}

func (m *MockDatabase) GetTask(ctx context.Context, userId, taskId int) (plants.PlantTask, error) {
	return m.GetTaskFunc(ctx, userId, taskId)
}

func (m *MockDatabase) AddNewTask(ctx context.Context, userId int, t plants.PlantTask) (int, error) {
	return m.AddNewTaskFunc(ctx, userId, t)
}

func (m *MockDatabase) UpdateTask(ctx context.Context, userId int, t plants.PlantTask) error {
	return m.UpdateTaskFunc(ctx, userId, t)
}

func (m *MockDatabase) DeleteTask(ctx context.Context, userId, taskId int) error {
	return m.DeleteTaskFunc(ctx, userId, taskId)
}

func (m *MockDatabase) AddNewPhoto(ctx context.Context, userId int, ph plants.PlantPhoto) (int, error) {
	return m.AddNewPhotoFunc(ctx, userId, ph)
}

func (m *MockDatabase) GetPhoto(ctx context.Context, userId, photoId int) (plants.PlantPhoto, error) {
	return m.GetPhotoFunc(ctx, userId, photoId)
}

func (m *MockDatabase) DeletePhoto(ctx context.Context, userId, photoId int) error {
	return m.DeletePhotoFunc(ctx, userId, photoId)
}

func (m *MockDatabase) SetCoverPhoto(ctx context.Context, userId, photoId int) error {
	return m.SetCoverPhotoFunc(ctx, userId, photoId)
}

func (m *MockDatabase) AddNewPlantNote(ctx context.Context, userId int, n plants.PlantNote) (int, error) {
	return m.AddNewPlantNoteFunc(ctx, userId, n)
}

func (m *MockDatabase) DeletePlantNote(ctx context.Context, userId, noteId int) error {
	return m.DeletePlantNoteFunc(ctx, userId, noteId)
}

func (m *MockDatabase) GetTags(ctx context.Context, userId int) ([]plants.Tag, error) {
	return m.GetTagsFunc(ctx, userId)
}

func (m *MockDatabase) SetPlantTags(ctx context.Context, userId, plantId int, names []string) ([]plants.Tag, error) {
	return m.SetPlantTagsFunc(ctx, userId, plantId, names)
}

func (m *MockDatabase) CreateGift(ctx context.Context, g plants.PlantGift) (int, error) {
	return m.CreateGiftFunc(ctx, g)
}

func (m *MockDatabase) GetGift(ctx context.Context, giftId int) (plants.PlantGift, error) {
	return m.GetGiftFunc(ctx, giftId)
}

func (m *MockDatabase) GetGiftByToken(ctx context.Context, token string) (plants.PlantGift, error) {
	return m.GetGiftByTokenFunc(ctx, token)
}

func (m *MockDatabase) GetGifts(ctx context.Context, u plants.User) ([]plants.PlantGift, error) {
	if m.GetGiftsFunc != nil {
		return m.GetGiftsFunc(ctx, u)
	}
	return []plants.PlantGift{}, nil
}

func (m *MockDatabase) AcceptGift(ctx context.Context, receiver plants.User, giftId int) (plants.GiftTransfer, error) {
	return m.AcceptGiftFunc(ctx, receiver, giftId)
}

func (m *MockDatabase) SetGiftStatus(ctx context.Context, giftId int, status string) error {
	return m.SetGiftStatusFunc(ctx, giftId, status)
}

// MockCalendar records the calls made to the calendar sync.
type MockCalendar struct {
	mu          sync.Mutex
	Err         error
	Enabled     []int
	Disabled    []int
	SyncedUsers []int
	SyncedTasks []plants.PlantTask
	Deleted     []plants.PlantTask
}

func (m *MockCalendar) Enable(ctx context.Context, userId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enabled = append(m.Enabled, userId)
	return m.Err
}

func (m *MockCalendar) Disable(ctx context.Context, userId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Disabled = append(m.Disabled, userId)
	return m.Err
}

func (m *MockCalendar) SyncUser(ctx context.Context, userId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncedUsers = append(m.SyncedUsers, userId)
	return m.Err
}

func (m *MockCalendar) SyncTask(ctx context.Context, userId int, t plants.PlantTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncedTasks = append(m.SyncedTasks, t)
	return m.Err
}

func (m *MockCalendar) DeleteTaskEvents(ctx context.Context, userId int, tasks []plants.PlantTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, tasks...)
	return m.Err
}

type MockPhotoStore struct {
	UploadErr error
	Uploaded  [][]byte
	Deleted   []string
}

func (m *MockPhotoStore) Upload(ctx context.Context, userId int, data []byte) (photos.Stored, error) {
	if m.UploadErr != nil {
		return photos.Stored{}, m.UploadErr
	}
	m.Uploaded = append(m.Uploaded, data)
	return photos.Stored{Url: "https://img.example/p1.png", PublicId: "greenhouse/users/1/p1"}, nil
}

func (m *MockPhotoStore) Delete(ctx context.Context, publicId string) error {
	m.Deleted = append(m.Deleted, publicId)
	return nil
}

type MockIdentifier struct {
	Result identify.Identification
	Err    error
	Mime   string
}

func (m *MockIdentifier) Identify(ctx context.Context, image []byte, mimeType string, templates []plants.TaskTemplate) (identify.Identification, error) {
	m.Mime = mimeType
	return m.Result, m.Err
}

type MockMailer struct {
	Sent []mail.GiftInvite
}

func (m *MockMailer) SendGiftInvite(invite mail.GiftInvite) error {
	m.Sent = append(m.Sent, invite)
	return nil
}

type MockGoogle struct {
	Profile auth.Profile
	Token   *oauth2.Token
	Err     error
}

func (m *MockGoogle) LoginURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (m *MockGoogle) Exchange(ctx context.Context, code string) (auth.Profile, *oauth2.Token, error) {
	return m.Profile, m.Token, m.Err
}
