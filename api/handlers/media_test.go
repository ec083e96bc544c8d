package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmu/greenhouse/api/database"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
)

// photoDB accepts uploads for plant 4 only.
func photoDB(added *plants.PlantPhoto) *MockDatabase {
	return &MockDatabase{
		CheckPlantOwnerFunc: func(ctx context.Context, userId, plantId int) error {
			if plantId != 4 {
				return database.ErrNotFound
			}
			return nil
		},
		AddNewPhotoFunc: func(ctx context.Context, userId int, ph plants.PlantPhoto) (int, error) {
			*added = ph
			return 9, nil
		},
		GetPhotoFunc: func(ctx context.Context, userId, photoId int) (plants.PlantPhoto, error) {
			ph := *added
			ph.Id = photoId
			return ph, nil
		},
	}
}

func TestUploadPhoto(t *testing.T) {
	var added plants.PlantPhoto
	store := &MockPhotoStore{}
	e := newEnv(photoDB(&added))
	e.Photos = store

	req := multipartRequest(t, "/api/plants/4/photos/", "photo", pngData, map[string]string{
		"caption":  " first leaf ",
		"taken_on": "2024-06-01",
	})
	rec := serve(e.PlantPhotos(), req, "id", "4")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Len(t, store.Uploaded, 1)
	assert.Equal(t, 4, added.PlantId)
	assert.Equal(t, "https://img.example/p1.png", added.Url)
	assert.Equal(t, "greenhouse/users/1/p1", added.PublicId)
	assert.Equal(t, "first leaf", added.Caption)
	assert.True(t, added.TakenOn.Equal(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 9, decodeAs[plants.PlantPhoto](t, rec).Id)
}

func TestUploadPhotoRejected(t *testing.T) {
	var added plants.PlantPhoto
	store := &MockPhotoStore{}
	e := newEnv(photoDB(&added))

	req := multipartRequest(t, "/api/plants/4/photos/", "photo", pngData, nil)
	assert.Equal(t, http.StatusNotFound, serve(e.PlantPhotos(), req, "id", "4").Code, "photos disabled")

	e.Photos = store
	tests := []struct {
		name string
		req  *http.Request
		id   string
		want int
	}{
		{"not an image", multipartRequest(t, "/api/plants/4/photos/", "photo", []byte("plain text"), nil), "4", http.StatusBadRequest},
		{"wrong field", multipartRequest(t, "/api/plants/4/photos/", "file", pngData, nil), "4", http.StatusBadRequest},
		{"bad date", multipartRequest(t, "/api/plants/4/photos/", "photo", pngData, map[string]string{"taken_on": "yesterday"}), "4", http.StatusBadRequest},
		{"not multipart", jsonRequest(t, http.MethodPost, "/api/plants/4/photos/", map[string]string{}), "4", http.StatusBadRequest},
		{"other plant", multipartRequest(t, "/api/plants/5/photos/", "photo", pngData, nil), "5", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := serve(e.PlantPhotos(), tt.req, "id", tt.id)
		assert.Equal(t, tt.want, rec.Code, tt.name)
	}
	assert.Empty(t, store.Uploaded)
}

func TestUploadPhotoTooLarge(t *testing.T) {
	var added plants.PlantPhoto
	e := newEnv(photoDB(&added))
	e.Photos = &MockPhotoStore{}
	e.MaxUpload = 1024

	big := append(append([]byte{}, pngData...), make([]byte, 4096)...)
	rec := serve(e.PlantPhotos(), multipartRequest(t, "/api/plants/4/photos/", "photo", big, nil), "id", "4")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadPhotoStoreFails(t *testing.T) {
	var added plants.PlantPhoto
	e := newEnv(photoDB(&added))
	e.Photos = &MockPhotoStore{UploadErr: errors.New("cloudinary upload: 503")}

	rec := serve(e.PlantPhotos(), multipartRequest(t, "/api/plants/4/photos/", "photo", pngData, nil), "id", "4")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUploadPhotoDatabaseFails(t *testing.T) {
	var added plants.PlantPhoto
	db := photoDB(&added)
	db.AddNewPhotoFunc = func(ctx context.Context, userId int, ph plants.PlantPhoto) (int, error) {
		return 0, errors.New("connection reset")
	}
	store := &MockPhotoStore{}
	e := newEnv(db)
	e.Photos = store

	rec := serve(e.PlantPhotos(), multipartRequest(t, "/api/plants/4/photos/", "photo", pngData, nil), "id", "4")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"greenhouse/users/1/p1"}, store.Deleted)
}

func TestDeletePhoto(t *testing.T) {
	db := &MockDatabase{
		GetPhotoFunc: func(ctx context.Context, userId, photoId int) (plants.PlantPhoto, error) {
			return plants.PlantPhoto{Id: photoId, PublicId: "greenhouse/users/1/x"}, nil
		},
		DeletePhotoFunc: func(ctx context.Context, userId, photoId int) error { return nil },
	}
	store := &MockPhotoStore{}
	e := newEnv(db)
	e.Photos = store

	rec := serve(e.Photo(), httptest.NewRequest(http.MethodDelete, "/api/photos/9/", nil), "id", "9")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"greenhouse/users/1/x"}, store.Deleted)
}

func TestPhotoCover(t *testing.T) {
	db := &MockDatabase{
		SetCoverPhotoFunc: func(ctx context.Context, userId, photoId int) error {
			if photoId != 9 {
				return database.ErrNotFound
			}
			return nil
		},
	}
	e := newEnv(db)

	rec := serve(e.PhotoCover(), httptest.NewRequest(http.MethodPost, "/api/photos/9/cover/", nil), "id", "9")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e.PhotoCover(), httptest.NewRequest(http.MethodPost, "/api/photos/8/cover/", nil), "id", "8")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddNote(t *testing.T) {
	var added plants.PlantNote
	db := &MockDatabase{
		AddNewPlantNoteFunc: func(ctx context.Context, userId int, n plants.PlantNote) (int, error) {
			added = n
			return 12, nil
		},
	}
	e := newEnv(db)

	rec := serve(e.PlantNotes(), jsonRequest(t, http.MethodPost, "/api/plants/4/notes/", messages.JsonNote{Body: "  repotted in bark mix \n"}), "id", "4")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "repotted in bark mix", added.Body)
	assert.Equal(t, 4, added.PlantId)
	got := decodeAs[plants.PlantNote](t, rec)
	assert.Equal(t, 12, got.Id)

	rec = serve(e.PlantNotes(), jsonRequest(t, http.MethodPost, "/api/plants/4/notes/", messages.JsonNote{Body: "   "}), "id", "4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteNote(t *testing.T) {
	db := &MockDatabase{
		DeletePlantNoteFunc: func(ctx context.Context, userId, noteId int) error { return database.ErrNotFound },
	}

	rec := serve(newEnv(db).Note(), httptest.NewRequest(http.MethodDelete, "/api/notes/3/", nil), "id", "3")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(newEnv(db).Note(), httptest.NewRequest(http.MethodGet, "/api/notes/3/", nil), "id", "3")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
