package handlers

import (
	"context"
	"errors"
	"fmt"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/photos"
	"github.com/mgmu/greenhouse/internal/plants"
	"go.uber.org/zap"
	"io"
	"net/http"
)

// readUpload returns the content of the file sent in the given multipart
// field, refusing bodies larger than MaxUpload.
func (e *Env) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	if r.ContentLength > e.MaxUpload {
		return nil, &http.MaxBytesError{Limit: e.MaxUpload}
	}
	r.Body = http.MaxBytesReader(w, r.Body, e.MaxUpload)
	if err := r.ParseMultipartForm(e.MaxUpload); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", plants.ErrInvalid, err)
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s file", plants.ErrInvalid, field)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s file is empty", plants.ErrInvalid, field)
	}
	return data, nil
}

/* Returns a handler for the "/api/plants/{id}/photos/" URL.
 * On POST, uploads the image of the "photo" field of the multipart body and
 * attaches it to the plant, with the optional "caption" and "taken_on" fields.
 * The first photo of a plant becomes its cover.
 */
func (e *Env) PlantPhotos() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if e.Photos == nil {
			e.fail(w, r, errDisabled)
			return
		}
		plantId, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)
		data, err := e.readUpload(w, r, "photo")
		if err != nil {
			e.fail(w, r, err)
			return
		}
		ph := plants.PlantPhoto{PlantId: plantId}
		if ph.Caption, err = plants.SanitizeText("caption", r.FormValue("caption")); err != nil {
			e.fail(w, r, err)
			return
		}
		if v := r.FormValue("taken_on"); v != "" {
			d, err := plants.ParseDate(v)
			if err != nil {
				e.fail(w, r, fmt.Errorf("%w: taken_on is not a date", plants.ErrInvalid))
				return
			}
			ph.TakenOn = d.Time
		}
		if _, err := photos.DetectImage(data); err != nil {
			e.fail(w, r, err)
			return
		}
		// nothing is uploaded for a plant of someone else
		if err := e.DB.CheckPlantOwner(r.Context(), userId, plantId); err != nil {
			e.fail(w, r, err)
			return
		}

		stored, err := e.Photos.Upload(r.Context(), userId, data)
		if err != nil {
			e.fail(w, r, upstream(err))
			return
		}
		ph.Url = stored.Url
		ph.PublicId = stored.PublicId
		id, err := e.DB.AddNewPhoto(r.Context(), userId, ph)
		if err != nil {
			e.deletePhotos(userId, []plants.PlantPhoto{ph})
			e.fail(w, r, err)
			return
		}
		created, err := e.DB.GetPhoto(r.Context(), userId, id)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, created)
	}
}

// Photo deletes a photo. The image itself is removed from the store after
// the response.
func (e *Env) Photo() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)
		ph, err := e.DB.GetPhoto(r.Context(), userId, id)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if err := e.DB.DeletePhoto(r.Context(), userId, id); err != nil {
			e.fail(w, r, err)
			return
		}
		e.deletePhotos(userId, []plants.PlantPhoto{ph})
		w.WriteHeader(http.StatusNoContent)
	}
}

// PhotoCover makes the photo the cover of its plant.
func (e *Env) PhotoCover() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if err := e.DB.SetCoverPhoto(r.Context(), currentUser(r), id); err != nil {
			e.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (e *Env) deletePhotos(userId int, list []plants.PlantPhoto) {
	if e.Photos == nil || len(list) == 0 {
		return
	}
	e.background("photo cleanup", userId, func(ctx context.Context) error {
		var errs []error
		for _, ph := range list {
			if err := e.Photos.Delete(ctx, ph.PublicId); err != nil {
				errs = append(errs, err)
				continue
			}
			e.Log.Debug("photo deleted", zap.String("public_id", ph.PublicId))
		}
		return errors.Join(errs...)
	})
}

/* Returns a handler for the "/api/plants/{id}/notes/" URL.
 * On POST, adds the note of the body to the plant and sends it back with a
 * 201 status code.
 */
func (e *Env) PlantNotes() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		plantId, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		var req messages.JsonNote
		if err := decode(r, &req); err != nil {
			e.fail(w, r, err)
			return
		}
		body, err := plants.SanitizeNoteBody(req.Body)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		n := plants.PlantNote{PlantId: plantId, Body: body}
		if n.Id, err = e.DB.AddNewPlantNote(r.Context(), currentUser(r), n); err != nil {
			e.fail(w, r, err)
			return
		}
		n.CreatedAt = e.Now().UTC()
		writeJSON(w, r, http.StatusCreated, n)
	}
}

// Note deletes a note.
func (e *Env) Note() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if err := e.DB.DeletePlantNote(r.Context(), currentUser(r), id); err != nil {
			e.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
