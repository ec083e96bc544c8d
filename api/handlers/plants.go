package handlers

import (
	"context"
	"errors"
	"fmt"
	"github.com/mgmu/greenhouse/api/database"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
	"github.com/mgmu/greenhouse/internal/tasks"
	"go.uber.org/zap"
	"net/http"
)

// TaskTemplates returns the catalog of task templates.
func (e *Env) TaskTemplates() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
			return
		}
		templates, err := e.DB.GetTaskTemplates(r.Context())
		if err != nil {
			e.fail(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, templates)
	}
}

/* Returns a handler for the "/api/plants/" URL.
 * On GET or HEAD, sends the short description of every plant of the user,
 * sorted by name. On POST, creates a plant from the JSON body, along with its
 * initial tags and tasks, and sends the created plant back with a 201 status
 * code.
 */
func (e *Env) Plants() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			list, err := e.DB.GetPlantsShortDescription(r.Context(), currentUser(r))
			if err != nil {
				e.fail(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, list)
		case http.MethodPost:
			e.createPlant(w, r)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead, http.MethodPost)
		}
	}
}

func (e *Env) createPlant(w http.ResponseWriter, r *http.Request) {
	userId := currentUser(r)
	var req messages.JsonPlant
	if err := decode(r, &req); err != nil {
		e.fail(w, r, err)
		return
	}
	p, err := plantFrom(req)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	p.UserId = userId
	tags, err := plants.SanitizeTags(req.Tags)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	today, err := e.today(r.Context(), userId)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	var initial []plants.PlantTask
	seen := map[string]bool{}
	for _, nt := range req.Tasks {
		if seen[nt.TaskKey] {
			continue
		}
		seen[nt.TaskKey] = true
		t, err := e.newTask(r.Context(), 0, nt, today)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		initial = append(initial, t)
	}

	id, err := e.DB.AddNewPlant(r.Context(), p)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	if err := e.fillPlant(r.Context(), userId, id, tags, initial); err != nil {
		// leave nothing half created behind
		if derr := e.DB.DeletePlant(r.Context(), userId, id); derr != nil {
			e.Log.Error("rollback plant", zap.Int("plant", id), zap.Error(derr))
		}
		e.fail(w, r, err)
		return
	}

	created, err := e.DB.GetPlant(r.Context(), userId, id)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	for _, t := range created.Tasks {
		e.syncTask(userId, t)
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (e *Env) fillPlant(ctx context.Context, userId, plantId int, tags []string, initial []plants.PlantTask) error {
	if len(tags) > 0 {
		if _, err := e.DB.SetPlantTags(ctx, userId, plantId, tags); err != nil {
			return err
		}
	}
	for _, t := range initial {
		t.PlantId = plantId
		if _, err := e.DB.AddNewTask(ctx, userId, t); err != nil {
			return err
		}
	}
	return nil
}

// newTask builds a task of the requested template, due today.
func (e *Env) newTask(ctx context.Context, plantId int, nt messages.JsonNewTask, today plants.Date) (plants.PlantTask, error) {
	tpl, err := e.DB.GetTaskTemplate(ctx, nt.TaskKey)
	if errors.Is(err, database.ErrNotFound) {
		return plants.PlantTask{}, fmt.Errorf("%w: unknown task %q", plants.ErrInvalid, nt.TaskKey)
	}
	if err != nil {
		return plants.PlantTask{}, err
	}
	return tasks.Initial(plantId, tpl, nt.FrequencyDays, today)
}

// plantFrom validates the attributes of a plant sent by the client.
func plantFrom(req messages.JsonPlant) (plants.Plant, error) {
	var p plants.Plant
	var err error
	if p.Name, err = plants.SanitizeName(req.Name); err != nil {
		return p, err
	}
	if p.Species, err = plants.SanitizeSpecies(req.Species); err != nil {
		return p, err
	}
	fields := []struct {
		name  string
		value string
		dst   *string
	}{
		{"location", req.Location, &p.Location},
		{"light", req.Light, &p.Light},
		{"water", req.Water, &p.Water},
		{"humidity", req.Humidity, &p.Humidity},
		{"soil", req.Soil, &p.Soil},
		{"acquired_from", req.AcquiredFrom, &p.AcquiredFrom},
	}
	for _, f := range fields {
		if *f.dst, err = plants.SanitizeText(f.name, f.value); err != nil {
			return p, err
		}
	}
	p.AcquiredOn = req.AcquiredOn
	return p, nil
}

/* Returns a handler for the "/api/plants/{id}/" URL.
 * On GET or HEAD, sends the plant with its tasks, photos, notes and tags. On
 * PUT, replaces the attributes of the plant. On DELETE, removes the plant and
 * everything attached to it, including its calendar events and its photos.
 */
func (e *Env) Plant() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			p, err := e.DB.GetPlant(r.Context(), userId, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, p)
		case http.MethodPut:
			var req messages.JsonPlant
			if err := decode(r, &req); err != nil {
				e.fail(w, r, err)
				return
			}
			p, err := plantFrom(req)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			p.Id = id
			p.UserId = userId
			if err := e.DB.UpdatePlant(r.Context(), p); err != nil {
				e.fail(w, r, err)
				return
			}
			updated, err := e.DB.GetPlant(r.Context(), userId, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			// event titles carry the plant name
			for _, t := range updated.Tasks {
				e.syncTask(userId, t)
			}
			writeJSON(w, r, http.StatusOK, updated)
		case http.MethodDelete:
			p, err := e.DB.GetPlant(r.Context(), userId, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			if err := e.DB.DeletePlant(r.Context(), userId, id); err != nil {
				e.fail(w, r, err)
				return
			}
			e.deleteEvents(userId, p.Tasks)
			e.deletePhotos(userId, p.Photos)
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete)
		}
	}
}

// Tags returns every tag of the user.
func (e *Env) Tags() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
			return
		}
		tags, err := e.DB.GetTags(r.Context(), currentUser(r))
		if err != nil {
			e.fail(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, tags)
	}
}

// PlantTags replaces the tags of a plant.
func (e *Env) PlantTags() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		var req messages.JsonTags
		if err := decode(r, &req); err != nil {
			e.fail(w, r, err)
			return
		}
		names, err := plants.SanitizeTags(req.Tags)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		tags, err := e.DB.SetPlantTags(r.Context(), currentUser(r), id, names)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, tags)
	}
}
