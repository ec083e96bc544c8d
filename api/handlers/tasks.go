package handlers

import (
	"fmt"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
	"github.com/mgmu/greenhouse/internal/tasks"
	"net/http"
	"sort"
	"strconv"
)

// maxWithin bounds how far ahead the due list may look.
const maxWithin = 90

/* Returns a handler for the "/api/plants/{id}/tasks/" URL.
 * On GET or HEAD, sends the tasks of the plant, soonest due first. On POST,
 * adds a task of the template named in the body, due today, and sends it back
 * with a 201 status code.
 */
func (e *Env) PlantTasks() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		plantId, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			list, err := e.DB.GetPlantTasks(r.Context(), userId, plantId)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, list)
		case http.MethodPost:
			var req messages.JsonNewTask
			if err := decode(r, &req); err != nil {
				e.fail(w, r, err)
				return
			}
			today, err := e.today(r.Context(), userId)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			t, err := e.newTask(r.Context(), plantId, req, today)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			id, err := e.DB.AddNewTask(r.Context(), userId, t)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			created, err := e.DB.GetTask(r.Context(), userId, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			e.syncTask(userId, created)
			writeJSON(w, r, http.StatusCreated, created)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead, http.MethodPost)
		}
	}
}

/* Returns a handler for the "/api/tasks/{id}/" URL.
 * On PUT, changes the frequency of the task, which reschedules it from its
 * last completion, and/or moves its next due date. On DELETE, removes the
 * task and its calendar event.
 */
func (e *Env) Task() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)

		switch r.Method {
		case http.MethodPut:
			var req messages.JsonTaskUpdate
			if err := decode(r, &req); err != nil {
				e.fail(w, r, err)
				return
			}
			if req.FrequencyDays == 0 && req.NextDueOn == nil {
				e.fail(w, r, fmt.Errorf("%w: nothing to update", plants.ErrInvalid))
				return
			}
			t, err := e.DB.GetTask(r.Context(), userId, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			if req.FrequencyDays != 0 && req.FrequencyDays != t.FrequencyDays {
				if t, err = tasks.Reschedule(t, req.FrequencyDays); err != nil {
					e.fail(w, r, err)
					return
				}
			}
			if req.NextDueOn != nil {
				today, err := e.today(r.Context(), userId)
				if err != nil {
					e.fail(w, r, err)
					return
				}
				if err := plants.CheckDueDate(*req.NextDueOn, today); err != nil {
					e.fail(w, r, err)
					return
				}
				t.NextDueOn = *req.NextDueOn
			}
			e.saveTask(w, r, userId, t)
		case http.MethodDelete:
			t, err := e.DB.GetTask(r.Context(), userId, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			if err := e.DB.DeleteTask(r.Context(), userId, id); err != nil {
				e.fail(w, r, err)
				return
			}
			e.deleteEvents(userId, []plants.PlantTask{t})
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
		}
	}
}

// CompleteTask marks the task done today.
func (e *Env) CompleteTask() func(http.ResponseWriter, *http.Request) {
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
		userId := currentUser(r)
		t, err := e.DB.GetTask(r.Context(), userId, id)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		today, err := e.today(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		e.saveTask(w, r, userId, tasks.Complete(t, today))
	}
}

// SnoozeTask postpones the task by the number of days of the body.
func (e *Env) SnoozeTask() func(http.ResponseWriter, *http.Request) {
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
		var req messages.JsonSnooze
		if err := decode(r, &req); err != nil {
			e.fail(w, r, err)
			return
		}
		userId := currentUser(r)
		t, err := e.DB.GetTask(r.Context(), userId, id)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		today, err := e.today(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		snoozed, err := tasks.Snooze(t, req.Days, today)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		e.saveTask(w, r, userId, snoozed)
	}
}

func (e *Env) saveTask(w http.ResponseWriter, r *http.Request, userId int, t plants.PlantTask) {
	if err := e.DB.UpdateTask(r.Context(), userId, t); err != nil {
		e.fail(w, r, err)
		return
	}
	e.syncTask(userId, t)
	writeJSON(w, r, http.StatusOK, t)
}

/* Returns a handler for the "/api/tasks/due/" URL.
 * Sends the tasks of the user that need attention today, most overdue first,
 * each with its status. The optional "within" query parameter adds the tasks
 * coming due in that many days.
 */
func (e *Env) DueTasks() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
			return
		}
		within := 0
		if v := r.URL.Query().Get("within"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > maxWithin {
				e.fail(w, r, fmt.Errorf("%w: within must be between 0 and %d", plants.ErrInvalid, maxWithin))
				return
			}
			within = n
		}
		userId := currentUser(r)
		today, err := e.today(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		all, err := e.DB.GetUserTasks(r.Context(), userId)
		if err != nil {
			e.fail(w, r, err)
			return
		}

		list := tasks.Attention(all, today)
		if within > 0 {
			var upcoming []plants.PlantTask
			limit := today.AddDays(within)
			for _, t := range all {
				if tasks.StatusOf(t, today) == tasks.Upcoming && !t.NextDueOn.After(limit) {
					upcoming = append(upcoming, t)
				}
			}
			sort.SliceStable(upcoming, func(i, j int) bool {
				if !upcoming[i].NextDueOn.Equal(upcoming[j].NextDueOn) {
					return upcoming[i].NextDueOn.Before(upcoming[j].NextDueOn)
				}
				return upcoming[i].Id < upcoming[j].Id
			})
			list = append(list, upcoming...)
		}

		out := make([]messages.JsonDueTask, 0, len(list))
		for _, t := range list {
			out = append(out, messages.JsonDueTask{
				PlantTask:   t,
				Status:      tasks.StatusOf(t, today),
				DaysOverdue: tasks.DaysOverdue(t, today),
			})
		}
		writeJSON(w, r, http.StatusOK, out)
	}
}
