// Package tasks computes due dates of recurring plant care tasks and picks
// which of them a reminder should be about.
package tasks

import (
	"sort"
	"time"

	"github.com/mgmu/greenhouse/internal/plants"
)

// Status of a task relative to a given day.
type Status string

const (
	Upcoming Status = "upcoming"
	Due      Status = "due"
	Overdue  Status = "overdue"
)

// Today returns the calendar day of now in loc.
func Today(loc *time.Location, now time.Time) plants.Date {
	return plants.DateOf(now.In(loc))
}

// NextDue returns the day a task done on from is due again.
func NextDue(from plants.Date, frequencyDays int) plants.Date {
	return from.AddDays(frequencyDays)
}

// Initial builds a new task of the given template. A zero frequency takes
// the template default. The first occurrence is due today.
func Initial(plantId int, tpl plants.TaskTemplate, frequencyDays int, today plants.Date) (plants.PlantTask, error) {
	if frequencyDays == 0 {
		frequencyDays = tpl.DefaultFrequencyDays
	}
	if err := plants.CheckFrequency(frequencyDays); err != nil {
		return plants.PlantTask{}, err
	}
	return plants.PlantTask{
		PlantId:       plantId,
		TaskKey:       tpl.Key,
		FrequencyDays: frequencyDays,
		NextDueOn:     today,
		TaskLabel:     tpl.Label,
		TaskColor:     tpl.Color,
	}, nil
}

// Complete marks t done today.
func Complete(t plants.PlantTask, today plants.Date) plants.PlantTask {
	done := today
	t.LastCompletedOn = &done
	t.NextDueOn = NextDue(today, t.FrequencyDays)
	return t
}

// Snooze pushes t by days, counted from today when it is already late.
func Snooze(t plants.PlantTask, days int, today plants.Date) (plants.PlantTask, error) {
	if err := plants.CheckSnooze(days); err != nil {
		return t, err
	}
	from := t.NextDueOn
	if from.Before(today) {
		from = today
	}
	t.NextDueOn = from.AddDays(days)
	return t, nil
}

// Reschedule changes the frequency of t. The due date of a task done before
// follows the new frequency from its last completion, which can make it
// overdue. A task never done keeps its due date.
func Reschedule(t plants.PlantTask, frequencyDays int) (plants.PlantTask, error) {
	if err := plants.CheckFrequency(frequencyDays); err != nil {
		return t, err
	}
	t.FrequencyDays = frequencyDays
	if t.LastCompletedOn != nil {
		t.NextDueOn = NextDue(*t.LastCompletedOn, frequencyDays)
	}
	return t, nil
}

func StatusOf(t plants.PlantTask, today plants.Date) Status {
	switch {
	case t.NextDueOn.Before(today):
		return Overdue
	case t.NextDueOn.Equal(today):
		return Due
	}
	return Upcoming
}

// DaysOverdue is zero for tasks that are not overdue.
func DaysOverdue(t plants.PlantTask, today plants.Date) int {
	if n := today.DaysSince(t.NextDueOn); n > 0 {
		return n
	}
	return 0
}

// Attention returns the tasks that are due or overdue on today, most overdue
// first. Ties are broken by task id so that the order, and therefore the
// round robin, is the same from one run to the next.
func Attention(all []plants.PlantTask, today plants.Date) []plants.PlantTask {
	var out []plants.PlantTask
	for _, t := range all {
		if StatusOf(t, today) != Upcoming {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].NextDueOn.Equal(out[j].NextDueOn) {
			return out[i].NextDueOn.Before(out[j].NextDueOn)
		}
		return out[i].Id < out[j].Id
	})
	return out
}

// PickNext selects the task at cursor, wrapping around, and returns the
// cursor to use next time. An empty list leaves the cursor where it is.
func PickNext(attention []plants.PlantTask, cursor int) (plants.PlantTask, int, bool) {
	if len(attention) == 0 {
		return plants.PlantTask{}, cursor, false
	}
	if cursor < 0 {
		cursor = 0
	}
	return attention[cursor%len(attention)], cursor + 1, true
}
