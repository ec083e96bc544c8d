package database

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mgmu/greenhouse/internal/plants"
)

// GetTaskTemplates returns the catalog of task templates, by label.
func (db *PostgresDatabase) GetTaskTemplates(ctx context.Context) ([]plants.TaskTemplate, error) {
	rows, _ := db.pool.Query(
		ctx,
		"SELECT key, label, color, default_frequency_days FROM task_template ORDER BY label;",
	)
	templates, err := pgx.CollectRows(rows, pgx.RowToStructByPos[plants.TaskTemplate])
	if err != nil {
		return nil, translate(err)
	}
	return templates, nil
}

func (db *PostgresDatabase) GetTaskTemplate(ctx context.Context, key string) (plants.TaskTemplate, error) {
	rows, _ := db.pool.Query(
		ctx,
		"SELECT key, label, color, default_frequency_days FROM task_template WHERE key=$1;",
		key,
	)
	tpl, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[plants.TaskTemplate])
	if err != nil {
		return plants.TaskTemplate{}, translate(err)
	}
	return tpl, nil
}

const taskSelect = `
SELECT t.id, t.plant_id, t.task_key, t.frequency_days, t.last_completed_on, t.next_due_on,
       t.calendar_event_id, t.created_at, p.name, tt.label, tt.color
FROM plant_task t
JOIN plant p ON p.id = t.plant_id
JOIN task_template tt ON tt.key = t.task_key
`

func scanTask(row pgx.CollectableRow) (plants.PlantTask, error) {
	var t plants.PlantTask
	var last, next pgtype.Date
	err := row.Scan(
		&t.Id, &t.PlantId, &t.TaskKey, &t.FrequencyDays, &last, &next,
		&t.CalendarEventId, &t.CreatedAt, &t.PlantName, &t.TaskLabel, &t.TaskColor,
	)
	if err != nil {
		return t, err
	}
	t.LastCompletedOn = dateFrom(last)
	if d := dateFrom(next); d != nil {
		t.NextDueOn = *d
	}
	return t, nil
}

func collectTasks(rows pgx.Rows, err error) ([]plants.PlantTask, error) {
	if err != nil {
		return nil, translate(err)
	}
	tasks, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return nil, translate(err)
	}
	return tasks, nil
}

// GetPlantTasks returns the tasks of the plant, soonest due first.
func (db *PostgresDatabase) GetPlantTasks(ctx context.Context, userId, plantId int) ([]plants.PlantTask, error) {
	if err := ownsPlant(ctx, db.pool, userId, plantId); err != nil {
		return nil, err
	}
	return plantTasks(ctx, db.pool, userId, plantId)
}

func plantTasks(ctx context.Context, q querier, userId, plantId int) ([]plants.PlantTask, error) {
	return collectTasks(q.Query(
		ctx,
		taskSelect+"WHERE t.plant_id = $1 AND p.user_id = $2 ORDER BY t.next_due_on, t.id;",
		plantId,
		userId,
	))
}

// GetUserTasks returns every task of every plant of the user.
func (db *PostgresDatabase) GetUserTasks(ctx context.Context, userId int) ([]plants.PlantTask, error) {
	return collectTasks(db.pool.Query(
		ctx,
		taskSelect+"WHERE p.user_id = $1 ORDER BY t.next_due_on, t.id;",
		userId,
	))
}

func (db *PostgresDatabase) GetTask(ctx context.Context, userId, taskId int) (plants.PlantTask, error) {
	rows, err := db.pool.Query(
		ctx,
		taskSelect+"WHERE t.id = $1 AND p.user_id = $2;",
		taskId,
		userId,
	)
	if err != nil {
		return plants.PlantTask{}, translate(err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if err != nil {
		return plants.PlantTask{}, translate(err)
	}
	return t, nil
}

// AddNewTask inserts a task for a plant of the user. The insert selects from
// the plant so that nothing is written for a plant the user does not own.
func (db *PostgresDatabase) AddNewTask(ctx context.Context, userId int, t plants.PlantTask) (int, error) {
	row := db.pool.QueryRow(
		ctx,
		`
INSERT INTO plant_task (plant_id, task_key, frequency_days, last_completed_on, next_due_on)
SELECT p.id, $3::text, $4::integer, $5::date, $6::date FROM plant p WHERE p.id = $1 AND p.user_id = $2
RETURNING id;`,
		t.PlantId,
		userId,
		t.TaskKey,
		t.FrequencyDays,
		dateArg(t.LastCompletedOn),
		t.NextDueOn.Time,
	)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// UpdateTask saves the schedule of the task: frequency, last completion and
// next due date.
func (db *PostgresDatabase) UpdateTask(ctx context.Context, userId int, t plants.PlantTask) error {
	return expectOne(db.pool.Exec(
		ctx,
		`
UPDATE plant_task t
SET frequency_days = $3, last_completed_on = $4, next_due_on = $5
FROM plant p
WHERE t.id = $1 AND p.id = t.plant_id AND p.user_id = $2;`,
		t.Id,
		userId,
		t.FrequencyDays,
		dateArg(t.LastCompletedOn),
		t.NextDueOn.Time,
	))
}

func (db *PostgresDatabase) DeleteTask(ctx context.Context, userId, taskId int) error {
	return expectOne(db.pool.Exec(
		ctx,
		`
DELETE FROM plant_task t
USING plant p
WHERE t.id = $1 AND p.id = t.plant_id AND p.user_id = $2;`,
		taskId,
		userId,
	))
}

// SetTaskCalendarEvent is called by the calendar sync, which already checked
// the ownership of the task.
func (db *PostgresDatabase) SetTaskCalendarEvent(ctx context.Context, taskId int, eventId string) error {
	_, err := db.pool.Exec(
		ctx,
		"UPDATE plant_task SET calendar_event_id = $2 WHERE id = $1;",
		taskId,
		eventId,
	)
	return translate(err)
}

// ClearCalendarEvents forgets the calendar events of all the tasks of the
// user, after the calendar itself was removed.
func (db *PostgresDatabase) ClearCalendarEvents(ctx context.Context, userId int) error {
	_, err := db.pool.Exec(
		ctx,
		`
UPDATE plant_task t SET calendar_event_id = ''
FROM plant p
WHERE p.id = t.plant_id AND p.user_id = $1 AND t.calendar_event_id <> '';`,
		userId,
	)
	return translate(err)
}
