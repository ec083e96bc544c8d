package database

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mgmu/greenhouse/internal/plants"
)

// GetPlantsShortDescription queries the database for the short description of
// all the plants of the user, with the earliest due date of their tasks, and
// returns them sorted by name.
func (db *PostgresDatabase) GetPlantsShortDescription(ctx context.Context, userId int) ([]plants.PlantShortDesc, error) {
	rows, _ := db.pool.Query(
		ctx,
		`
SELECT p.id, p.name, p.species, p.cover_photo_url,
       (SELECT min(t.next_due_on) FROM plant_task t WHERE t.plant_id = p.id)
FROM plant p
WHERE p.user_id = $1
ORDER BY lower(p.name), p.id;`,
		userId,
	)
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (plants.PlantShortDesc, error) {
		var p plants.PlantShortDesc
		var due pgtype.Date
		if err := row.Scan(&p.Id, &p.Name, &p.Species, &p.CoverPhotoUrl, &due); err != nil {
			return p, err
		}
		p.NextDueOn = dateFrom(due)
		p.Tags = []plants.Tag{}
		return p, nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if len(list) == 0 {
		return list, nil
	}

	index := make(map[int]int, len(list))
	for i, p := range list {
		index[p.Id] = i
	}
	rows, _ = db.pool.Query(
		ctx,
		`
SELECT pt.plant_id, tg.id, tg.name
FROM plant_tag pt JOIN tag tg ON tg.id = pt.tag_id
WHERE tg.user_id = $1
ORDER BY tg.name;`,
		userId,
	)
	var plantId int
	var tag plants.Tag
	_, err = pgx.ForEachRow(rows, []any{&plantId, &tag.Id, &tag.Name}, func() error {
		if i, ok := index[plantId]; ok {
			list[i].Tags = append(list[i].Tags, tag)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

const plantColumns = `id, user_id, name, species, location, light, water, humidity, soil,
acquired_on, acquired_from, cover_photo_url, created_at, updated_at`

func scanPlant(row pgx.Row) (plants.Plant, error) {
	var p plants.Plant
	var acquired pgtype.Date
	err := row.Scan(
		&p.Id, &p.UserId, &p.Name, &p.Species, &p.Location, &p.Light, &p.Water,
		&p.Humidity, &p.Soil, &acquired, &p.AcquiredFrom, &p.CoverPhotoUrl,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return plants.Plant{}, err
	}
	p.AcquiredOn = dateFrom(acquired)
	return p, nil
}

// GetPlant queries the database for the plant of given identifier owned by
// the user, along with its tasks, photos, notes and tags.
func (db *PostgresDatabase) GetPlant(ctx context.Context, userId, plantId int) (plants.Plant, error) {
	return getPlant(ctx, db.pool, userId, plantId, false)
}

func getPlant(ctx context.Context, q querier, userId, plantId int, lock bool) (plants.Plant, error) {
	query := "SELECT " + plantColumns + " FROM plant WHERE id=$1 AND user_id=$2"
	if lock {
		query += " FOR UPDATE"
	}
	p, err := scanPlant(q.QueryRow(ctx, query, plantId, userId))
	if err != nil {
		return plants.Plant{}, translate(err)
	}

	if p.Tasks, err = plantTasks(ctx, q, userId, plantId); err != nil {
		return plants.Plant{}, err
	}

	rows, _ := q.Query(
		ctx,
		`
SELECT id, plant_id, url, public_id, caption, taken_on, created_at
FROM plant_photo WHERE plant_id=$1 ORDER BY taken_on DESC, id DESC;`,
		plantId,
	)
	p.Photos, err = pgx.CollectRows(rows, pgx.RowToStructByPos[plants.PlantPhoto])
	if err != nil {
		return plants.Plant{}, translate(err)
	}

	rows, _ = q.Query(
		ctx,
		"SELECT id, plant_id, body, created_at FROM plant_note WHERE plant_id=$1 ORDER BY created_at DESC, id DESC;",
		plantId,
	)
	p.Notes, err = pgx.CollectRows(rows, pgx.RowToStructByPos[plants.PlantNote])
	if err != nil {
		return plants.Plant{}, translate(err)
	}

	if p.Tags, err = plantTags(ctx, q, plantId); err != nil {
		return plants.Plant{}, err
	}
	return p, nil
}

// AddNewPlant attempts to insert a new entry in the 'plant' table for the
// owner of p. On success, returns the identifier of the inserted entry and a
// nil error.
func (db *PostgresDatabase) AddNewPlant(ctx context.Context, p plants.Plant) (int, error) {
	return insertPlant(ctx, db.pool, p)
}

func insertPlant(ctx context.Context, q querier, p plants.Plant) (int, error) {
	row := q.QueryRow(
		ctx,
		`
INSERT INTO plant (user_id, name, species, location, light, water, humidity, soil,
                   acquired_on, acquired_from, cover_photo_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id;`,
		p.UserId,
		p.Name,
		p.Species,
		p.Location,
		p.Light,
		p.Water,
		p.Humidity,
		p.Soil,
		dateArg(p.AcquiredOn),
		p.AcquiredFrom,
		p.CoverPhotoUrl,
	)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// UpdatePlant replaces the attributes of the plant. The cover photo is left
// alone, see SetCoverPhoto.
func (db *PostgresDatabase) UpdatePlant(ctx context.Context, p plants.Plant) error {
	return expectOne(db.pool.Exec(
		ctx,
		`
UPDATE plant
SET name = $3, species = $4, location = $5, light = $6, water = $7, humidity = $8,
    soil = $9, acquired_on = $10, acquired_from = $11, updated_at = now()
WHERE id = $1 AND user_id = $2;`,
		p.Id,
		p.UserId,
		p.Name,
		p.Species,
		p.Location,
		p.Light,
		p.Water,
		p.Humidity,
		p.Soil,
		dateArg(p.AcquiredOn),
		p.AcquiredFrom,
	))
}

// CheckPlantOwner returns ErrNotFound unless the plant exists and belongs to
// the user.
func (db *PostgresDatabase) CheckPlantOwner(ctx context.Context, userId, plantId int) error {
	return ownsPlant(ctx, db.pool, userId, plantId)
}

// DeletePlant removes the plant and, by cascade, its tasks, photos, notes and
// tag links. A pending gift of the plant is cancelled.
func (db *PostgresDatabase) DeletePlant(ctx context.Context, userId, plantId int) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(
		ctx,
		`
UPDATE plant_gift SET status = 'cancelled', responded_at = now()
WHERE plant_id = $1 AND sender_id = $2 AND status = 'pending';`,
		plantId,
		userId,
	)
	if err != nil {
		return translate(err)
	}
	err = expectOne(tx.Exec(
		ctx,
		"DELETE FROM plant WHERE id = $1 AND user_id = $2;",
		plantId,
		userId,
	))
	if err != nil {
		return err
	}
	return translate(tx.Commit(ctx))
}

// ownsPlant returns ErrNotFound unless the plant exists and is the user's.
func ownsPlant(ctx context.Context, q querier, userId, plantId int) error {
	var exists bool
	err := q.QueryRow(
		ctx,
		"SELECT EXISTS (SELECT 1 FROM plant WHERE id=$1 AND user_id=$2);",
		plantId,
		userId,
	).Scan(&exists)
	if err != nil {
		return translate(err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
