package database

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/mgmu/greenhouse/internal/plants"
)

// AddNewPhoto attaches an uploaded photo to a plant of the user. The first
// photo of a plant becomes its cover.
func (db *PostgresDatabase) AddNewPhoto(ctx context.Context, userId int, ph plants.PlantPhoto) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, translate(err)
	}
	defer tx.Rollback(ctx)

	if err := ownsPlant(ctx, tx, userId, ph.PlantId); err != nil {
		return 0, err
	}
	var takenOn any
	if !ph.TakenOn.IsZero() {
		takenOn = ph.TakenOn
	}
	var id int
	err = tx.QueryRow(
		ctx,
		`
INSERT INTO plant_photo (plant_id, url, public_id, caption, taken_on)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
RETURNING id;`,
		ph.PlantId,
		ph.Url,
		ph.PublicId,
		ph.Caption,
		takenOn,
	).Scan(&id)
	if err != nil {
		return 0, translate(err)
	}
	_, err = tx.Exec(
		ctx,
		"UPDATE plant SET cover_photo_url = $2, updated_at = now() WHERE id = $1 AND cover_photo_url = '';",
		ph.PlantId,
		ph.Url,
	)
	if err != nil {
		return 0, translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

func (db *PostgresDatabase) GetPhoto(ctx context.Context, userId, photoId int) (plants.PlantPhoto, error) {
	rows, _ := db.pool.Query(
		ctx,
		`
SELECT ph.id, ph.plant_id, ph.url, ph.public_id, ph.caption, ph.taken_on, ph.created_at
FROM plant_photo ph JOIN plant p ON p.id = ph.plant_id
WHERE ph.id = $1 AND p.user_id = $2;`,
		photoId,
		userId,
	)
	ph, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[plants.PlantPhoto])
	if err != nil {
		return plants.PlantPhoto{}, translate(err)
	}
	return ph, nil
}

// DeletePhoto removes the photo. A plant whose cover it was falls back to its
// most recent remaining photo.
func (db *PostgresDatabase) DeletePhoto(ctx context.Context, userId, photoId int) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return translate(err)
	}
	defer tx.Rollback(ctx)

	var plantId int
	var url string
	err = tx.QueryRow(
		ctx,
		`
DELETE FROM plant_photo ph
USING plant p
WHERE ph.id = $1 AND p.id = ph.plant_id AND p.user_id = $2
RETURNING ph.plant_id, ph.url;`,
		photoId,
		userId,
	).Scan(&plantId, &url)
	if err != nil {
		return translate(err)
	}
	_, err = tx.Exec(
		ctx,
		`
UPDATE plant SET cover_photo_url = COALESCE(
    (SELECT url FROM plant_photo WHERE plant_id = $1 ORDER BY taken_on DESC, id DESC LIMIT 1), ''),
    updated_at = now()
WHERE id = $1 AND cover_photo_url = $2;`,
		plantId,
		url,
	)
	if err != nil {
		return translate(err)
	}
	return translate(tx.Commit(ctx))
}

func (db *PostgresDatabase) SetCoverPhoto(ctx context.Context, userId, photoId int) error {
	return expectOne(db.pool.Exec(
		ctx,
		`
UPDATE plant p SET cover_photo_url = ph.url, updated_at = now()
FROM plant_photo ph
WHERE ph.id = $1 AND p.id = ph.plant_id AND p.user_id = $2;`,
		photoId,
		userId,
	))
}

// AddNewPlantNote attempts to insert a new entry in the 'plant_note' table
// for a plant of the user.
func (db *PostgresDatabase) AddNewPlantNote(ctx context.Context, userId int, n plants.PlantNote) (int, error) {
	row := db.pool.QueryRow(
		ctx,
		`
INSERT INTO plant_note (plant_id, body)
SELECT p.id, $3::text FROM plant p WHERE p.id = $1 AND p.user_id = $2
RETURNING id;`,
		n.PlantId,
		userId,
		n.Body,
	)
	var noteId int
	if err := row.Scan(&noteId); err != nil {
		return 0, translate(err)
	}
	return noteId, nil
}

func (db *PostgresDatabase) DeletePlantNote(ctx context.Context, userId, noteId int) error {
	return expectOne(db.pool.Exec(
		ctx,
		`
DELETE FROM plant_note n
USING plant p
WHERE n.id = $1 AND p.id = n.plant_id AND p.user_id = $2;`,
		noteId,
		userId,
	))
}
