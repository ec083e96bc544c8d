package database

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/mgmu/greenhouse/internal/plants"
)

// GetTags returns all the tags of the user, by name.
func (db *PostgresDatabase) GetTags(ctx context.Context, userId int) ([]plants.Tag, error) {
	rows, _ := db.pool.Query(
		ctx,
		"SELECT id, user_id, name FROM tag WHERE user_id=$1 ORDER BY name;",
		userId,
	)
	tags, err := pgx.CollectRows(rows, pgx.RowToStructByPos[plants.Tag])
	if err != nil {
		return nil, translate(err)
	}
	return tags, nil
}

func plantTags(ctx context.Context, q querier, plantId int) ([]plants.Tag, error) {
	rows, _ := q.Query(
		ctx,
		`
SELECT tg.id, tg.user_id, tg.name
FROM plant_tag pt JOIN tag tg ON tg.id = pt.tag_id
WHERE pt.plant_id = $1
ORDER BY tg.name;`,
		plantId,
	)
	tags, err := pgx.CollectRows(rows, pgx.RowToStructByPos[plants.Tag])
	if err != nil {
		return nil, translate(err)
	}
	return tags, nil
}

// SetPlantTags replaces the tags of the plant with the given names, which
// must already be sanitized. Missing tags are created for the user.
func (db *PostgresDatabase) SetPlantTags(ctx context.Context, userId, plantId int, names []string) ([]plants.Tag, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, translate(err)
	}
	defer tx.Rollback(ctx)

	if err := ownsPlant(ctx, tx, userId, plantId); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM plant_tag WHERE plant_id = $1;", plantId); err != nil {
		return nil, translate(err)
	}
	if err := tagPlant(ctx, tx, userId, plantId, names); err != nil {
		return nil, err
	}
	tags, err := plantTags(ctx, tx, plantId)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, translate(err)
	}
	return tags, nil
}

// tagPlant links the plant to the tags of the user named names, creating the
// tags that do not exist yet.
func tagPlant(ctx context.Context, q querier, userId, plantId int, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := q.Exec(
		ctx,
		`
WITH t AS (
    INSERT INTO tag (user_id, name)
    SELECT $1, unnest($3::text[])
    ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
)
INSERT INTO plant_tag (plant_id, tag_id)
SELECT $2, id FROM t
ON CONFLICT DO NOTHING;`,
		userId,
		plantId,
		names,
	)
	return translate(err)
}
