package database

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mgmu/greenhouse/internal/plants"
)

const giftSelect = `
SELECT g.id, g.plant_id, g.plant_name, g.sender_id, u.name, g.receiver_email, g.receiver_id,
       g.token, g.message, g.status, g.new_plant_id, g.created_at, g.responded_at
FROM plant_gift g
JOIN app_user u ON u.id = g.sender_id
`

func scanGift(row pgx.Row) (plants.PlantGift, error) {
	var g plants.PlantGift
	var plantId, receiverId, newPlantId pgtype.Int4
	var responded pgtype.Timestamptz
	err := row.Scan(
		&g.Id, &plantId, &g.PlantName, &g.SenderId, &g.SenderName, &g.ReceiverEmail,
		&receiverId, &g.Token, &g.Message, &g.Status, &newPlantId, &g.CreatedAt, &responded,
	)
	if err != nil {
		return plants.PlantGift{}, err
	}
	g.PlantId = intFrom(plantId)
	g.ReceiverId = intFrom(receiverId)
	g.NewPlantId = intFrom(newPlantId)
	if responded.Valid {
		t := responded.Time
		g.RespondedAt = &t
	}
	return g, nil
}

// CreateGift records a pending gift of a plant of the sender. The receiver is
// resolved by email when an account already exists. A plant has at most one
// pending gift, a second one yields ErrConflict.
func (db *PostgresDatabase) CreateGift(ctx context.Context, g plants.PlantGift) (int, error) {
	row := db.pool.QueryRow(
		ctx,
		`
INSERT INTO plant_gift (plant_id, plant_name, sender_id, receiver_email, receiver_id, token, message)
SELECT p.id, p.name, p.user_id, lower($3::text),
       (SELECT id FROM app_user WHERE email = lower($3::text)), $4::text, $5::text
FROM plant p WHERE p.id = $1 AND p.user_id = $2
RETURNING id;`,
		intArg(g.PlantId),
		g.SenderId,
		g.ReceiverEmail,
		g.Token,
		g.Message,
	)
	var id int
	if err := row.Scan(&id); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

func (db *PostgresDatabase) GetGift(ctx context.Context, giftId int) (plants.PlantGift, error) {
	g, err := scanGift(db.pool.QueryRow(ctx, giftSelect+"WHERE g.id = $1;", giftId))
	if err != nil {
		return plants.PlantGift{}, translate(err)
	}
	return g, nil
}

// GetGiftByToken finds the gift of an invitation link.
func (db *PostgresDatabase) GetGiftByToken(ctx context.Context, token string) (plants.PlantGift, error) {
	g, err := scanGift(db.pool.QueryRow(ctx, giftSelect+"WHERE g.token = $1;", token))
	if err != nil {
		return plants.PlantGift{}, translate(err)
	}
	return g, nil
}

// GetGifts returns the gifts sent and received by u, most recent first.
func (db *PostgresDatabase) GetGifts(ctx context.Context, u plants.User) ([]plants.PlantGift, error) {
	rows, _ := db.pool.Query(
		ctx,
		giftSelect+`
WHERE g.sender_id = $1 OR g.receiver_id = $1 OR lower(g.receiver_email) = lower($2)
ORDER BY g.created_at DESC, g.id DESC;`,
		u.Id,
		u.Email,
	)
	gifts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (plants.PlantGift, error) {
		return scanGift(row)
	})
	if err != nil {
		return nil, translate(err)
	}
	return gifts, nil
}

// SetGiftStatus closes a pending gift. ErrConflict is returned when the gift
// was not pending anymore.
func (db *PostgresDatabase) SetGiftStatus(ctx context.Context, giftId int, status string) error {
	tag, err := db.pool.Exec(
		ctx,
		`
UPDATE plant_gift SET status = $2, responded_at = now()
WHERE id = $1 AND status = 'pending';`,
		giftId,
		status,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetGift(ctx, giftId); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// AcceptGift moves the gifted plant to the receiver in a single transaction.
// A copy of the plant is created for the receiver with its tasks, photos,
// notes and tags, then the original is deleted. The tasks of the original are
// returned so that the caller can remove their calendar events.
func (db *PostgresDatabase) AcceptGift(ctx context.Context, receiver plants.User, giftId int) (plants.GiftTransfer, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return plants.GiftTransfer{}, translate(err)
	}
	defer tx.Rollback(ctx)

	g, err := scanGift(tx.QueryRow(ctx, giftSelect+"WHERE g.id = $1 FOR UPDATE OF g;", giftId))
	if err != nil {
		return plants.GiftTransfer{}, translate(err)
	}
	if err := plants.CheckGiftTransition(g, receiver, plants.ActionAccept); err != nil {
		return plants.GiftTransfer{}, err
	}
	if g.PlantId == nil {
		return plants.GiftTransfer{}, ErrNotFound
	}

	original, err := getPlant(ctx, tx, g.SenderId, *g.PlantId, true)
	if err != nil {
		return plants.GiftTransfer{}, err
	}
	newId, err := insertPlant(ctx, tx, plants.ReceivedCopy(original, receiver.Id))
	if err != nil {
		return plants.GiftTransfer{}, err
	}

	for _, c := range transferCopies(original, newId) {
		if len(c.rows) == 0 {
			continue
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, pgx.CopyFromRows(c.rows)); err != nil {
			return plants.GiftTransfer{}, translate(err)
		}
	}
	names := make([]string, len(original.Tags))
	for i, tag := range original.Tags {
		names[i] = tag.Name
	}
	if err := tagPlant(ctx, tx, receiver.Id, newId, names); err != nil {
		return plants.GiftTransfer{}, err
	}

	_, err = tx.Exec(ctx, "DELETE FROM plant WHERE id = $1;", original.Id)
	if err != nil {
		return plants.GiftTransfer{}, translate(err)
	}
	g, err = scanGift(tx.QueryRow(
		ctx,
		`
WITH upd AS (
    UPDATE plant_gift
    SET status = 'accepted', new_plant_id = $2, receiver_id = $3, responded_at = now()
    WHERE id = $1
    RETURNING *
)
SELECT g.id, g.plant_id, g.plant_name, g.sender_id, u.name, g.receiver_email, g.receiver_id,
       g.token, g.message, g.status, g.new_plant_id, g.created_at, g.responded_at
FROM upd g JOIN app_user u ON u.id = g.sender_id;`,
		g.Id,
		newId,
		receiver.Id,
	))
	if err != nil {
		return plants.GiftTransfer{}, translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return plants.GiftTransfer{}, translate(err)
	}
	return plants.GiftTransfer{Gift: g, SenderTasks: original.Tasks}, nil
}

// bulkCopy is the input of one COPY FROM.
type bulkCopy struct {
	table   string
	columns []string
	rows    [][]any
}

// transferCopies lists the rows that move with a gifted plant to its copy
// newId. Calendar events belong to the sender and are not carried over.
func transferCopies(original plants.Plant, newId int) []bulkCopy {
	taskRows := make([][]any, len(original.Tasks))
	for i, t := range original.Tasks {
		taskRows[i] = []any{newId, t.TaskKey, t.FrequencyDays, dateArg(t.LastCompletedOn), t.NextDueOn.Time}
	}
	photoRows := make([][]any, len(original.Photos))
	for i, ph := range original.Photos {
		photoRows[i] = []any{newId, ph.Url, ph.PublicId, ph.Caption, ph.TakenOn, ph.CreatedAt}
	}
	noteRows := make([][]any, len(original.Notes))
	for i, n := range original.Notes {
		noteRows[i] = []any{newId, n.Body, n.CreatedAt}
	}
	return []bulkCopy{
		{"plant_task", []string{"plant_id", "task_key", "frequency_days", "last_completed_on", "next_due_on"}, taskRows},
		{"plant_photo", []string{"plant_id", "url", "public_id", "caption", "taken_on", "created_at"}, photoRows},
		{"plant_note", []string{"plant_id", "body", "created_at"}, noteRows},
	}
}
